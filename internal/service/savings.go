package service

import "math"

// EstimateSavings approximates what an away setback saves relative to
// holding the current indoor temperature against the outdoors.
//
// The heating load is treated as proportional to the indoor/outdoor
// temperature difference. Dropping the setpoint from currentC to targetC
// removes the deltaT fraction of the baseline load:
//
//	energy = (|currentC - targetC| / |currentC - outdoorC|) * baselineLoadKWh
//	cost   = energy * pricePerKWh
//
// When indoors already matches outdoors there is nothing to save and both
// results are zero.
func EstimateSavings(currentC, targetC, outdoorC, baselineLoadKWh, pricePerKWh float64) (energyKWh, cost float64) {
	baselineDeltaT := math.Abs(currentC - outdoorC)
	if baselineDeltaT == 0 {
		return 0, 0
	}
	deltaT := math.Abs(currentC - targetC)
	energyKWh = (deltaT / baselineDeltaT) * baselineLoadKWh
	return energyKWh, energyKWh * pricePerKWh
}
