package service

import (
	"context"
	"time"

	"thermostat_away"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Thermostat exposes the away-state operations consumed by the HTTP layer.
type Thermostat interface {
	Override(ctx context.Context, accountID int, away bool, hours float64) (thermostat_away.ThermostatState, error)
	Sync(ctx context.Context, accountID int) (SyncResult, error)
	SavedEnergy(ctx context.Context, accountID int) (float64, error)
	SavedCost(ctx context.Context, accountID int) (float64, error)
}

// Monitoring exposes read-only per-account state.
type Monitoring interface {
	GetState(ctx context.Context, accountID int) (thermostat_away.ThermostatState, error)
}

// EventLog exposes the append-only transition log with filtering access.
type EventLog interface {
	List(ctx context.Context, accountID int, f LogFilter) ([]thermostat_away.ThermostatEvent, error)
}

// SyncResult is the outcome of a calendar sync, including the side effects
// applied while away.
type SyncResult struct {
	Away           bool    `json:"away"`
	Message        string  `json:"message"`
	EnergySavedKWh float64 `json:"energy_saved_kwh"`
	CostSaved      float64 `json:"cost_saved"`
}

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "OVERRIDE", "CALENDAR_SYNC", "RESET", "PREHEAT", "ERROR"
}

//
// Root Service aggregates all sub-services.
//

type Service struct {
	Thermostat
	Monitoring
	EventLog
	Authorization
}

// NewService wires the engine and repo-backed services into the aggregate
// the handlers consume. The engine is constructed by the caller because it
// also carries the restore surface used by main.
func NewService(engine *Engine, mon *MonitoringService, log *EventLogService, auth *AuthService) *Service {
	return &Service{
		Thermostat:    engine,
		Monitoring:    mon,
		EventLog:      log,
		Authorization: auth,
	}
}
