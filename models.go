package thermostat_away

import "time"

// Job actions armed on the deferred runner.
const (
	ActionPreheat = "PREHEAT"
	ActionReset   = "RESET"
)

// Event types recorded in the transition log.
const (
	EventOverride     = "OVERRIDE"
	EventCalendarSync = "CALENDAR_SYNC"
	EventReset        = "RESET"
	EventPreheat      = "PREHEAT"
	EventError        = "ERROR"
)

// ThermostatState is the per-account away-automation snapshot.
// Mutated only by the state transition engine.
type ThermostatState struct {
	AccountID      int        `json:"account_id"`
	Away           bool       `json:"away"`
	OverrideActive bool       `json:"override_active"`              // true while an explicit user override is in force
	ScheduledEnd   *time.Time `json:"scheduled_end_time,omitempty"` // instant the current away/override window ends
	EnergySavedKWh float64    `json:"energy_saved_kwh"`             // cumulative, never decreases
	CostSaved      float64    `json:"cost_saved"`                   // cumulative, never decreases
	OutsideTempF   *float64   `json:"outside_temp_f,omitempty"`     // last observed outdoor temperature
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CalendarEvent is a raw event as returned by the calendar capability.
type CalendarEvent struct {
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	Summary           string    `json:"summary"`
	Location          string    `json:"location"`
	Description       string    `json:"description"`
	HasConferenceLink bool      `json:"has_conference_link"`
}

// AwayEvent is a calendar event classified as away-implying by the reconciler.
type AwayEvent struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Title string    `json:"title"`
}

// ScheduledJob is the immutable record of a pending deferred action.
// Any "current" state is re-read from the store at fire time, never captured here.
type ScheduledJob struct {
	AccountID     int        `json:"account_id"`
	Action        string     `json:"action"` // PREHEAT | RESET
	RunAt         time.Time  `json:"run_at"`
	Away          bool       `json:"away"`                 // RESET: away flag to apply
	ClearOverride bool       `json:"clear_override"`       // RESET: true when the job ends a user override
	EndTime       *time.Time `json:"end_time,omitempty"`   // RESET: window end being processed
	Title         string     `json:"title,omitempty"`      // PREHEAT: event title, for logging
}

// ThermostatEvent is a single transition-log entry.
type ThermostatEvent struct {
	EventID     string    `json:"event_id"`
	AccountID   int       `json:"account_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // OVERRIDE | CALENDAR_SYNC | RESET | PREHEAT | ERROR
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}

type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // don't expose hash
}
