package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"thermostat_away"
)

// ErrNotFound is returned when a keyed row does not exist.
var ErrNotFound = errors.New("not found")

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*thermostat_away.User, error)
}

// StateRepo is the away-state store: one row per account.
type StateRepo interface {
	Save(ctx context.Context, s thermostat_away.ThermostatState) error
	Load(ctx context.Context, accountID int) (thermostat_away.ThermostatState, error)
}

// EventRepo is the append-only transition log.
type EventRepo interface {
	Append(ctx context.Context, e thermostat_away.ThermostatEvent) error
	List(ctx context.Context, accountID int, from, to time.Time, typ string) ([]thermostat_away.ThermostatEvent, error)
}

// JobRepo mirrors armed jobs so they survive a restart.
// The (account, action) primary key means at most one pending PREHEAT and
// one pending RESET row per account; Save replaces the previous member.
type JobRepo interface {
	Save(ctx context.Context, j thermostat_away.ScheduledJob) error
	Delete(ctx context.Context, accountID int, action string) error
	ListPending(ctx context.Context) ([]thermostat_away.ScheduledJob, error)
}

type Repository struct {
	StateRepo StateRepo
	EventRepo EventRepo
	JobRepo   JobRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		StateRepo: NewStateSQLite(db),
		EventRepo: NewEventSQLite(db),
		JobRepo:   NewJobSQLite(db),
		Auth:      NewUserRepository(db),
	}
}
