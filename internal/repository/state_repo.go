package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"thermostat_away"
)

type StateSQLite struct {
	db *sql.DB
}

func NewStateSQLite(db *sql.DB) *StateSQLite {
	return &StateSQLite{db: db}
}

var _ StateRepo = (*StateSQLite)(nil)

const (
	insertOrUpdateStateSQL = `
		INSERT INTO thermostat_state (account_id, away, override_active, scheduled_end, energy_saved_kwh, cost_saved, outside_temp_f, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			away=excluded.away,
			override_active=excluded.override_active,
			scheduled_end=excluded.scheduled_end,
			energy_saved_kwh=excluded.energy_saved_kwh,
			cost_saved=excluded.cost_saved,
			outside_temp_f=excluded.outside_temp_f,
			updated_at=excluded.updated_at
	`

	selectStateSQL = `
		SELECT account_id, away, override_active, scheduled_end, energy_saved_kwh, cost_saved, outside_temp_f, updated_at
		FROM thermostat_state WHERE account_id=?
	`
)

// Save upserts the account's state row.
func (r *StateSQLite) Save(ctx context.Context, state thermostat_away.ThermostatState) error {
	// ensure UpdatedAt is always persisted as UTC; set if zero
	tsUTC := state.UpdatedAt
	if tsUTC.IsZero() {
		tsUTC = time.Now().UTC()
	} else {
		tsUTC = tsUTC.UTC()
	}

	var endUTC *time.Time
	if state.ScheduledEnd != nil {
		e := state.ScheduledEnd.UTC()
		endUTC = &e
	}

	_, err := r.db.ExecContext(ctx, insertOrUpdateStateSQL,
		state.AccountID,
		state.Away,
		state.OverrideActive,
		endUTC,
		state.EnergySavedKWh,
		state.CostSaved,
		state.OutsideTempF,
		tsUTC,
	)
	if err != nil {
		return fmt.Errorf("save state for account %d: %w", state.AccountID, err)
	}
	return nil
}

// Load fetches the account's state row. Returns ErrNotFound when the
// account has no state yet (unknown account).
func (r *StateSQLite) Load(ctx context.Context, accountID int) (thermostat_away.ThermostatState, error) {
	row := r.db.QueryRowContext(ctx, selectStateSQL, accountID)

	var (
		s        thermostat_away.ThermostatState
		end      sql.NullTime
		outsideF sql.NullFloat64
	)
	if err := row.Scan(
		&s.AccountID,
		&s.Away,
		&s.OverrideActive,
		&end,
		&s.EnergySavedKWh,
		&s.CostSaved,
		&outsideF,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return thermostat_away.ThermostatState{}, ErrNotFound
		}
		return thermostat_away.ThermostatState{}, fmt.Errorf("load state for account %d: %w", accountID, err)
	}

	if end.Valid {
		e := end.Time.UTC()
		s.ScheduledEnd = &e
	}
	if outsideF.Valid {
		f := outsideF.Float64
		s.OutsideTempF = &f
	}
	s.UpdatedAt = s.UpdatedAt.UTC()

	return s, nil
}
