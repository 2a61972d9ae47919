package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"thermostat_away"
)

type JobSQLite struct {
	db *sql.DB
}

func NewJobSQLite(db *sql.DB) *JobSQLite { return &JobSQLite{db: db} }

var _ JobRepo = (*JobSQLite)(nil)

const (
	upsertJobSQL = `
		INSERT INTO scheduled_jobs (account_id, action, run_at, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id, action) DO UPDATE SET
			run_at=excluded.run_at,
			payload=excluded.payload
	`

	deleteJobSQL = `DELETE FROM scheduled_jobs WHERE account_id=? AND action=?`

	selectJobsSQL = `SELECT payload FROM scheduled_jobs ORDER BY run_at ASC`
)

// Save mirrors an armed job; re-arming the same (account, action) replaces
// the previous row.
func (r *JobSQLite) Save(ctx context.Context, j thermostat_away.ScheduledJob) error {
	payload, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshal job payload: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, upsertJobSQL, j.AccountID, j.Action, j.RunAt.UTC(), string(payload)); err != nil {
		return fmt.Errorf("save job %s for account %d: %w", j.Action, j.AccountID, err)
	}
	return nil
}

// Delete removes the pending row; deleting an absent row is not an error
// (the job may have been superseded concurrently).
func (r *JobSQLite) Delete(ctx context.Context, accountID int, action string) error {
	if _, err := r.db.ExecContext(ctx, deleteJobSQL, accountID, action); err != nil {
		return fmt.Errorf("delete job %s for account %d: %w", action, accountID, err)
	}
	return nil
}

// ListPending returns every mirrored job ordered by run time; used once at
// startup to re-arm the in-memory runner.
func (r *JobSQLite) ListPending(ctx context.Context) ([]thermostat_away.ScheduledJob, error) {
	rows, err := r.db.QueryContext(ctx, selectJobsSQL)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	defer rows.Close()

	var out []thermostat_away.ScheduledJob
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var j thermostat_away.ScheduledJob
		if err := json.Unmarshal([]byte(payload), &j); err != nil {
			return nil, fmt.Errorf("unmarshal job payload: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
