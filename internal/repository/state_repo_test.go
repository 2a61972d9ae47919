package repository_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"thermostat_away"
	"thermostat_away/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
)

// sqlmockArgumentFunc adapts a predicate to sqlmock's Argument interface.
type sqlmockArgumentFunc func(v driver.Value) bool

func (f sqlmockArgumentFunc) Match(v driver.Value) bool { return f(v) }

func isRecentUTC(v driver.Value) bool {
	tm, ok := v.(time.Time)
	if !ok {
		return false
	}
	if tm.Location() != time.UTC {
		return false
	}
	now := time.Now().UTC()
	return !tm.Before(now.Add(-5*time.Second)) && !tm.After(now.Add(5*time.Second))
}

func TestStateSQLite_Save_SetsUTCNowWhenTimeZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewStateSQLite(db)

	end := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	outside := 48.5
	state := thermostat_away.ThermostatState{
		AccountID:      7,
		Away:           true,
		OverrideActive: true,
		ScheduledEnd:   &end,
		EnergySavedKWh: 1.25,
		CostSaved:      0.19,
		OutsideTempF:   &outside,
		// UpdatedAt is zero
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO thermostat_state")).
		WithArgs(
			7,
			true,
			true,
			end,
			1.25,
			0.19,
			outside,
			sqlmockArgumentFunc(isRecentUTC),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStateSQLite_Save_ConvertsScheduledEndToUTC(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewStateSQLite(db)

	locTokyo, _ := time.LoadLocation("Asia/Tokyo")
	end := time.Date(2026, 3, 14, 23, 0, 0, 0, locTokyo)
	expectedEndUTC := end.UTC()
	updated := time.Date(2026, 3, 14, 12, 0, 0, 0, locTokyo)

	state := thermostat_away.ThermostatState{
		AccountID:    3,
		Away:         false,
		ScheduledEnd: &end,
		UpdatedAt:    updated,
	}

	isExactEndUTC := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		return ok && tm.Equal(expectedEndUTC) && tm.Location() == time.UTC
	})
	isExactUpdatedUTC := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		return ok && tm.Equal(updated.UTC()) && tm.Location() == time.UTC
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO thermostat_state")).
		WithArgs(3, false, false, isExactEndUTC, 0.0, 0.0, nil, isExactUpdatedUTC).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStateSQLite_Load_ReturnsNotFoundForUnknownAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewStateSQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM thermostat_state")).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{
			"account_id", "away", "override_active", "scheduled_end",
			"energy_saved_kwh", "cost_saved", "outside_temp_f", "updated_at",
		}))

	_, err = repo.Load(context.Background(), 99)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStateSQLite_Load_ScansNullableColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewStateSQLite(db)

	updated := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"account_id", "away", "override_active", "scheduled_end",
		"energy_saved_kwh", "cost_saved", "outside_temp_f", "updated_at",
	}).AddRow(5, false, false, nil, 2.5, 0.38, nil, updated)

	mock.ExpectQuery(regexp.QuoteMeta("FROM thermostat_state")).
		WithArgs(5).
		WillReturnRows(rows)

	st, err := repo.Load(context.Background(), 5)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if st.AccountID != 5 || st.Away || st.OverrideActive {
		t.Fatalf("unexpected state: %+v", st)
	}
	if st.ScheduledEnd != nil || st.OutsideTempF != nil {
		t.Fatalf("expected nil nullable fields, got %+v", st)
	}
	if st.EnergySavedKWh != 2.5 || st.CostSaved != 0.38 {
		t.Fatalf("unexpected savings: %+v", st)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
