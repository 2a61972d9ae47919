package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"thermostat_away"
	"thermostat_away/internal/repository"
)

func TestEventLogService_List(t *testing.T) {
	events := &memEventRepo{}
	_ = events.Append(context.Background(), thermostat_away.ThermostatEvent{AccountID: 1, Type: thermostat_away.EventOverride})
	_ = events.Append(context.Background(), thermostat_away.ThermostatEvent{AccountID: 1, Type: thermostat_away.EventReset})
	_ = events.Append(context.Background(), thermostat_away.ThermostatEvent{AccountID: 2, Type: thermostat_away.EventOverride})
	svc := NewEventLogService(&repository.Repository{EventRepo: events})

	got, err := svc.List(context.Background(), 1, LogFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 events for account 1, got %d", len(got))
	}

	got, err = svc.List(context.Background(), 1, LogFilter{Type: "override"})
	if err != nil {
		t.Fatalf("List with lowercase type: %v", err)
	}
	if len(got) != 1 || got[0].Type != thermostat_away.EventOverride {
		t.Errorf("type filter failed: %+v", got)
	}
}

func TestEventLogService_List_Validation(t *testing.T) {
	svc := NewEventLogService(&repository.Repository{EventRepo: &memEventRepo{}})

	if _, err := svc.List(context.Background(), 1, LogFilter{Type: "BOGUS"}); !errors.Is(err, ErrInvalidEventType) {
		t.Fatalf("expected ErrInvalidEventType, got %v", err)
	}

	from := time.Now()
	to := from.Add(-time.Hour)
	if _, err := svc.List(context.Background(), 1, LogFilter{From: from, To: to}); err == nil {
		t.Fatal("expected error for inverted range")
	}
}
