package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"thermostat_away"
	"thermostat_away/internal/repository"
)

var ErrInvalidEventType = errors.New("invalid event type")

var knownEventTypes = map[string]struct{}{
	thermostat_away.EventOverride:     {},
	thermostat_away.EventCalendarSync: {},
	thermostat_away.EventReset:        {},
	thermostat_away.EventPreheat:      {},
	thermostat_away.EventError:        {},
}

// EventLogService serves the append-only transition history.
type EventLogService struct {
	events repository.EventRepo
}

func NewEventLogService(repos *repository.Repository) *EventLogService {
	return &EventLogService{events: repos.EventRepo}
}

// List returns the account's events, oldest first, narrowed by the filter.
// The type filter is case-insensitive.
func (s *EventLogService) List(ctx context.Context, accountID int, f LogFilter) ([]thermostat_away.ThermostatEvent, error) {
	f.Type = strings.ToUpper(strings.TrimSpace(f.Type))
	if f.Type != "" {
		if _, ok := knownEventTypes[f.Type]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidEventType, f.Type)
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, fmt.Errorf("invalid range: to %s precedes from %s", f.To.Format("2006-01-02"), f.From.Format("2006-01-02"))
	}
	return s.events.List(ctx, accountID, f.From.UTC(), f.To.UTC(), f.Type)
}
