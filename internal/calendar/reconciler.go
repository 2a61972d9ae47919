// Package calendar classifies upcoming calendar events as away-implying or
// at-home and exposes the ordered away sequence the transition engine
// schedules from.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"thermostat_away"
)

// EventsAPI lists raw events in a window, ordered by start time.
type EventsAPI interface {
	ListEvents(ctx context.Context, accountID int, from, to time.Time) ([]thermostat_away.CalendarEvent, error)
}

// Substrings in an event description that indicate a video call, i.e. the
// user attends from home.
var conferencingHosts = []string{"zoom.us", "meet.google.com"}

type Reconciler struct {
	api EventsAPI
}

func NewReconciler(api EventsAPI) *Reconciler {
	return &Reconciler{api: api}
}

// UpcomingAwayEvents fetches events starting within [now, now+lookahead)
// and returns the ones that imply the user is away, in start order. An event
// is at-home (and excluded) when any home keyword appears in its location or
// summary, or when it carries a conferencing indicator. Retrieval failures
// are surfaced unchanged; this call never mutates anything, so retrying is
// always safe.
func (r *Reconciler) UpcomingAwayEvents(ctx context.Context, accountID int, lookahead time.Duration, homeKeywords []string) ([]thermostat_away.AwayEvent, error) {
	now := time.Now().UTC()
	events, err := r.api.ListEvents(ctx, accountID, now, now.Add(lookahead))
	if err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}

	away := make([]thermostat_away.AwayEvent, 0, len(events))
	for _, ev := range events {
		if isAtHome(ev, homeKeywords) {
			continue
		}
		away = append(away, thermostat_away.AwayEvent{
			Start: ev.Start,
			End:   ev.End,
			Title: ev.Summary,
		})
	}
	return away, nil
}

func isAtHome(ev thermostat_away.CalendarEvent, homeKeywords []string) bool {
	location := strings.ToLower(ev.Location)
	summary := strings.ToLower(ev.Summary)
	for _, kw := range homeKeywords {
		kw = strings.ToLower(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(location, kw) || strings.Contains(summary, kw) {
			return true
		}
	}

	if ev.HasConferenceLink {
		return true
	}
	description := strings.ToLower(ev.Description)
	for _, host := range conferencingHosts {
		if strings.Contains(description, host) {
			return true
		}
	}
	return false
}
