package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"thermostat_away"
	"thermostat_away/internal/logger"
	"thermostat_away/internal/repository"

	"github.com/google/uuid"
)

const (
	// maxPreheatLead caps how far before a window's end preheating starts.
	maxPreheatLead = 30 * time.Minute

	// minUpcomingEvents is the scheduling gate: fewer qualifying events
	// than this and the sync takes no action.
	minUpcomingEvents = 2

	defaultLookahead = 6 * time.Hour

	// jobFireTimeout bounds the external calls made by a fired job.
	jobFireTimeout = 20 * time.Second
)

var (
	ErrInvalidDuration = errors.New("invalid duration: hours must be >= 0")
	ErrAccountNotFound = errors.New("account not found")
)

// JobScheduler is the deferred-action port. Scheduling an already-pending
// ID supersedes the previous job.
type JobScheduler interface {
	Schedule(id string, runAt time.Time, fn func()) error
	Cancel(id string) bool
}

// AwayEventSource yields upcoming away-implying calendar events.
type AwayEventSource interface {
	UpcomingAwayEvents(ctx context.Context, accountID int, lookahead time.Duration, homeKeywords []string) ([]thermostat_away.AwayEvent, error)
}

// WeatherSource reads the current outdoor temperature in °F.
type WeatherSource interface {
	OutdoorTempF(ctx context.Context, lat, lon float64) (float64, error)
}

// DeviceController is the thermostat capability.
type DeviceController interface {
	SetTargetC(ctx context.Context, accountID int, celsius float64) error
	AmbientC(ctx context.Context, accountID int) (float64, error)
}

// Notifier announces scheduling decisions; failures never affect state.
type Notifier interface {
	OverrideScheduled(accountID int, away bool, until time.Time) error
	PreheatFired(accountID int, title string) error
}

// EngineConfig carries the deployment knobs for scheduling and savings.
type EngineConfig struct {
	HomeAddress     string
	Lat             float64
	Lon             float64
	ComfortTempC    float64
	BaselineLoadKWh float64
	PricePerKWh     float64
	Lookahead       time.Duration
}

// Engine is the state transition engine: it owns every write to the
// away-state store and all job arming, supersession and precedence logic.
type Engine struct {
	states   repository.StateRepo
	events   repository.EventRepo
	jobRepo  repository.JobRepo
	jobs     JobScheduler
	calendar AwayEventSource
	weather  WeatherSource
	device   DeviceController
	notifier Notifier // optional
	log      *logger.Logger
	cfg      EngineConfig

	homeKeywords []string

	// per-account locks: operations on the same account are serialized,
	// different accounts proceed in parallel. Entries are never pruned,
	// so the map grows with the set of accounts ever touched.
	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

var _ Thermostat = (*Engine)(nil)

var keywordSplitRe = regexp.MustCompile(`[,\s]+`)

func NewEngine(repos *repository.Repository, jobs JobScheduler, cal AwayEventSource, wx WeatherSource, dev DeviceController, notifier Notifier, log *logger.Logger, cfg EngineConfig) *Engine {
	if cfg.Lookahead <= 0 {
		cfg.Lookahead = defaultLookahead
	}
	return &Engine{
		states:       repos.StateRepo,
		events:       repos.EventRepo,
		jobRepo:      repos.JobRepo,
		jobs:         jobs,
		calendar:     cal,
		weather:      wx,
		device:       dev,
		notifier:     notifier,
		log:          log,
		cfg:          cfg,
		homeKeywords: keywordSplitRe.Split(strings.TrimSpace(cfg.HomeAddress), -1),
		locks:        make(map[int]*sync.Mutex),
	}
}

// lock serializes engine operations for one account. Callers must invoke
// the returned func to release.
func (e *Engine) lock(accountID int) func() {
	e.mu.Lock()
	m, ok := e.locks[accountID]
	if !ok {
		m = &sync.Mutex{}
		e.locks[accountID] = m
	}
	e.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Override applies an explicit user override: the away flag takes effect
// immediately and automatic scheduling is paused until now+hours. Arming
// the new preheat/reset pair supersedes any previously pending pair.
func (e *Engine) Override(ctx context.Context, accountID int, away bool, hours float64) (thermostat_away.ThermostatState, error) {
	if hours < 0 {
		return thermostat_away.ThermostatState{}, ErrInvalidDuration
	}
	duration := time.Duration(hours * float64(time.Hour))

	unlock := e.lock(accountID)
	defer unlock()

	st, err := e.loadState(ctx, accountID)
	if err != nil {
		return thermostat_away.ThermostatState{}, err
	}

	now := time.Now().UTC()
	end := now.Add(duration)
	st.Away = away
	st.OverrideActive = true
	st.ScheduledEnd = &end
	st.UpdatedAt = now
	if err := e.states.Save(ctx, st); err != nil {
		return thermostat_away.ThermostatState{}, fmt.Errorf("save override state: %w", err)
	}

	e.disarm(ctx, accountID)

	lead := maxPreheatLead
	if duration < lead {
		lead = duration
	}
	if away && lead > 0 {
		e.arm(ctx, thermostat_away.ScheduledJob{
			AccountID: accountID,
			Action:    thermostat_away.ActionPreheat,
			RunAt:     end.Add(-lead),
			Title:     "Override",
		})
	}
	// Expiry reset clears the override and hands control back to the
	// calendar automation.
	e.arm(ctx, thermostat_away.ScheduledJob{
		AccountID:     accountID,
		Action:        thermostat_away.ActionReset,
		RunAt:         end,
		Away:          false,
		ClearOverride: true,
		EndTime:       &end,
	})

	e.appendEvent(ctx, accountID, thermostat_away.EventOverride,
		fmt.Sprintf("User override: away=%t for %.2fh", away, hours),
		map[string]any{"away": away, "hours": hours, "ends_at": end})

	if e.notifier != nil {
		go func() {
			if err := e.notifier.OverrideScheduled(accountID, away, end); err != nil {
				e.log.Infow("override_notice_failed", "err", err, "account_id", accountID)
			}
		}()
	}

	return st, nil
}

// Sync runs a calendar reconciliation and, when the account ends up away,
// points the thermostat at the outdoor temperature and books the estimated
// savings. The two steps commit independently: a calendar failure leaves
// state exactly as it was, while a weather or device failure after the
// window was scheduled surfaces as an error but keeps the committed window
// (state and armed jobs) in place.
func (e *Engine) Sync(ctx context.Context, accountID int) (SyncResult, error) {
	if err := e.applyCalendarSync(ctx, accountID); err != nil {
		return SyncResult{}, err
	}

	st, err := e.loadState(ctx, accountID)
	if err != nil {
		return SyncResult{}, err
	}

	if !st.Away {
		return SyncResult{
			Away:           false,
			Message:        "User appears to be home.",
			EnergySavedKWh: st.EnergySavedKWh,
			CostSaved:      st.CostSaved,
		}, nil
	}

	// External reads happen before the per-account lock is taken.
	outF, err := e.weather.OutdoorTempF(ctx, e.cfg.Lat, e.cfg.Lon)
	if err != nil {
		e.log.Errorw("outdoor_temp_failed", "err", err, "account_id", accountID)
		return SyncResult{}, fmt.Errorf("outdoor temperature: %w", err)
	}
	ambientC, err := e.device.AmbientC(ctx, accountID)
	if err != nil {
		e.log.Errorw("ambient_read_failed", "err", err, "account_id", accountID)
		return SyncResult{}, fmt.Errorf("ambient temperature: %w", err)
	}

	targetC := fahrenheitToCelsius(outF)
	if err := e.device.SetTargetC(ctx, accountID, targetC); err != nil {
		e.log.Errorw("set_target_failed", "err", err, "account_id", accountID)
		return SyncResult{}, fmt.Errorf("set thermostat target: %w", err)
	}

	energy, cost := EstimateSavings(ambientC, targetC, targetC, e.cfg.BaselineLoadKWh, e.cfg.PricePerKWh)

	unlock := e.lock(accountID)
	st, err = e.loadState(ctx, accountID)
	if err != nil {
		unlock()
		return SyncResult{}, err
	}
	st.EnergySavedKWh += energy
	st.CostSaved += cost
	st.OutsideTempF = &outF
	st.UpdatedAt = time.Now().UTC()
	if err := e.states.Save(ctx, st); err != nil {
		unlock()
		return SyncResult{}, fmt.Errorf("save savings: %w", err)
	}
	unlock()

	msg := fmt.Sprintf("Nest set to outside temp - %.1f.", outF)
	if st.ScheduledEnd != nil {
		msg = fmt.Sprintf("Nest set to outside temp - %.1f. The next event will end on %s.", outF, st.ScheduledEnd.Format(time.RFC3339))
	}
	return SyncResult{
		Away:           true,
		Message:        msg,
		EnergySavedKWh: st.EnergySavedKWh,
		CostSaved:      st.CostSaved,
	}, nil
}

// applyCalendarSync reconciles state with the calendar. It is a no-op while
// an override is active: an explicit user command always outranks calendar
// automation until it expires.
func (e *Engine) applyCalendarSync(ctx context.Context, accountID int) error {
	st, err := e.loadState(ctx, accountID)
	if err != nil {
		return err
	}
	if st.OverrideActive {
		e.log.Infow("calendar_sync_skipped", "reason", "override active", "account_id", accountID)
		return nil
	}

	events, err := e.calendar.UpcomingAwayEvents(ctx, accountID, e.cfg.Lookahead, e.homeKeywords)
	if err != nil {
		e.log.Errorw("calendar_sync_failed", "err", err, "account_id", accountID)
		return fmt.Errorf("calendar sync: %w", err)
	}
	if len(events) < minUpcomingEvents {
		// Scheduling gate: a single event is not acted on.
		return nil
	}
	next := events[0]

	unlock := e.lock(accountID)
	defer unlock()

	// Re-read under the lock: an override may have landed while the
	// calendar was being fetched.
	st, err = e.loadState(ctx, accountID)
	if err != nil {
		return err
	}
	if st.OverrideActive {
		return nil
	}

	preheatAt := next.End.Add(-maxPreheatLead)
	if preheatAt.Before(next.Start) {
		preheatAt = next.Start
	}
	end := next.End

	st.Away = true
	st.OverrideActive = false
	st.ScheduledEnd = &end
	st.UpdatedAt = time.Now().UTC()
	if err := e.states.Save(ctx, st); err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}

	e.disarm(ctx, accountID)
	e.arm(ctx, thermostat_away.ScheduledJob{
		AccountID: accountID,
		Action:    thermostat_away.ActionPreheat,
		RunAt:     preheatAt,
		Title:     next.Title,
	})
	e.arm(ctx, thermostat_away.ScheduledJob{
		AccountID: accountID,
		Action:    thermostat_away.ActionReset,
		RunAt:     end,
		Away:      false,
		EndTime:   &end,
	})

	e.appendEvent(ctx, accountID, thermostat_away.EventCalendarSync,
		fmt.Sprintf("Scheduled away window for %q", next.Title),
		map[string]any{"title": next.Title, "start": next.Start, "end": end})
	return nil
}

// Reset ends an away/override window. Fired by the reset job, or called
// synchronously during restore. The job record carries only immutable
// values; current state is re-read here.
func (e *Engine) Reset(ctx context.Context, job thermostat_away.ScheduledJob) {
	if e.applyReset(ctx, job) {
		// Back home: re-run the calendar so the next away window (if
		// any) gets scheduled.
		if err := e.applyCalendarSync(ctx, job.AccountID); err != nil {
			e.log.Errorw("post_reset_sync_failed", "err", err, "account_id", job.AccountID)
		}
	}
}

// applyReset commits the reset under the account lock and reports whether
// the account transitioned to home (which re-triggers calendar sync).
func (e *Engine) applyReset(ctx context.Context, job thermostat_away.ScheduledJob) bool {
	unlock := e.lock(job.AccountID)
	defer unlock()

	st, err := e.loadState(ctx, job.AccountID)
	if errors.Is(err, ErrAccountNotFound) {
		e.log.Infow("stale_reset_ignored", "reason", "account removed", "account_id", job.AccountID)
		e.disarm(ctx, job.AccountID)
		return false
	}
	if err != nil {
		e.log.Errorw("reset_load_failed", "err", err, "account_id", job.AccountID)
		return false
	}

	// A reset is bound to the window it was armed for: its end time must
	// still match the live scheduledEnd. A later override or sync replaces
	// the window, so a reset popped off the runner just before the
	// supersession must not touch state. The mirrored rows are left
	// alone: by key they belong to the superseding pair.
	if job.EndTime == nil || st.ScheduledEnd == nil || !st.ScheduledEnd.Equal(*job.EndTime) {
		e.log.Infow("stale_reset_ignored", "reason", "window superseded", "account_id", job.AccountID)
		return false
	}

	// The window is over; a sibling preheat still pending is moot.
	e.disarm(ctx, job.AccountID)

	st.Away = job.Away
	st.OverrideActive = false
	if job.Away {
		st.ScheduledEnd = job.EndTime
	} else {
		st.ScheduledEnd = nil
	}
	st.UpdatedAt = time.Now().UTC()
	if err := e.states.Save(ctx, st); err != nil {
		e.log.Errorw("reset_save_failed", "err", err, "account_id", job.AccountID)
		return false
	}

	e.appendEvent(ctx, job.AccountID, thermostat_away.EventReset,
		fmt.Sprintf("Window ended: away=%t", job.Away),
		map[string]any{"away": job.Away, "clear_override": job.ClearOverride})

	return !job.Away
}

// Preheat points the thermostat at the comfort target ahead of an expected
// return. It mutates no state; failure is logged and never aborts the
// already-armed reset.
func (e *Engine) Preheat(ctx context.Context, accountID int, title string) {
	if err := e.jobRepo.Delete(ctx, accountID, thermostat_away.ActionPreheat); err != nil {
		e.log.Errorw("delete_job_row_failed", "err", err, "account_id", accountID)
	}

	e.log.Infow("preheating", "account_id", accountID, "event", title, "target_c", e.cfg.ComfortTempC)
	if err := e.device.SetTargetC(ctx, accountID, e.cfg.ComfortTempC); err != nil {
		e.log.Errorw("preheat_set_target_failed", "err", err, "account_id", accountID)
		e.appendEvent(ctx, accountID, thermostat_away.EventError, "Preheat failed: "+err.Error(), nil)
		return
	}

	e.appendEvent(ctx, accountID, thermostat_away.EventPreheat,
		fmt.Sprintf("Preheating for event: %s", title),
		map[string]any{"title": title, "target_c": e.cfg.ComfortTempC})

	if e.notifier != nil {
		go func() {
			if err := e.notifier.PreheatFired(accountID, title); err != nil {
				e.log.Infow("preheat_notice_failed", "err", err, "account_id", accountID)
			}
		}()
	}
}

// SavedEnergy returns the account's cumulative estimated energy savings.
func (e *Engine) SavedEnergy(ctx context.Context, accountID int) (float64, error) {
	st, err := e.loadState(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return st.EnergySavedKWh, nil
}

// SavedCost returns the account's cumulative estimated cost savings.
func (e *Engine) SavedCost(ctx context.Context, accountID int) (float64, error) {
	st, err := e.loadState(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return st.CostSaved, nil
}

// Restore re-arms mirrored jobs after a restart. Future jobs go back on
// the runner; expired resets run now as reconciliation; expired preheats
// are dropped (preheating after the window ended is pointless).
func (e *Engine) Restore(ctx context.Context) error {
	jobs, err := e.jobRepo.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("restore jobs: %w", err)
	}

	now := time.Now().UTC()
	rearmed, expired := 0, 0
	for _, j := range jobs {
		if j.RunAt.After(now) {
			e.armInMemory(j)
			rearmed++
			continue
		}
		expired++
		switch j.Action {
		case thermostat_away.ActionReset:
			e.log.Infow("running_expired_reset", "account_id", j.AccountID, "run_at", j.RunAt)
			e.Reset(ctx, j)
		default:
			if err := e.jobRepo.Delete(ctx, j.AccountID, j.Action); err != nil {
				e.log.Errorw("delete_job_row_failed", "err", err, "account_id", j.AccountID)
			}
		}
	}

	e.log.Infow("jobs_restored", "rearmed", rearmed, "expired", expired)
	return nil
}

// ---- internals ----

func (e *Engine) loadState(ctx context.Context, accountID int) (thermostat_away.ThermostatState, error) {
	st, err := e.states.Load(ctx, accountID)
	if errors.Is(err, repository.ErrNotFound) {
		return thermostat_away.ThermostatState{}, fmt.Errorf("%w: account %d", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return thermostat_away.ThermostatState{}, err
	}
	return st, nil
}

func jobID(accountID int, action string) string {
	return fmt.Sprintf("%d:%s", accountID, action)
}

// arm mirrors the job to the store and schedules it on the runner.
func (e *Engine) arm(ctx context.Context, j thermostat_away.ScheduledJob) {
	if err := e.jobRepo.Save(ctx, j); err != nil {
		e.log.Errorw("persist_job_failed", "err", err, "account_id", j.AccountID, "action", j.Action)
	}
	e.armInMemory(j)
}

func (e *Engine) armInMemory(j thermostat_away.ScheduledJob) {
	if err := e.jobs.Schedule(jobID(j.AccountID, j.Action), j.RunAt, func() { e.fire(j) }); err != nil {
		e.log.Errorw("schedule_job_failed", "err", err, "account_id", j.AccountID, "action", j.Action)
	}
}

// disarm cancels the account's pending pair, in memory and in the mirror.
func (e *Engine) disarm(ctx context.Context, accountID int) {
	for _, action := range []string{thermostat_away.ActionPreheat, thermostat_away.ActionReset} {
		e.jobs.Cancel(jobID(accountID, action))
		if err := e.jobRepo.Delete(ctx, accountID, action); err != nil {
			e.log.Errorw("delete_job_row_failed", "err", err, "account_id", accountID, "action", action)
		}
	}
}

// fire runs a due job with a bounded context.
func (e *Engine) fire(j thermostat_away.ScheduledJob) {
	ctx, cancel := context.WithTimeout(context.Background(), jobFireTimeout)
	defer cancel()

	switch j.Action {
	case thermostat_away.ActionPreheat:
		e.Preheat(ctx, j.AccountID, j.Title)
	case thermostat_away.ActionReset:
		e.Reset(ctx, j)
	default:
		e.log.Errorw("unknown_job_action", "action", j.Action, "account_id", j.AccountID)
	}
}

func (e *Engine) appendEvent(ctx context.Context, accountID int, typ, desc string, meta any) {
	err := e.events.Append(ctx, thermostat_away.ThermostatEvent{
		EventID:     uuid.NewString(),
		AccountID:   accountID,
		OccurredAt:  time.Now().UTC(),
		Type:        typ,
		Description: desc,
		Metadata:    meta,
	})
	if err != nil {
		e.log.Errorw("append_event_failed", "err", err, "type", typ, "account_id", accountID)
	}
}

func fahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}
