package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/postpilot-hq/postpilot/internal/domain/models"
	"github.com/postpilot-hq/postpilot/internal/pkg/metrics"
	"github.com/postpilot-hq/postpilot/internal/scheduler/store"
	"github.com/rs/zerolog/log"
)

var (
	// ErrSweepInProgress signals that a tick or manual trigger found a sweep
	// already running. The trigger is dropped, never queued.
	ErrSweepInProgress = errors.New("sweep already in progress")

	// ErrSweepHeldElsewhere signals that another replica holds the sweep lock.
	ErrSweepHeldElsewhere = errors.New("sweep lock held by another instance")

	ErrScheduleNotFound = errors.New("schedule not found")
)

// SettingsSource supplies the runtime-mutable sweep interval.
type SettingsSource interface {
	SweepInterval(ctx context.Context) time.Duration
}

// SweepLock keeps sweeps exclusive across replicas. A nil lock means single-
// instance deployment; the in-process flag alone then guards the invariant.
type SweepLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// SweepSummary is the batch outcome returned to the manual-trigger surface.
type SweepSummary struct {
	Total       int               `json:"total"`
	Successful  int               `json:"successful"`
	Failed      int               `json:"failed"`
	PerSchedule []ExecutionResult `json:"per_schedule"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
}

type Status struct {
	IsRunning   bool      `json:"is_running"`
	Started     bool      `json:"started"`
	LastCheckAt time.Time `json:"last_check_at"`
	SweepCount  int64     `json:"sweep_count"`
}

// Dispatcher drives sequential sweeps over the due-schedule set on a fixed
// interval. The sweeping flag is the run-state guard: compare-and-set keeps
// at most one sweep alive no matter how ticks and manual triggers interleave.
type Dispatcher struct {
	store    store.ScheduleStore
	executor *Executor
	settings SettingsSource
	lock     SweepLock
	config   *Config

	sweeping   atomic.Bool
	started    atomic.Bool
	lastCheck  atomic.Value // time.Time
	sweepCount atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Now is injectable for tests.
	Now func() time.Time
}

func NewDispatcher(scheduleStore store.ScheduleStore, executor *Executor, settings SettingsSource, lock SweepLock, cfg *Config) *Dispatcher {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.Validate()

	d := &Dispatcher{
		store:    scheduleStore,
		executor: executor,
		settings: settings,
		lock:     lock,
		config:   cfg,
		Now:      time.Now,
	}
	d.lastCheck.Store(time.Time{})
	return d
}

// Start performs one immediate sweep, then enters the timer loop. The
// interval is re-read from settings after every tick so runtime changes take
// effect without a restart.
func (d *Dispatcher) Start() {
	if !d.started.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	log.Info().
		Dur("sweep_interval", d.interval(ctx)).
		Int("batch_size", d.config.BatchSize).
		Msg("Starting dispatcher")

	d.wg.Add(1)
	go d.run(ctx)
}

// Stop cancels the timer. An in-flight sweep is allowed to finish; there is
// no hard cancellation of in-progress executions.
func (d *Dispatcher) Stop() {
	if !d.started.CompareAndSwap(true, false) {
		return
	}

	log.Info().Msg("Stopping dispatcher...")
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("Dispatcher stopped gracefully")
	case <-time.After(d.config.ShutdownTimeout):
		log.Warn().Msg("Dispatcher shutdown timed out")
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	if _, err := d.sweep(ctx, "startup"); err != nil && !errors.Is(err, ErrSweepInProgress) {
		log.Error().Err(err).Msg("Startup sweep failed")
	}

	timer := time.NewTimer(d.interval(ctx))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if _, err := d.sweep(ctx, "timer"); err != nil && !errors.Is(err, ErrSweepInProgress) && !errors.Is(err, ErrSweepHeldElsewhere) {
				log.Error().Err(err).Msg("Sweep failed")
			}
			timer.Reset(d.interval(ctx))
		}
	}
}

// TriggerSweep runs one sweep immediately. While a sweep is in flight the
// trigger is a logged no-op and ErrSweepInProgress is returned.
func (d *Dispatcher) TriggerSweep(ctx context.Context) (*SweepSummary, error) {
	return d.sweep(ctx, "manual")
}

// RunNow executes a single schedule, bypassing the due-time check. The
// emergency flag marks an operator path exempt from maintenance mode.
func (d *Dispatcher) RunNow(ctx context.Context, scheduleID uuid.UUID, emergency bool) (ExecutionResult, error) {
	schedule, err := d.store.GetByID(ctx, scheduleID)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("%w: %v", ErrScheduleNotFound, err)
	}

	log.Info().
		Str("schedule_id", scheduleID.String()).
		Bool("emergency", emergency).
		Msg("Running schedule on demand")

	return d.execute(ctx, schedule, ExecuteOptions{Emergency: emergency}), nil
}

func (d *Dispatcher) Status() Status {
	return Status{
		IsRunning:   d.sweeping.Load(),
		Started:     d.started.Load(),
		LastCheckAt: d.lastCheck.Load().(time.Time),
		SweepCount:  d.sweepCount.Load(),
	}
}

func (d *Dispatcher) sweep(ctx context.Context, trigger string) (*SweepSummary, error) {
	if !d.sweeping.CompareAndSwap(false, true) {
		log.Info().Str("trigger", trigger).Msg("Sweep already in progress, skipping")
		metrics.SweepsSkippedTotal.Inc()
		return nil, ErrSweepInProgress
	}
	defer d.sweeping.Store(false)

	if d.lock != nil {
		acquired, err := d.lock.Acquire(ctx)
		if err != nil {
			// A broken lock backend must not stall the engine; fall back to
			// the in-process guard.
			log.Error().Err(err).Msg("Sweep lock unavailable, proceeding unlocked")
		} else if !acquired {
			log.Info().Str("trigger", trigger).Msg("Sweep lock held elsewhere, skipping")
			metrics.SweepsSkippedTotal.Inc()
			return nil, ErrSweepHeldElsewhere
		} else {
			defer func() {
				if err := d.lock.Release(ctx); err != nil {
					log.Error().Err(err).Msg("Failed to release sweep lock")
				}
			}()
		}
	}

	start := d.Now()
	d.lastCheck.Store(start)
	d.sweepCount.Add(1)
	metrics.SweepsTotal.WithLabelValues(trigger).Inc()

	due, err := d.store.GetDue(ctx, start, d.config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due schedules: %w", err)
	}

	summary := &SweepSummary{
		Total:       len(due),
		PerSchedule: make([]ExecutionResult, 0, len(due)),
		StartedAt:   start,
	}

	for i := range due {
		result := d.execute(ctx, &due[i], ExecuteOptions{})
		if result.Success {
			summary.Successful++
		} else {
			summary.Failed++
		}
		summary.PerSchedule = append(summary.PerSchedule, result)
	}

	summary.FinishedAt = d.Now()
	duration := summary.FinishedAt.Sub(start)
	metrics.SweepDuration.Observe(duration.Seconds())

	if summary.Total > 0 {
		log.Info().
			Str("trigger", trigger).
			Int("total", summary.Total).
			Int("successful", summary.Successful).
			Int("failed", summary.Failed).
			Dur("duration", duration).
			Msg("Sweep completed")
	}

	return summary, nil
}

// execute shields the batch from anything escaping a single pipeline: one
// schedule's panic becomes its failed result, never the sweep's.
func (d *Dispatcher) execute(ctx context.Context, schedule *models.Schedule, opts ExecuteOptions) (result ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("schedule_id", schedule.ID.String()).
				Interface("panic", r).
				Msg("Execution panicked")
			result = ExecutionResult{
				ScheduleID: schedule.ID,
				Success:    false,
				Message:    fmt.Sprintf("execution panicked: %v", r),
			}
		}
	}()

	return d.executor.Execute(ctx, schedule, opts)
}

func (d *Dispatcher) interval(ctx context.Context) time.Duration {
	interval := d.config.SweepInterval
	if d.settings != nil {
		if v := d.settings.SweepInterval(ctx); v > 0 {
			interval = v
		}
	}
	if interval < MinSweepInterval {
		interval = MinSweepInterval
	}
	return interval
}
