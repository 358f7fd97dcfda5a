package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/postpilot-hq/postpilot/internal/domain/models"
)

type slowPublisher struct {
	delay time.Duration
	mu    sync.Mutex
	calls int
}

func (p *slowPublisher) Publish(ctx context.Context, userID uuid.UUID, text string) (string, error) {
	time.Sleep(p.delay)
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return "remote-1", nil
}

type fixedSettings struct {
	interval time.Duration
}

func (s *fixedSettings) SweepInterval(ctx context.Context) time.Duration { return s.interval }

type fakeLock struct {
	acquired bool
	err      error
	releases int
}

func (l *fakeLock) Acquire(ctx context.Context) (bool, error) { return l.acquired, l.err }
func (l *fakeLock) Release(ctx context.Context) error         { l.releases++; return nil }

func newTestDispatcher(due []models.Schedule, publishDelay time.Duration, lock SweepLock) (*Dispatcher, *fakeScheduleStore) {
	schedules := &fakeScheduleStore{due: due}
	posts := newFakePostStore()
	activity := &fakeActivityStore{}
	gov := &fakeGovernor{callAllowed: true, budgetAllowed: true}
	generator := &fakeGenerator{text: "copy"}
	pub := &slowPublisher{delay: publishDelay}
	gate := &fakeGate{open: true}

	executor := NewExecutor(schedules, posts, activity, gov, generator, pub, gate, testCalculator())

	d := NewDispatcher(schedules, executor, nil, lock, DefaultConfig())
	return d, schedules
}

func dueSchedules(n int) []models.Schedule {
	next := time.Now().Add(-time.Minute)
	out := make([]models.Schedule, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Schedule{
			ID:           uuid.New(),
			UserID:       uuid.New(),
			Name:         "due",
			Topic:        "topics",
			GenerateText: false,
			Time:         next.Add(-24 * time.Hour),
			Frequency:    models.FrequencyDaily,
			IsActive:     true,
			NextRunAt:    &next,
		})
	}
	return out
}

func TestTriggerSweepExecutesDueSchedules(t *testing.T) {
	d, store := newTestDispatcher(dueSchedules(3), 0, nil)

	summary, err := d.TriggerSweep(context.Background())
	if err != nil {
		t.Fatalf("TriggerSweep: %v", err)
	}

	if summary.Total != 3 || summary.Successful != 3 || summary.Failed != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if len(summary.PerSchedule) != 3 {
		t.Errorf("per-schedule results = %d, want 3", len(summary.PerSchedule))
	}
	if len(store.runs) != 3 {
		t.Errorf("runs recorded = %d, want 3", len(store.runs))
	}
	if d.Status().SweepCount != 1 {
		t.Errorf("sweep count = %d, want 1", d.Status().SweepCount)
	}
}

func TestConcurrentTriggersRunExactlyOneSweep(t *testing.T) {
	d, store := newTestDispatcher(dueSchedules(2), 50*time.Millisecond, nil)

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.TriggerSweep(context.Background())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, skipped int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrSweepInProgress):
			skipped++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	// At least one sweep ran; overlapping triggers were rejected, and the
	// total of runs matches the number of sweeps that actually happened.
	if succeeded < 1 {
		t.Fatalf("no trigger succeeded (skipped=%d)", skipped)
	}
	if succeeded+skipped != attempts {
		t.Errorf("succeeded=%d skipped=%d, want total %d", succeeded, skipped, attempts)
	}
	if got, want := len(store.runs), succeeded*2; got != want {
		t.Errorf("runs recorded = %d, want %d for %d sweeps", got, want, succeeded)
	}
}

func TestRunNowBypassesDueCheck(t *testing.T) {
	future := time.Now().Add(48 * time.Hour)
	notDue := models.Schedule{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		Name:         "future",
		Topic:        "later",
		GenerateText: false,
		Time:         future,
		Frequency:    models.FrequencyDaily,
		IsActive:     true,
		NextRunAt:    &future,
	}
	d, store := newTestDispatcher([]models.Schedule{notDue}, 0, nil)

	result, err := d.RunNow(context.Background(), notDue.ID, false)
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if !result.Success {
		t.Errorf("result = %+v", result)
	}
	if len(store.runs) != 1 {
		t.Errorf("runs recorded = %d, want 1", len(store.runs))
	}
}

func TestRunNowUnknownSchedule(t *testing.T) {
	d, _ := newTestDispatcher(nil, 0, nil)

	_, err := d.RunNow(context.Background(), uuid.New(), false)
	if !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("got %v, want ErrScheduleNotFound", err)
	}
}

func TestSweepLockHeldElsewhere(t *testing.T) {
	d, store := newTestDispatcher(dueSchedules(1), 0, &fakeLock{acquired: false})

	_, err := d.TriggerSweep(context.Background())
	if !errors.Is(err, ErrSweepHeldElsewhere) {
		t.Fatalf("got %v, want ErrSweepHeldElsewhere", err)
	}
	if len(store.runs) != 0 {
		t.Error("schedules executed while the lock was held elsewhere")
	}
}

func TestSweepLockReleasedAfterSweep(t *testing.T) {
	lock := &fakeLock{acquired: true}
	d, _ := newTestDispatcher(dueSchedules(1), 0, lock)

	if _, err := d.TriggerSweep(context.Background()); err != nil {
		t.Fatalf("TriggerSweep: %v", err)
	}
	if lock.releases != 1 {
		t.Errorf("lock releases = %d, want 1", lock.releases)
	}
}

func TestSweepLockErrorFallsBackToLocalGuard(t *testing.T) {
	lock := &fakeLock{err: errors.New("redis down")}
	d, store := newTestDispatcher(dueSchedules(1), 0, lock)

	// A broken lock backend must not stall sweeps.
	if _, err := d.TriggerSweep(context.Background()); err != nil {
		t.Fatalf("TriggerSweep: %v", err)
	}
	if len(store.runs) != 1 {
		t.Errorf("runs recorded = %d, want 1", len(store.runs))
	}
}

func TestStartStop(t *testing.T) {
	d, store := newTestDispatcher(dueSchedules(1), 0, nil)

	d.Start()
	// Start is idempotent.
	d.Start()

	// The startup sweep runs asynchronously; give it a moment.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d.Status().SweepCount >= 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if d.Status().SweepCount < 1 {
		t.Fatal("startup sweep never ran")
	}
	if !d.Status().Started {
		t.Error("status does not report started")
	}

	d.Stop()
	if d.Status().Started {
		t.Error("status reports started after Stop")
	}
	_ = store
}

func TestIntervalClampsToMinimum(t *testing.T) {
	schedules := &fakeScheduleStore{}
	executor := NewExecutor(schedules, newFakePostStore(), &fakeActivityStore{}, &fakeGovernor{callAllowed: true, budgetAllowed: true}, &fakeGenerator{text: "x"}, &slowPublisher{}, &fakeGate{open: true}, testCalculator())

	d := NewDispatcher(schedules, executor, &fixedSettings{interval: time.Second}, nil, DefaultConfig())
	if got := d.interval(context.Background()); got != MinSweepInterval {
		t.Errorf("interval = %v, want clamped %v", got, MinSweepInterval)
	}

	d = NewDispatcher(schedules, executor, &fixedSettings{interval: 5 * time.Minute}, nil, DefaultConfig())
	if got := d.interval(context.Background()); got != 5*time.Minute {
		t.Errorf("interval = %v, want 5m", got)
	}

	// No settings source falls back to the static config.
	d = NewDispatcher(schedules, executor, nil, nil, DefaultConfig())
	if got := d.interval(context.Background()); got != DefaultConfig().SweepInterval {
		t.Errorf("interval = %v, want config default", got)
	}
}
