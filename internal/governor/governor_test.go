package governor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/postpilot-hq/postpilot/internal/domain/models"
)

type fakeLedger struct {
	mu     sync.Mutex
	calls  []models.UsageRecord
	spends []models.TokenSpend
}

func (l *fakeLedger) RecordCall(ctx context.Context, rec *models.UsageRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, *rec)
	return nil
}

func (l *fakeLedger) RecordTokenSpend(ctx context.Context, rec *models.TokenSpend) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.spends = append(l.spends, *rec)
	return nil
}

func (l *fakeLedger) CountCallsSince(ctx context.Context, caller, endpoint, method string, since time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for _, c := range l.calls {
		if c.Caller == caller && c.Endpoint == endpoint && c.Method == method && c.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (l *fakeLedger) SumTokensSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var sum int64
	for _, s := range l.spends {
		if s.UserID == userID && !s.CreatedAt.Before(since) {
			sum += int64(s.Tokens)
		}
	}
	return sum, nil
}

func (l *fakeLedger) StatsByEndpoint(ctx context.Context, from, to time.Time) ([]models.EndpointUsage, error) {
	return nil, nil
}

func (l *fakeLedger) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

type fakeSettings struct {
	rateLimit int
	budget    int
	cooldown  time.Duration
}

func (s *fakeSettings) RateLimit(ctx context.Context, endpoint string) int { return s.rateLimit }
func (s *fakeSettings) DailyTokenBudget(ctx context.Context) int          { return s.budget }
func (s *fakeSettings) NotifyCooldown(ctx context.Context) time.Duration {
	if s.cooldown == 0 {
		return 15 * time.Minute
	}
	return s.cooldown
}

type fakeActivity struct {
	mu      sync.Mutex
	entries []models.ActivityLog
}

func (a *fakeActivity) Append(ctx context.Context, entry *models.ActivityLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, *entry)
	return nil
}

func (a *fakeActivity) byAction(action string) []models.ActivityLog {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.ActivityLog
	for _, e := range a.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

func newTestGovernor(settings *fakeSettings) (*Governor, *fakeLedger, *fakeActivity) {
	ledger := &fakeLedger{}
	activity := &fakeActivity{}
	notifier := NewNotifier(activity, settings, nil)
	g := New(ledger, settings, notifier)

	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	g.Now = func() time.Time { return base }
	notifier.Now = g.Now
	return g, ledger, activity
}

func TestCheckCallLimitBoundary(t *testing.T) {
	g, ledger, activity := newTestGovernor(&fakeSettings{rateLimit: 3, budget: 1000})
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		decision, err := g.CheckCall(ctx, "user-1", "content.generate", "POST")
		if err != nil {
			t.Fatalf("CheckCall %d: %v", i, err)
		}
		if !decision.Allowed {
			t.Errorf("call %d within limit denied", i)
		}
		if decision.Remaining != 3-i {
			t.Errorf("call %d: remaining = %d, want %d", i, decision.Remaining, 3-i)
		}
	}

	decision, err := g.CheckCall(ctx, "user-1", "content.generate", "POST")
	if err != nil {
		t.Fatalf("CheckCall: %v", err)
	}
	if decision.Allowed {
		t.Error("call over the limit was allowed")
	}
	if decision.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", decision.Remaining)
	}

	// Every check writes a ledger row, denied ones included.
	if got := ledger.callCount(); got != 4 {
		t.Errorf("ledger rows = %d, want 4", got)
	}
	if ledger.calls[3].Allowed {
		t.Error("denied call recorded as allowed")
	}

	if hits := activity.byAction(models.ActivityRateLimitHit); len(hits) != 1 {
		t.Errorf("rate limit notifications = %d, want 1", len(hits))
	}
}

func TestCheckCallKeysAreIndependent(t *testing.T) {
	g, _, _ := newTestGovernor(&fakeSettings{rateLimit: 1, budget: 1000})
	ctx := context.Background()

	if d, _ := g.CheckCall(ctx, "user-1", "content.generate", "POST"); !d.Allowed {
		t.Fatal("first call denied")
	}
	if d, _ := g.CheckCall(ctx, "user-1", "content.generate", "POST"); d.Allowed {
		t.Error("second call on the same key allowed")
	}

	// A different caller, endpoint or method gets its own window.
	if d, _ := g.CheckCall(ctx, "user-2", "content.generate", "POST"); !d.Allowed {
		t.Error("other caller denied")
	}
	if d, _ := g.CheckCall(ctx, "user-1", "publisher.publish", "POST"); !d.Allowed {
		t.Error("other endpoint denied")
	}
	if d, _ := g.CheckCall(ctx, "user-1", "content.generate", "GET"); !d.Allowed {
		t.Error("other method denied")
	}
}

func TestCheckCallWindowExpiry(t *testing.T) {
	g, _, _ := newTestGovernor(&fakeSettings{rateLimit: 1, budget: 1000})
	ctx := context.Background()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	g.Now = func() time.Time { return now }

	if d, _ := g.CheckCall(ctx, "user-1", "content.generate", "POST"); !d.Allowed {
		t.Fatal("first call denied")
	}
	if d, _ := g.CheckCall(ctx, "user-1", "content.generate", "POST"); d.Allowed {
		t.Fatal("second call inside the window allowed")
	}

	// Just past the hour the first entry falls out of the window.
	now = now.Add(time.Hour + time.Second)
	if d, _ := g.CheckCall(ctx, "user-1", "content.generate", "POST"); !d.Allowed {
		t.Error("call denied after window expiry")
	}
}

func TestClearCacheResetsCountersNotLedger(t *testing.T) {
	g, ledger, _ := newTestGovernor(&fakeSettings{rateLimit: 1, budget: 1000})
	ctx := context.Background()

	g.CheckCall(ctx, "user-1", "content.generate", "POST")
	if d, _ := g.CheckCall(ctx, "user-1", "content.generate", "POST"); d.Allowed {
		t.Fatal("second call allowed before cache clear")
	}

	g.ClearCache()

	if d, _ := g.CheckCall(ctx, "user-1", "content.generate", "POST"); !d.Allowed {
		t.Error("call denied after cache clear")
	}
	// Ledger history survives the clear.
	if got := ledger.callCount(); got != 3 {
		t.Errorf("ledger rows = %d, want 3", got)
	}
}

func TestCheckTokenBudget(t *testing.T) {
	g, ledger, activity := newTestGovernor(&fakeSettings{rateLimit: 100, budget: 1000})
	ctx := context.Background()
	userID := uuid.New()

	ledger.spends = append(ledger.spends, models.TokenSpend{
		UserID:    userID,
		Tokens:    900,
		CreatedAt: g.Now(),
	})

	// 900 + 100 == budget, still allowed.
	allowed, err := g.CheckTokenBudget(ctx, userID, 100)
	if err != nil {
		t.Fatalf("CheckTokenBudget: %v", err)
	}
	if !allowed {
		t.Error("spend exactly at budget denied")
	}

	allowed, err = g.CheckTokenBudget(ctx, userID, 101)
	if err != nil {
		t.Fatalf("CheckTokenBudget: %v", err)
	}
	if allowed {
		t.Error("spend over budget allowed")
	}
	if hits := activity.byAction(models.ActivityBudgetExceeded); len(hits) != 1 {
		t.Errorf("budget exceeded notifications = %d, want 1", len(hits))
	}
}

func TestCheckTokenBudgetIgnoresYesterday(t *testing.T) {
	g, ledger, _ := newTestGovernor(&fakeSettings{rateLimit: 100, budget: 1000})
	ctx := context.Background()
	userID := uuid.New()

	ledger.spends = append(ledger.spends, models.TokenSpend{
		UserID:    userID,
		Tokens:    999,
		CreatedAt: g.Now().Add(-24 * time.Hour),
	})

	allowed, err := g.CheckTokenBudget(ctx, userID, 500)
	if err != nil {
		t.Fatalf("CheckTokenBudget: %v", err)
	}
	if !allowed {
		t.Error("yesterday's spend counted against today's budget")
	}
}

func TestRecordSpendWarnsOncePerDay(t *testing.T) {
	g, _, activity := newTestGovernor(&fakeSettings{rateLimit: 100, budget: 1000})
	ctx := context.Background()
	userID := uuid.New()

	day := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	g.Now = func() time.Time { return day }

	if err := g.RecordSpend(ctx, userID, 500, "gpt-4o-mini"); err != nil {
		t.Fatalf("RecordSpend: %v", err)
	}
	if warnings := activity.byAction(models.ActivityBudgetWarning); len(warnings) != 0 {
		t.Fatalf("warning fired below the threshold: %d", len(warnings))
	}

	// 500 + 300 = 800 crosses the 80% threshold.
	if err := g.RecordSpend(ctx, userID, 300, "gpt-4o-mini"); err != nil {
		t.Fatalf("RecordSpend: %v", err)
	}
	if warnings := activity.byAction(models.ActivityBudgetWarning); len(warnings) != 1 {
		t.Fatalf("warnings = %d, want 1", len(warnings))
	}

	// Still over the threshold, but the warning already fired today.
	if err := g.RecordSpend(ctx, userID, 50, "gpt-4o-mini"); err != nil {
		t.Fatalf("RecordSpend: %v", err)
	}
	if warnings := activity.byAction(models.ActivityBudgetWarning); len(warnings) != 1 {
		t.Fatalf("warnings = %d after repeat spend, want 1", len(warnings))
	}

	// A new day re-arms the warning.
	day = day.Add(24 * time.Hour)
	if err := g.RecordSpend(ctx, userID, 900, "gpt-4o-mini"); err != nil {
		t.Fatalf("RecordSpend: %v", err)
	}
	if warnings := activity.byAction(models.ActivityBudgetWarning); len(warnings) != 2 {
		t.Fatalf("warnings = %d on the next day, want 2", len(warnings))
	}
}

func TestSummarize(t *testing.T) {
	g, ledger, _ := newTestGovernor(&fakeSettings{rateLimit: 10, budget: 1000})
	ctx := context.Background()
	userID := uuid.New()

	for i := 0; i < 4; i++ {
		g.CheckCall(ctx, "user-1", "content.generate", "POST")
	}
	ledger.spends = append(ledger.spends, models.TokenSpend{
		UserID:    userID,
		Tokens:    250,
		CreatedAt: g.Now(),
	})

	summary, err := g.Summarize(ctx, "user-1", "content.generate", "POST", userID)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	if summary.HourlyCalls.Used != 4 || summary.HourlyCalls.Limit != 10 || summary.HourlyCalls.Remaining != 6 {
		t.Errorf("hourly calls = %+v", summary.HourlyCalls)
	}
	if summary.DailyTokens.Used != 250 || summary.DailyTokens.Remaining != 750 {
		t.Errorf("daily tokens = %+v", summary.DailyTokens)
	}
	if summary.DailyTokens.Percentage != 25 {
		t.Errorf("percentage = %v, want 25", summary.DailyTokens.Percentage)
	}
}
