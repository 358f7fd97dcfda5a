package governor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/postpilot-hq/postpilot/internal/domain/models"
	"github.com/postpilot-hq/postpilot/internal/pkg/metrics"
	"github.com/rs/zerolog/log"
)

const warningThreshold = 0.8

// Ledger is the durable, append-only record store behind the governor. The
// in-memory counters are a speed layer only; the ledger is the source of
// truth for statistics and survives cache clears.
type Ledger interface {
	RecordCall(ctx context.Context, rec *models.UsageRecord) error
	RecordTokenSpend(ctx context.Context, rec *models.TokenSpend) error
	CountCallsSince(ctx context.Context, caller, endpoint, method string, since time.Time) (int64, error)
	SumTokensSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)
	StatsByEndpoint(ctx context.Context, from, to time.Time) ([]models.EndpointUsage, error)
}

// Settings supplies the runtime-mutable limits. Implementations fall back to
// compiled-in defaults when a value is missing or unreadable.
type Settings interface {
	RateLimit(ctx context.Context, endpoint string) int
	DailyTokenBudget(ctx context.Context) int
	NotifyCooldown(ctx context.Context) time.Duration
}

// Decision is the outcome of a call-rate check.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Governor enforces sliding-window call limits and the daily token budget.
// Construct one per process; counters are internal and synchronized, so tests
// can run independent instances.
type Governor struct {
	ledger   Ledger
	settings Settings
	notifier *Notifier

	window time.Duration

	mu       sync.Mutex
	counters map[string][]time.Time
	warned   map[string]string // userID -> day the 80% warning fired

	// Now is injectable for tests.
	Now func() time.Time
}

func New(ledger Ledger, settings Settings, notifier *Notifier) *Governor {
	return &Governor{
		ledger:   ledger,
		settings: settings,
		notifier: notifier,
		window:   time.Hour,
		counters: make(map[string][]time.Time),
		warned:   make(map[string]string),
		Now:      time.Now,
	}
}

// CheckCall increments the hourly sliding counter for (caller, endpoint,
// method), writes a ledger row regardless of the outcome, and reports whether
// the call is within the configured limit.
func (g *Governor) CheckCall(ctx context.Context, caller, endpoint, method string) (Decision, error) {
	now := g.Now()
	limit := g.settings.RateLimit(ctx, endpoint)

	g.mu.Lock()
	key := counterKey(caller, endpoint, method)
	entries := pruneBefore(g.counters[key], now.Add(-g.window))
	entries = append(entries, now)
	g.counters[key] = entries

	count := len(entries)
	resetAt := entries[0].Add(g.window)
	g.mu.Unlock()

	decision := Decision{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: max(0, limit-count),
		ResetAt:   resetAt,
	}

	rec := &models.UsageRecord{
		Caller:    caller,
		Endpoint:  endpoint,
		Method:    method,
		Allowed:   decision.Allowed,
		CreatedAt: now,
	}
	if err := g.ledger.RecordCall(ctx, rec); err != nil {
		log.Error().Err(err).Str("endpoint", endpoint).Msg("Failed to write usage record")
	}

	if decision.Allowed {
		metrics.GovernorChecksTotal.WithLabelValues("call", "allowed").Inc()
	} else {
		metrics.GovernorChecksTotal.WithLabelValues("call", "denied").Inc()
		g.notifier.RateLimitExceeded(ctx, caller, endpoint, method, limit)
	}

	return decision, nil
}

// CheckTokenBudget sums today's spend for the user and reports whether the
// estimated generation still fits the daily budget.
func (g *Governor) CheckTokenBudget(ctx context.Context, userID uuid.UUID, estimatedTokens int) (bool, error) {
	now := g.Now()
	budget := g.settings.DailyTokenBudget(ctx)

	spent, err := g.ledger.SumTokensSince(ctx, userID, dayStart(now))
	if err != nil {
		return false, fmt.Errorf("failed to sum token spend: %w", err)
	}

	allowed := spent+int64(estimatedTokens) <= int64(budget)
	if allowed {
		metrics.GovernorChecksTotal.WithLabelValues("tokens", "allowed").Inc()
	} else {
		metrics.GovernorChecksTotal.WithLabelValues("tokens", "denied").Inc()
		g.notifier.BudgetExceeded(ctx, userID, int(spent), budget)
	}
	return allowed, nil
}

// RecordSpend appends a token-spend row for an actual generation call and
// fires the 80% budget warning the first time the user crosses it that day.
func (g *Governor) RecordSpend(ctx context.Context, userID uuid.UUID, tokens int, model string) error {
	now := g.Now()
	rec := &models.TokenSpend{
		UserID:    userID,
		Tokens:    tokens,
		Model:     model,
		CreatedAt: now,
	}
	if err := g.ledger.RecordTokenSpend(ctx, rec); err != nil {
		return fmt.Errorf("failed to write token spend: %w", err)
	}

	budget := g.settings.DailyTokenBudget(ctx)
	if budget <= 0 {
		return nil
	}

	spent, err := g.ledger.SumTokensSince(ctx, userID, dayStart(now))
	if err != nil {
		return nil
	}

	if float64(spent) >= warningThreshold*float64(budget) {
		day := now.Format("2006-01-02")
		g.mu.Lock()
		already := g.warned[userID.String()] == day
		if !already {
			g.warned[userID.String()] = day
		}
		g.mu.Unlock()

		if !already {
			g.notifier.BudgetWarning(ctx, userID, int(spent), budget)
		}
	}

	return nil
}

// ClearCache resets the in-memory counters only. The ledger is untouched;
// statistics reads rebuild from it.
func (g *Governor) ClearCache() {
	g.mu.Lock()
	g.counters = make(map[string][]time.Time)
	g.warned = make(map[string]string)
	g.mu.Unlock()
	log.Info().Msg("Governor counter cache cleared")
}

// Statistics aggregates ledger rows grouped by endpoint and method.
func (g *Governor) Statistics(ctx context.Context, from, to time.Time) ([]models.EndpointUsage, error) {
	return g.ledger.StatsByEndpoint(ctx, from, to)
}

// Usage is one {used, limit, remaining, percentage} block of a summary.
type Usage struct {
	Used       int64   `json:"used"`
	Limit      int64   `json:"limit"`
	Remaining  int64   `json:"remaining"`
	Percentage float64 `json:"percentage"`
}

type Summary struct {
	HourlyCalls Usage `json:"hourly_calls"`
	DailyTokens Usage `json:"daily_tokens"`
}

// Summarize reports the ledger-derived usage of one caller/endpoint pair and
// one user's daily token spend.
func (g *Governor) Summarize(ctx context.Context, caller, endpoint, method string, userID uuid.UUID) (*Summary, error) {
	now := g.Now()

	calls, err := g.ledger.CountCallsSince(ctx, caller, endpoint, method, now.Add(-g.window))
	if err != nil {
		return nil, fmt.Errorf("failed to count calls: %w", err)
	}

	tokens, err := g.ledger.SumTokensSince(ctx, userID, dayStart(now))
	if err != nil {
		return nil, fmt.Errorf("failed to sum tokens: %w", err)
	}

	return &Summary{
		HourlyCalls: usageOf(calls, int64(g.settings.RateLimit(ctx, endpoint))),
		DailyTokens: usageOf(tokens, int64(g.settings.DailyTokenBudget(ctx))),
	}, nil
}

func usageOf(used, limit int64) Usage {
	u := Usage{Used: used, Limit: limit, Remaining: max(0, limit-used)}
	if limit > 0 {
		u.Percentage = float64(used) / float64(limit) * 100
	}
	return u
}

func counterKey(caller, endpoint, method string) string {
	return caller + "|" + endpoint + "|" + method
}

func pruneBefore(entries []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(entries) && !entries[i].After(cutoff) {
		i++
	}
	return entries[i:]
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
