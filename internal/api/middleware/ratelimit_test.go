package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/postpilot-hq/postpilot/internal/governor"
)

type stubGovernor struct {
	decision governor.Decision
	err      error
	caller   string
	endpoint string
}

func (g *stubGovernor) CheckCall(ctx context.Context, caller, endpoint, method string) (governor.Decision, error) {
	g.caller = caller
	g.endpoint = endpoint
	return g.decision, g.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterAllows(t *testing.T) {
	gov := &stubGovernor{decision: governor.Decision{
		Allowed:   true,
		Limit:     100,
		Remaining: 99,
		ResetAt:   time.Date(2026, 6, 1, 13, 0, 0, 0, time.UTC),
	}}
	handler := NewRateLimiter(gov).Limit()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/schedules", nil)
	req.RemoteAddr = "203.0.113.7:4321"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "100" {
		t.Errorf("X-RateLimit-Limit = %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "99" {
		t.Errorf("X-RateLimit-Remaining = %q", got)
	}
	if gov.caller != "ip:203.0.113.7" {
		t.Errorf("caller = %q", gov.caller)
	}
}

func TestRateLimiterDenies(t *testing.T) {
	gov := &stubGovernor{decision: governor.Decision{Allowed: false, Limit: 10}}
	handler := NewRateLimiter(gov).Limit()(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatcher/sweep", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}

func TestRateLimiterAllowsOnGovernorError(t *testing.T) {
	gov := &stubGovernor{err: errors.New("ledger unavailable")}
	handler := NewRateLimiter(gov).Limit()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// Governance failures degrade open.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestCallerKeyPrefersAPIKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil)
	req.Header.Set("X-API-Key", "abc123")
	if got := callerKey(req); got != "key:abc123" {
		t.Errorf("callerKey = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil)
	req.RemoteAddr = "198.51.100.2:9999"
	req.Header.Set("X-Forwarded-For", "192.0.2.1")
	if got := callerKey(req); got != "ip:192.0.2.1" {
		t.Errorf("callerKey = %q", got)
	}
}
