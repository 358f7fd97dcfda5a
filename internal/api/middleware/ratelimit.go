package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/postpilot-hq/postpilot/internal/api/dto"
	"github.com/postpilot-hq/postpilot/internal/governor"
	"github.com/rs/zerolog/log"
)

// CallGovernor is the slice of the usage governor the HTTP layer needs.
type CallGovernor interface {
	CheckCall(ctx context.Context, caller, endpoint, method string) (governor.Decision, error)
}

type RateLimiter struct {
	governor CallGovernor
}

func NewRateLimiter(g CallGovernor) *RateLimiter {
	return &RateLimiter{governor: g}
}

// Limit runs every request through the usage governor, keyed by caller,
// route pattern and method. A governor failure lets the request through;
// throttling must never take the API down with it.
func (rl *RateLimiter) Limit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			endpoint := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				endpoint = rctx.RoutePattern()
			}

			decision, err := rl.governor.CheckCall(r.Context(), callerKey(r), endpoint, r.Method)
			if err != nil {
				log.Error().Err(err).Str("endpoint", endpoint).Msg("Governor check failed, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", decision.ResetAt.Unix()))

			if !decision.Allowed {
				dto.TooManyRequests(w, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return "key:" + key
	}
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ip = forwarded
	}
	return "ip:" + ip
}
