package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/postpilot-hq/postpilot/internal/api/dto"
	"github.com/postpilot-hq/postpilot/internal/governor"
)

type UsageHandler struct {
	governor *governor.Governor
}

func NewUsageHandler(g *governor.Governor) *UsageHandler {
	return &UsageHandler{governor: g}
}

// Summary reports hourly call usage for one caller/endpoint pair and the
// daily token spend of one user, against current limits.
func (h *UsageHandler) Summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	caller := q.Get("caller")
	endpoint := q.Get("endpoint")
	method := q.Get("method")
	if caller == "" || endpoint == "" {
		dto.BadRequest(w, "caller and endpoint are required")
		return
	}
	if method == "" {
		method = http.MethodPost
	}

	var userID uuid.UUID
	if raw := q.Get("user_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			dto.BadRequest(w, "invalid user_id")
			return
		}
		userID = parsed
	}

	summary, err := h.governor.Summarize(r.Context(), caller, endpoint, method, userID)
	if err != nil {
		dto.InternalServerError(w, "Failed to summarize usage")
		return
	}
	dto.OK(w, summary)
}

// Statistics aggregates ledger rows by endpoint and method over a time range.
// The range defaults to the last 24 hours.
func (h *UsageHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := time.Now()

	from := now.Add(-24 * time.Hour)
	to := now
	if raw := q.Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			dto.BadRequest(w, "from must be RFC3339")
			return
		}
		from = parsed
	}
	if raw := q.Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			dto.BadRequest(w, "to must be RFC3339")
			return
		}
		to = parsed
	}
	if to.Before(from) {
		dto.BadRequest(w, "to must not precede from")
		return
	}

	stats, err := h.governor.Statistics(r.Context(), from, to)
	if err != nil {
		dto.InternalServerError(w, "Failed to aggregate usage")
		return
	}

	resp := make([]dto.EndpointUsageResponse, 0, len(stats))
	for _, s := range stats {
		resp = append(resp, dto.EndpointUsageResponse{
			Endpoint: s.Endpoint,
			Method:   s.Method,
			Calls:    s.Calls,
			Denied:   s.Denied,
		})
	}
	dto.OK(w, resp)
}

// ClearCache drops the in-memory sliding-window counters. The durable
// ledger is untouched.
func (h *UsageHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.governor.ClearCache()
	dto.OK(w, map[string]string{"status": "cleared"})
}
