package handlers

import (
	"errors"
	"net/http"

	"github.com/postpilot-hq/postpilot/internal/api/dto"
	"github.com/postpilot-hq/postpilot/internal/scheduler"
)

type DispatcherHandler struct {
	dispatcher *scheduler.Dispatcher
}

func NewDispatcherHandler(dispatcher *scheduler.Dispatcher) *DispatcherHandler {
	return &DispatcherHandler{dispatcher: dispatcher}
}

// TriggerSweep starts a manual sweep and waits for it to finish. A sweep
// already in flight yields 409 rather than a second concurrent sweep.
func (h *DispatcherHandler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	summary, err := h.dispatcher.TriggerSweep(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrSweepInProgress):
			dto.Conflict(w, "a sweep is already in progress")
		case errors.Is(err, scheduler.ErrSweepHeldElsewhere):
			dto.Conflict(w, "another instance is sweeping")
		default:
			dto.InternalServerError(w, "Sweep failed")
		}
		return
	}

	resp := dto.SweepResponse{
		Total:      summary.Total,
		Successful: summary.Successful,
		Failed:     summary.Failed,
		StartedAt:  summary.StartedAt.Unix(),
		FinishedAt: summary.FinishedAt.Unix(),
		DurationMs: summary.FinishedAt.Sub(summary.StartedAt).Milliseconds(),
	}
	for _, res := range summary.PerSchedule {
		item := dto.SweepScheduleResponse{
			ScheduleID: res.ScheduleID.String(),
			Success:    res.Success,
			Message:    res.Message,
		}
		if res.PostID != nil {
			item.PostID = res.PostID.String()
		}
		if res.RemoteID != nil {
			item.RemoteID = *res.RemoteID
		}
		resp.PerSchedule = append(resp.PerSchedule, item)
	}

	dto.OK(w, resp)
}

func (h *DispatcherHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := h.dispatcher.Status()

	resp := dto.SchedulerStatusResponse{
		IsRunning:  status.IsRunning,
		Started:    status.Started,
		SweepCount: status.SweepCount,
	}
	if !status.LastCheckAt.IsZero() {
		ts := status.LastCheckAt.Unix()
		resp.LastCheckAt = &ts
	}

	dto.OK(w, resp)
}
