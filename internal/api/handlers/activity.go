package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/postpilot-hq/postpilot/internal/api/dto"
	"github.com/postpilot-hq/postpilot/internal/domain/repositories"
)

type ActivityHandler struct {
	repo *repositories.ActivityRepository
}

func NewActivityHandler(repo *repositories.ActivityRepository) *ActivityHandler {
	return &ActivityHandler{repo: repo}
}

func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	opts := repositories.NewListOptions(page, perPage)

	if raw := q.Get("schedule_id"); raw != "" {
		scheduleID, err := uuid.Parse(raw)
		if err != nil {
			dto.BadRequest(w, "invalid schedule_id")
			return
		}
		logs, total, err := h.repo.FindByScheduleID(r.Context(), scheduleID, opts)
		if err != nil {
			dto.InternalServerError(w, "Failed to list activity")
			return
		}
		dto.JSONWithMeta(w, http.StatusOK, logs, listMeta(page, perPage, total))
		return
	}

	logs, total, err := h.repo.FindRecent(r.Context(), q.Get("action"), opts)
	if err != nil {
		dto.InternalServerError(w, "Failed to list activity")
		return
	}
	dto.JSONWithMeta(w, http.StatusOK, logs, listMeta(page, perPage, total))
}
