package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/postpilot-hq/postpilot/internal/api/dto"
	"github.com/postpilot-hq/postpilot/internal/domain/repositories"
	"github.com/postpilot-hq/postpilot/internal/domain/services"
	"github.com/postpilot-hq/postpilot/internal/scheduler"
	"github.com/postpilot-hq/postpilot/internal/pkg/validator"
)

type ScheduleHandler struct {
	service    *services.ScheduleService
	dispatcher *scheduler.Dispatcher
}

func NewScheduleHandler(service *services.ScheduleService, dispatcher *scheduler.Dispatcher) *ScheduleHandler {
	return &ScheduleHandler{service: service, dispatcher: dispatcher}
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	opts := repositories.NewListOptions(page, perPage)

	if rawUserID := r.URL.Query().Get("user_id"); rawUserID != "" {
		userID, err := uuid.Parse(rawUserID)
		if err != nil {
			dto.BadRequest(w, "invalid user_id")
			return
		}
		schedules, total, err := h.service.ListByUser(r.Context(), userID, opts)
		if err != nil {
			dto.InternalServerError(w, "Failed to list schedules")
			return
		}
		dto.JSONWithMeta(w, http.StatusOK, schedules, listMeta(page, perPage, total))
		return
	}

	schedules, total, err := h.service.List(r.Context(), opts)
	if err != nil {
		dto.InternalServerError(w, "Failed to list schedules")
		return
	}
	dto.JSONWithMeta(w, http.StatusOK, schedules, listMeta(page, perPage, total))
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.CreateScheduleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		dto.BadRequest(w, "invalid request body")
		return
	}
	if err := validator.Validate(input); err != nil {
		dto.ValidationErrorResponse(w, err)
		return
	}

	schedule, err := h.service.Create(r.Context(), input)
	if err != nil {
		dto.BadRequest(w, err.Error())
		return
	}
	dto.Created(w, schedule)
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	schedule, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrScheduleNotFound) {
			dto.NotFound(w, "Schedule")
			return
		}
		dto.InternalServerError(w, "Failed to load schedule")
		return
	}
	dto.OK(w, schedule)
}

func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	var input services.UpdateScheduleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		dto.BadRequest(w, "invalid request body")
		return
	}
	if err := validator.Validate(input); err != nil {
		dto.ValidationErrorResponse(w, err)
		return
	}

	schedule, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		if errors.Is(err, services.ErrScheduleNotFound) {
			dto.NotFound(w, "Schedule")
			return
		}
		dto.BadRequest(w, err.Error())
		return
	}
	dto.OK(w, schedule)
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, services.ErrScheduleNotFound) {
			dto.NotFound(w, "Schedule")
			return
		}
		dto.InternalServerError(w, "Failed to delete schedule")
		return
	}
	dto.NoContent(w)
}

func (h *ScheduleHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	schedule, err := h.service.Activate(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrScheduleNotFound) {
			dto.NotFound(w, "Schedule")
			return
		}
		dto.BadRequest(w, err.Error())
		return
	}
	dto.OK(w, schedule)
}

func (h *ScheduleHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	schedule, err := h.service.Deactivate(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrScheduleNotFound) {
			dto.NotFound(w, "Schedule")
			return
		}
		dto.InternalServerError(w, "Failed to deactivate schedule")
		return
	}
	dto.OK(w, schedule)
}

func (h *ScheduleHandler) Reset(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	schedule, err := h.service.Reset(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrScheduleNotFound) {
			dto.NotFound(w, "Schedule")
			return
		}
		dto.InternalServerError(w, "Failed to reset schedule")
		return
	}
	dto.OK(w, schedule)
}

// Run executes one schedule immediately, skipping the due check. Emergency
// runs also bypass the maintenance gate.
func (h *ScheduleHandler) Run(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	var req dto.RunScheduleRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			dto.BadRequest(w, "invalid request body")
			return
		}
	}

	result, err := h.dispatcher.RunNow(r.Context(), id, req.Emergency)
	if err != nil {
		if errors.Is(err, scheduler.ErrScheduleNotFound) {
			dto.NotFound(w, "Schedule")
			return
		}
		dto.InternalServerError(w, "Failed to run schedule")
		return
	}
	dto.OK(w, result)
}

func scheduleID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "scheduleID"))
	if err != nil {
		dto.BadRequest(w, "invalid schedule ID")
		return uuid.Nil, false
	}
	return id, true
}

func listMeta(page, perPage int, total int64) *dto.Meta {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	return &dto.Meta{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}
