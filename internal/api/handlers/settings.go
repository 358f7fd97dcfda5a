package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/postpilot-hq/postpilot/internal/api/dto"
	"github.com/postpilot-hq/postpilot/internal/domain/services"
	"github.com/postpilot-hq/postpilot/internal/pkg/validator"
)

type SettingsHandler struct {
	settings *services.SettingsService
}

func NewSettingsHandler(settings *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

func (h *SettingsHandler) List(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.All(r.Context())
	if err != nil {
		dto.InternalServerError(w, "Failed to list settings")
		return
	}
	dto.OK(w, settings)
}

// Update writes one setting. Changes take effect on the next read; the
// dispatcher picks up a new sweep interval on its next tick.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req dto.UpdateSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		dto.BadRequest(w, "invalid request body")
		return
	}
	if err := validator.Validate(req); err != nil {
		dto.ValidationErrorResponse(w, err)
		return
	}

	if err := h.settings.Set(r.Context(), key, req.Value); err != nil {
		if errors.Is(err, services.ErrUnknownSetting) {
			dto.NotFound(w, "Setting")
			return
		}
		dto.BadRequest(w, err.Error())
		return
	}

	dto.OK(w, map[string]string{"key": key, "value": req.Value})
}
