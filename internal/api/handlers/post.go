package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/postpilot-hq/postpilot/internal/api/dto"
	"github.com/postpilot-hq/postpilot/internal/domain/repositories"
	"gorm.io/gorm"
)

type PostHandler struct {
	repo *repositories.PostRepository
}

func NewPostHandler(repo *repositories.PostRepository) *PostHandler {
	return &PostHandler{repo: repo}
}

func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
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
		posts, total, err := h.repo.FindByScheduleID(r.Context(), scheduleID, opts)
		if err != nil {
			dto.InternalServerError(w, "Failed to list posts")
			return
		}
		dto.JSONWithMeta(w, http.StatusOK, posts, listMeta(page, perPage, total))
		return
	}

	if raw := q.Get("user_id"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			dto.BadRequest(w, "invalid user_id")
			return
		}
		posts, total, err := h.repo.FindByUserID(r.Context(), userID, opts)
		if err != nil {
			dto.InternalServerError(w, "Failed to list posts")
			return
		}
		dto.JSONWithMeta(w, http.StatusOK, posts, listMeta(page, perPage, total))
		return
	}

	posts, total, err := h.repo.FindAll(r.Context(), opts)
	if err != nil {
		dto.InternalServerError(w, "Failed to list posts")
		return
	}
	dto.JSONWithMeta(w, http.StatusOK, posts, listMeta(page, perPage, total))
}

func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "postID"))
	if err != nil {
		dto.BadRequest(w, "invalid post ID")
		return
	}

	post, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			dto.NotFound(w, "Post")
			return
		}
		dto.InternalServerError(w, "Failed to load post")
		return
	}
	dto.OK(w, post)
}
