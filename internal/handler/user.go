package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/kansenki/internal/apperror"
	"github.com/sakif/kansenki/internal/images"
	"github.com/sakif/kansenki/internal/service"
)

// UserHandler serves profile pages and the profile edit form.
type UserHandler struct {
	profiles   *service.ProfileService
	engagement *service.EngagementService
	logger     *slog.Logger
}

func NewUserHandler(profiles *service.ProfileService, engagement *service.EngagementService, logger *slog.Logger) *UserHandler {
	return &UserHandler{profiles: profiles, engagement: engagement, logger: logger}
}

// HandleGet handles GET /api/users/{uid}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.profiles.Get(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleGetByHandle resolves the public @handle used in profile URLs.
//
// HTTP: GET /api/users/by-handle/{handle}
func (h *UserHandler) HandleGetByHandle(w http.ResponseWriter, r *http.Request) {
	user, err := h.profiles.GetByHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdateMe saves the profile form. A new avatar comes as a single
// "avatar" file next to the "data" part.
//
// HTTP: PUT /api/users/me
// Auth: Required
func (h *UserHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var in service.ProfileInput
	files, cleanup, err := readForm(w, r, &in, "avatar")
	if err != nil {
		writeError(w, err)
		return
	}
	defer cleanup()

	var avatar *images.File
	switch len(files) {
	case 0:
	case 1:
		avatar = &files[0]
	default:
		writeError(w, apperror.ValidationFailed("avatar", "only one avatar image can be uploaded"))
		return
	}

	user, err := h.profiles.Update(r.Context(), viewerID(r), in, avatar)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandlePosts lists everything a user has published, newest first.
//
// HTTP: GET /api/users/{uid}/posts
func (h *UserHandler) HandlePosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.profiles.ListPosts(r.Context(), chi.URLParam(r, "uid"), viewerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleBookmarks handles GET /api/me/bookmarks (Auth: Required)
func (h *UserHandler) HandleBookmarks(w http.ResponseWriter, r *http.Request) {
	posts, err := h.engagement.Bookmarks(r.Context(), viewerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}
