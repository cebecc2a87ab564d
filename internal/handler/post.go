package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/kansenki/internal/service"
)

// PostHandler serves the two match report forms. The same handlers are
// mounted under /api/posts and /api/simple-posts; the collection is bound
// when the route is registered.
type PostHandler struct {
	posts  *service.PostService
	logger *slog.Logger
}

func NewPostHandler(posts *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, logger: logger}
}

// HandleCreate publishes a report.
//
// HTTP: POST /api/posts | /api/simple-posts
// Body: JSON, or multipart with "data" (JSON) and up to 5 "images"
// Auth: Required
func (h *PostHandler) HandleCreate(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.PostInput
		files, cleanup, err := readForm(w, r, &in, "images")
		if err != nil {
			writeError(w, err)
			return
		}
		defer cleanup()

		post, err := h.posts.Submit(r.Context(), viewerID(r), collection, in, files)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, post)
	}
}

// HandleUpdate edits a report. Omitting imageUrls keeps the stored photos;
// new files are appended to them.
//
// HTTP: PUT /api/posts/{id} | /api/simple-posts/{id}
// Auth: Required (author only)
func (h *PostHandler) HandleUpdate(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.PostInput
		files, cleanup, err := readForm(w, r, &in, "images")
		if err != nil {
			writeError(w, err)
			return
		}
		defer cleanup()

		post, err := h.posts.Update(r.Context(), viewerID(r), collection, chi.URLParam(r, "id"), in, files)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, post)
	}
}

// HandleDelete removes a report.
//
// HTTP: DELETE /api/posts/{id} | /api/simple-posts/{id}
// Auth: Required (author only)
func (h *PostHandler) HandleDelete(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.posts.Delete(r.Context(), viewerID(r), collection, chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
