package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/kansenki/internal/middleware"
	"github.com/sakif/kansenki/internal/service"
)

// ReactionHandler serves the buttons under every post: like, bookmark,
// "helpful" thanks, plus the view counter.
//
// All routes share the /api/{collection}/{id}/... shape, where collection is
// one of posts, simple-posts, spots or simple-travels.
type ReactionHandler struct {
	engagement *service.EngagementService
	logger     *slog.Logger
}

func NewReactionHandler(engagement *service.EngagementService, logger *slog.Logger) *ReactionHandler {
	return &ReactionHandler{engagement: engagement, logger: logger}
}

// ReactionResponse tells the client whether anything changed and the new
// button state.
type ReactionResponse struct {
	Changed bool            `json:"changed"`
	Status  *service.Status `json:"status"`
}

type reaction func(ctx context.Context, uid, collection, postID string) (bool, error)

// HandleLike handles POST /api/{collection}/{id}/like
//
// Guests can like too. Their like is keyed by the visitor cookie, so a
// browser counts once per post.
func (h *ReactionHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	if viewerID(r) != "" {
		h.react(w, r, h.engagement.Like)
		return
	}
	visitor := middleware.VisitorIDFromContext(r.Context())
	h.react(w, r, func(ctx context.Context, _, collection, postID string) (bool, error) {
		return h.engagement.AnonymousLike(ctx, visitor, collection, postID)
	})
}

// HandleUnlike handles DELETE /api/{collection}/{id}/like (Auth: Required)
func (h *ReactionHandler) HandleUnlike(w http.ResponseWriter, r *http.Request) {
	h.react(w, r, h.engagement.Unlike)
}

// HandleBookmark handles POST /api/{collection}/{id}/bookmark (Auth: Required)
func (h *ReactionHandler) HandleBookmark(w http.ResponseWriter, r *http.Request) {
	h.react(w, r, h.engagement.Bookmark)
}

// HandleUnbookmark handles DELETE /api/{collection}/{id}/bookmark (Auth: Required)
func (h *ReactionHandler) HandleUnbookmark(w http.ResponseWriter, r *http.Request) {
	h.react(w, r, h.engagement.Unbookmark)
}

// HandleThank handles POST /api/{collection}/{id}/thanks (Auth: Required)
func (h *ReactionHandler) HandleThank(w http.ResponseWriter, r *http.Request) {
	h.react(w, r, h.engagement.Thank)
}

// HandleUnthank handles DELETE /api/{collection}/{id}/thanks (Auth: Required)
func (h *ReactionHandler) HandleUnthank(w http.ResponseWriter, r *http.Request) {
	h.react(w, r, h.engagement.Unthank)
}

func (h *ReactionHandler) react(w http.ResponseWriter, r *http.Request, do reaction) {
	collection, id := target(r)
	uid := viewerID(r)

	changed, err := do(r.Context(), uid, collection, id)
	if err != nil {
		writeError(w, err)
		return
	}

	status, err := h.engagement.Status(r.Context(), uid, middleware.VisitorIDFromContext(r.Context()), collection, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReactionResponse{Changed: changed, Status: status})
}

// HandleView counts a page view.
//
// HTTP: POST /api/{collection}/{id}/view
func (h *ReactionHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	collection, id := target(r)
	if err := h.engagement.RecordView(r.Context(), collection, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStatus returns the counters and the viewer's own reactions.
//
// HTTP: GET /api/{collection}/{id}/status
func (h *ReactionHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	collection, id := target(r)
	status, err := h.engagement.Status(r.Context(), viewerID(r), middleware.VisitorIDFromContext(r.Context()), collection, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
