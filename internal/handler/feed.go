package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/kansenki/internal/ranking"
	"github.com/sakif/kansenki/internal/service"
)

// FeedHandler serves the read side of the home page: the latest posts, the
// ranking and single items, all as unified posts.
type FeedHandler struct {
	feed    *service.FeedService
	ranking *ranking.Aggregator
	logger  *slog.Logger
}

func NewFeedHandler(feed *service.FeedService, agg *ranking.Aggregator, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{feed: feed, ranking: agg, logger: logger}
}

// HandleLatest returns the newest posts across collections.
//
// HTTP: GET /api/feed?types=posts,spots&limit=20
func (h *FeedHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}

	posts, err := h.feed.Latest(r.Context(), viewerID(r), service.FeedQuery{
		Types: queryList(r, "types"),
		Limit: limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleRanking returns the top posts by likes and "helpful" count.
//
// HTTP: GET /api/ranking
func (h *FeedHandler) HandleRanking(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ranking.Top(r.Context(), viewerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleItem returns one document of any post-like collection.
//
// HTTP: GET /api/items/{collection}/{id}
func (h *FeedHandler) HandleItem(w http.ResponseWriter, r *http.Request) {
	collection, id := target(r)
	item, err := h.feed.Get(r.Context(), viewerID(r), collection, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
