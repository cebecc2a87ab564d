package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/kansenki/internal/apperror"
	"github.com/sakif/kansenki/internal/model"
	"github.com/sakif/kansenki/internal/normalize"
	"github.com/sakif/kansenki/internal/ranking"
	"github.com/sakif/kansenki/internal/repository"
)

// DefaultFeedTypes are shown when the feed request names no collections.
var DefaultFeedTypes = []string{
	model.CollectionPosts,
	model.CollectionSimplePosts,
	model.CollectionSpots,
}

// FeedQuery selects the collections and size of the home feed.
type FeedQuery struct {
	Types []string
	Limit int
}

// FeedService serves the home timeline and single items as unified posts.
type FeedService struct {
	store  repository.DocumentStore
	logger *slog.Logger
}

func NewFeedService(store repository.DocumentStore, logger *slog.Logger) *FeedService {
	return &FeedService{store: store, logger: logger}
}

// Latest fetches the newest Limit documents of every requested collection,
// merges them newest first and keeps Limit of them.
func (s *FeedService) Latest(ctx context.Context, viewerID string, q FeedQuery) ([]normalize.UnifiedPost, error) {
	types := q.Types
	if len(types) == 0 {
		types = DefaultFeedTypes
	}
	seen := make(map[string]bool, len(types))
	unique := make([]string, 0, len(types))
	for _, t := range types {
		if !model.IsPostLike(t) {
			return nil, apperror.ValidationFailed("types", fmt.Sprintf("unknown post type %q", t))
		}
		if !seen[t] {
			seen[t] = true
			unique = append(unique, t)
		}
	}
	limit := clampLimit(q.Limit)

	perCollection := make([][]model.Document, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	for i, collection := range unique {
		g.Go(func() error {
			docs, err := s.store.Query(gctx, collection, repository.Query{
				OrderBy: "createdAt",
				Desc:    true,
				Limit:   limit,
			})
			if err != nil {
				return fmt.Errorf("feed: fetching %s: %w", collection, err)
			}
			perCollection[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var candidates []ranking.Candidate
	for i, docs := range perCollection {
		for _, doc := range docs {
			candidates = append(candidates, ranking.Candidate{Collection: unique[i], Doc: doc})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return normalize.Timestamp(candidates[i].Doc["createdAt"]).After(normalize.Timestamp(candidates[j].Doc["createdAt"]))
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	authorIDs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		authorIDs = append(authorIDs, normalize.ResolveAuthorID(c.Doc))
	}
	profiles, err := ranking.ResolveProfiles(ctx, s.store, authorIDs)
	if err != nil {
		return nil, err
	}

	posts := make([]normalize.UnifiedPost, 0, len(candidates))
	for _, c := range candidates {
		posts = append(posts, normalize.NormalizeForViewer(c.Doc, c.Collection, ranking.ProfileFor(profiles, c.Doc), viewerID))
	}
	return posts, nil
}

// Get loads one document of a post-like collection as a unified post.
func (s *FeedService) Get(ctx context.Context, viewerID, collection, id string) (*normalize.UnifiedPost, error) {
	if err := requirePostLike(collection); err != nil {
		return nil, err
	}
	doc, err := s.store.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	posts, err := normalizeAll(ctx, s.store, collection, []model.Document{doc}, viewerID)
	if err != nil {
		return nil, err
	}
	return &posts[0], nil
}
