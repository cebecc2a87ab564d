package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/kansenki/internal/apperror"
	"github.com/sakif/kansenki/internal/model"
	"github.com/sakif/kansenki/internal/normalize"
	"github.com/sakif/kansenki/internal/ranking"
	"github.com/sakif/kansenki/internal/repository"
)

// reactionCounters maps a per-user subcollection to the counter it drives.
var reactionCounters = map[string]string{
	model.SubLikes:     model.FieldLikeCount,
	model.SubBookmarks: model.FieldBookmarkCount,
	model.SubThanks:    model.FieldHelpfulCount,
}

// EngagementService records likes, bookmarks, thanks and views.
//
// A reaction is a document users/{uid}/{likes|bookmarks|thanks}/{postId}
// plus a counter on the post. The reaction document is written first and
// its id makes the operation idempotent: liking twice changes nothing.
type EngagementService struct {
	store  repository.DocumentStore
	logger *slog.Logger
}

func NewEngagementService(store repository.DocumentStore, logger *slog.Logger) *EngagementService {
	return &EngagementService{store: store, logger: logger}
}

func (s *EngagementService) Like(ctx context.Context, uid, collection, postID string) (bool, error) {
	return s.react(ctx, uid, model.SubLikes, collection, postID)
}

func (s *EngagementService) Unlike(ctx context.Context, uid, collection, postID string) (bool, error) {
	return s.unreact(ctx, uid, model.SubLikes, collection, postID)
}

func (s *EngagementService) Bookmark(ctx context.Context, uid, collection, postID string) (bool, error) {
	return s.react(ctx, uid, model.SubBookmarks, collection, postID)
}

func (s *EngagementService) Unbookmark(ctx context.Context, uid, collection, postID string) (bool, error) {
	return s.unreact(ctx, uid, model.SubBookmarks, collection, postID)
}

// Thank marks a post as helpful.
func (s *EngagementService) Thank(ctx context.Context, uid, collection, postID string) (bool, error) {
	return s.react(ctx, uid, model.SubThanks, collection, postID)
}

func (s *EngagementService) Unthank(ctx context.Context, uid, collection, postID string) (bool, error) {
	return s.unreact(ctx, uid, model.SubThanks, collection, postID)
}

// react reports whether anything changed.
func (s *EngagementService) react(ctx context.Context, uid, sub, collection, postID string) (bool, error) {
	if err := requireUser(uid); err != nil {
		return false, err
	}
	if err := s.requirePost(ctx, collection, postID); err != nil {
		return false, err
	}

	reaction := model.Document{
		"collection": collection,
		"postId":     postID,
		"createdAt":  now(),
	}
	if _, err := s.store.Create(ctx, model.UserSubcollection(uid, sub), postID, reaction); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return false, nil
		}
		return false, fmt.Errorf("saving %s: %w", sub, err)
	}

	if err := s.store.Increment(ctx, collection, postID, reactionCounters[sub], 1); err != nil {
		s.logger.Error("counter not incremented",
			slog.String("counter", reactionCounters[sub]),
			slog.String("post", postID),
			slog.String("error", err.Error()),
		)
		return true, fmt.Errorf("incrementing %s: %w", reactionCounters[sub], err)
	}

	s.logger.Debug("reaction added", slog.String("kind", sub), slog.String("uid", uid), slog.String("post", postID))
	return true, nil
}

func (s *EngagementService) unreact(ctx context.Context, uid, sub, collection, postID string) (bool, error) {
	if err := requireUser(uid); err != nil {
		return false, err
	}
	if err := requirePostLike(collection); err != nil {
		return false, err
	}

	if err := s.store.Delete(ctx, model.UserSubcollection(uid, sub), postID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("removing %s: %w", sub, err)
	}

	if err := s.store.Increment(ctx, collection, postID, reactionCounters[sub], -1); err != nil {
		// The post may have been deleted since; the reaction is gone either way.
		if errors.Is(err, apperror.ErrNotFound) {
			return true, nil
		}
		return true, fmt.Errorf("decrementing %s: %w", reactionCounters[sub], err)
	}
	return true, nil
}

// AnonymousLike counts a like from a visitor who is not signed in. The
// visitor id comes from a cookie; one like per visitor and post is kept in
// anonymous-likes/{visitorId}_{postId}.
func (s *EngagementService) AnonymousLike(ctx context.Context, visitorID, collection, postID string) (bool, error) {
	if visitorID == "" {
		return false, apperror.ValidationFailed("visitor", "visitor id is required")
	}
	if err := s.requirePost(ctx, collection, postID); err != nil {
		return false, err
	}

	key := anonymousLikeKey(visitorID, postID)
	_, err := s.store.Create(ctx, model.CollectionAnonymousLikes, key, model.Document{
		"visitorId":  visitorID,
		"collection": collection,
		"postId":     postID,
		"createdAt":  now(),
	})
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return false, nil
		}
		return false, fmt.Errorf("saving anonymous like: %w", err)
	}

	if err := s.store.Increment(ctx, collection, postID, model.FieldLikeCount, 1); err != nil {
		return true, fmt.Errorf("incrementing likeCount: %w", err)
	}
	return true, nil
}

func anonymousLikeKey(visitorID, postID string) string {
	return visitorID + "_" + postID
}

// RecordView bumps the view counter. Every call counts.
func (s *EngagementService) RecordView(ctx context.Context, collection, postID string) error {
	if err := requirePostLike(collection); err != nil {
		return err
	}
	return s.store.Increment(ctx, collection, postID, model.FieldViewCount, 1)
}

// Status is what the reaction buttons of a post show.
type Status struct {
	Liked         bool `json:"liked"`
	Bookmarked    bool `json:"bookmarked"`
	Thanked       bool `json:"thanked"`
	LikeCount     int  `json:"likeCount"`
	HelpfulCount  int  `json:"helpfulCount"`
	BookmarkCount int  `json:"bookmarkCount"`
	ViewCount     int  `json:"viewCount"`
}

// Status reads the counters of a post and the viewer's own reactions. uid
// may be empty; then only an anonymous like of visitorID is checked.
func (s *EngagementService) Status(ctx context.Context, uid, visitorID, collection, postID string) (*Status, error) {
	if err := requirePostLike(collection); err != nil {
		return nil, err
	}
	doc, err := s.store.Get(ctx, collection, postID)
	if err != nil {
		return nil, err
	}

	st := &Status{
		LikeCount:     int(doc.Number(model.FieldLikeCount)),
		HelpfulCount:  int(doc.Number(model.FieldHelpfulCount)),
		BookmarkCount: int(doc.Number(model.FieldBookmarkCount)),
		ViewCount:     int(doc.Number(model.FieldViewCount)),
	}

	if uid != "" {
		for sub, flag := range map[string]*bool{
			model.SubLikes:     &st.Liked,
			model.SubBookmarks: &st.Bookmarked,
			model.SubThanks:    &st.Thanked,
		} {
			if *flag, err = s.exists(ctx, model.UserSubcollection(uid, sub), postID); err != nil {
				return nil, err
			}
		}
	}
	if !st.Liked && visitorID != "" {
		if st.Liked, err = s.exists(ctx, model.CollectionAnonymousLikes, anonymousLikeKey(visitorID, postID)); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// Bookmarks returns the posts uid bookmarked, most recently bookmarked
// first. Bookmarks of deleted posts are skipped.
func (s *EngagementService) Bookmarks(ctx context.Context, uid string) ([]normalize.UnifiedPost, error) {
	if err := requireUser(uid); err != nil {
		return nil, err
	}
	marks, err := s.store.Query(ctx, model.UserSubcollection(uid, model.SubBookmarks), repository.Query{
		OrderBy: "createdAt",
		Desc:    true,
		Limit:   MaxListLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing bookmarks: %w", err)
	}

	idsByCollection := make(map[string][]string)
	for _, m := range marks {
		collection := m.String("collection")
		if !model.IsPostLike(collection) {
			continue
		}
		idsByCollection[collection] = append(idsByCollection[collection], m.String("id"))
	}

	found := make(map[string]model.Document)
	for collection, ids := range idsByCollection {
		for _, chunk := range repository.Chunk(ids, repository.MaxInValues) {
			docs, err := s.store.Query(ctx, collection, repository.Query{
				Where: []repository.Filter{{Field: repository.FieldID, Op: repository.OpIn, Value: chunk}},
			})
			if err != nil {
				return nil, fmt.Errorf("loading bookmarked %s: %w", collection, err)
			}
			for _, doc := range docs {
				found[collection+"/"+doc.String("id")] = doc
			}
		}
	}

	authorIDs := make([]string, 0, len(found))
	for _, doc := range found {
		authorIDs = append(authorIDs, normalize.ResolveAuthorID(doc))
	}
	profiles, err := ranking.ResolveProfiles(ctx, s.store, authorIDs)
	if err != nil {
		return nil, err
	}

	posts := make([]normalize.UnifiedPost, 0, len(found))
	for _, m := range marks {
		collection := m.String("collection")
		doc, ok := found[collection+"/"+m.String("id")]
		if !ok {
			continue
		}
		posts = append(posts, normalize.NormalizeForViewer(doc, collection, ranking.ProfileFor(profiles, doc), uid))
	}
	return posts, nil
}

func (s *EngagementService) requirePost(ctx context.Context, collection, postID string) error {
	if err := requirePostLike(collection); err != nil {
		return err
	}
	_, err := s.store.Get(ctx, collection, postID)
	return err
}

func (s *EngagementService) exists(ctx context.Context, collection, id string) (bool, error) {
	_, err := s.store.Get(ctx, collection, id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, apperror.ErrNotFound) {
		return false, nil
	}
	return false, err
}
