package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/kansenki/internal/apperror"
	"github.com/sakif/kansenki/internal/model"
	"github.com/sakif/kansenki/internal/repository/sqlite"
)

func newTestEngagement(t *testing.T) (*EngagementService, *sqlite.DB) {
	t.Helper()
	useStepClock(t)
	store := newTestStore(t)
	return NewEngagementService(store, testLogger()), store
}

func seedPost(t *testing.T, store *sqlite.DB, collection string, doc model.Document) string {
	t.Helper()
	if _, ok := doc["createdAt"]; !ok {
		doc["createdAt"] = now()
	}
	id, err := store.Create(context.Background(), collection, "", doc)
	if err != nil {
		t.Fatalf("failed to seed post: %v", err)
	}
	return id
}

func counter(t *testing.T, store *sqlite.DB, collection, id, field string) int {
	t.Helper()
	doc, err := store.Get(context.Background(), collection, id)
	require.NoError(t, err)
	return int(doc.Number(field))
}

func TestLike_Idempotent(t *testing.T) {
	svc, store := newTestEngagement(t)
	ctx := context.Background()
	id := seedPost(t, store, model.CollectionPosts, model.Document{"title": "x", "likeCount": 0})

	changed, err := svc.Like(ctx, "u1", model.CollectionPosts, id)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = svc.Like(ctx, "u1", model.CollectionPosts, id)
	require.NoError(t, err)
	assert.False(t, changed, "second like is a no-op")
	assert.Equal(t, 1, counter(t, store, model.CollectionPosts, id, model.FieldLikeCount))

	_, err = svc.Like(ctx, "u2", model.CollectionPosts, id)
	require.NoError(t, err)
	assert.Equal(t, 2, counter(t, store, model.CollectionPosts, id, model.FieldLikeCount))

	changed, err = svc.Unlike(ctx, "u1", model.CollectionPosts, id)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = svc.Unlike(ctx, "u1", model.CollectionPosts, id)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, counter(t, store, model.CollectionPosts, id, model.FieldLikeCount))
}

func TestReactions_DriveTheirCounters(t *testing.T) {
	svc, store := newTestEngagement(t)
	ctx := context.Background()
	id := seedPost(t, store, model.CollectionSpots, model.Document{"name": "The Albert"})

	_, err := svc.Bookmark(ctx, "u1", model.CollectionSpots, id)
	require.NoError(t, err)
	_, err = svc.Thank(ctx, "u1", model.CollectionSpots, id)
	require.NoError(t, err)
	require.NoError(t, svc.RecordView(ctx, model.CollectionSpots, id))
	require.NoError(t, svc.RecordView(ctx, model.CollectionSpots, id))

	assert.Equal(t, 1, counter(t, store, model.CollectionSpots, id, model.FieldBookmarkCount))
	assert.Equal(t, 1, counter(t, store, model.CollectionSpots, id, model.FieldHelpfulCount))
	assert.Equal(t, 2, counter(t, store, model.CollectionSpots, id, model.FieldViewCount))
	assert.Equal(t, 0, counter(t, store, model.CollectionSpots, id, model.FieldLikeCount))

	_, err = svc.Unthank(ctx, "u1", model.CollectionSpots, id)
	require.NoError(t, err)
	_, err = svc.Unbookmark(ctx, "u1", model.CollectionSpots, id)
	require.NoError(t, err)
	assert.Equal(t, 0, counter(t, store, model.CollectionSpots, id, model.FieldBookmarkCount))
	assert.Equal(t, 0, counter(t, store, model.CollectionSpots, id, model.FieldHelpfulCount))
}

func TestReactions_Errors(t *testing.T) {
	svc, store := newTestEngagement(t)
	ctx := context.Background()
	id := seedPost(t, store, model.CollectionPosts, model.Document{"title": "x"})

	_, err := svc.Like(ctx, "", model.CollectionPosts, id)
	assertKind(t, err, apperror.ErrUnauthorized)

	_, err = svc.Like(ctx, "u1", model.CollectionPosts, "missing")
	assertKind(t, err, apperror.ErrNotFound)

	_, err = svc.Like(ctx, "u1", model.CollectionBanners, id)
	assertKind(t, err, apperror.ErrNotFound)

	assertKind(t, svc.RecordView(ctx, model.CollectionPosts, "missing"), apperror.ErrNotFound)
}

func TestAnonymousLike(t *testing.T) {
	svc, store := newTestEngagement(t)
	ctx := context.Background()
	id := seedPost(t, store, model.CollectionSimplePosts, model.Document{"title": "x"})

	changed, err := svc.AnonymousLike(ctx, "visitor-1", model.CollectionSimplePosts, id)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = svc.AnonymousLike(ctx, "visitor-1", model.CollectionSimplePosts, id)
	require.NoError(t, err)
	assert.False(t, changed, "one like per visitor")

	_, err = svc.AnonymousLike(ctx, "visitor-2", model.CollectionSimplePosts, id)
	require.NoError(t, err)
	assert.Equal(t, 2, counter(t, store, model.CollectionSimplePosts, id, model.FieldLikeCount))

	_, err = svc.AnonymousLike(ctx, "", model.CollectionSimplePosts, id)
	assertKind(t, err, apperror.ErrValidation)

	key, err := store.Get(ctx, model.CollectionAnonymousLikes, "visitor-1_"+id)
	require.NoError(t, err)
	assert.Equal(t, id, key.String("postId"))
}

func TestStatus(t *testing.T) {
	svc, store := newTestEngagement(t)
	ctx := context.Background()
	id := seedPost(t, store, model.CollectionPosts, model.Document{"title": "x"})

	_, err := svc.Bookmark(ctx, "u1", model.CollectionPosts, id)
	require.NoError(t, err)
	_, err = svc.AnonymousLike(ctx, "v1", model.CollectionPosts, id)
	require.NoError(t, err)
	require.NoError(t, svc.RecordView(ctx, model.CollectionPosts, id))

	st, err := svc.Status(ctx, "u1", "", model.CollectionPosts, id)
	require.NoError(t, err)
	assert.Equal(t, Status{Bookmarked: true, LikeCount: 1, BookmarkCount: 1, ViewCount: 1}, *st)

	st, err = svc.Status(ctx, "", "v1", model.CollectionPosts, id)
	require.NoError(t, err)
	assert.True(t, st.Liked, "anonymous like is remembered for the visitor")
	assert.False(t, st.Bookmarked)

	_, err = svc.Status(ctx, "u1", "", model.CollectionPosts, "missing")
	assertKind(t, err, apperror.ErrNotFound)
}

func TestBookmarks(t *testing.T) {
	svc, store := newTestEngagement(t)
	ctx := context.Background()
	seedUser(t, store, "writer", "Writer", "writer")

	post := seedPost(t, store, model.CollectionPosts, model.Document{"title": "Derby day", "authorId": "writer"})
	spot := seedPost(t, store, model.CollectionSpots, model.Document{"name": "The Albert", "authorId": "writer"})
	gone := seedPost(t, store, model.CollectionSimplePosts, model.Document{"title": "deleted later"})

	for _, b := range []struct{ collection, id string }{
		{model.CollectionSpots, spot},
		{model.CollectionSimplePosts, gone},
		{model.CollectionPosts, post},
	} {
		_, err := svc.Bookmark(ctx, "u1", b.collection, b.id)
		require.NoError(t, err)
	}
	require.NoError(t, store.Delete(ctx, model.CollectionSimplePosts, gone))

	marks, err := svc.Bookmarks(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, marks, 2, "bookmarks of deleted posts are skipped")
	assert.Equal(t, post, marks[0].ID, "most recently bookmarked first")
	assert.Equal(t, spot, marks[1].ID)
	assert.Equal(t, "Writer", marks[0].Author.Name)

	empty, err := svc.Bookmarks(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = svc.Bookmarks(ctx, "")
	assertKind(t, err, apperror.ErrUnauthorized)
}
