package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/kansenki/internal/apperror"
	"github.com/sakif/kansenki/internal/model"
	"github.com/sakif/kansenki/internal/repository"
	"github.com/sakif/kansenki/internal/repository/sqlite"
)

func newTestPostService(t *testing.T) (*PostService, *sqlite.DB, *fakeImages) {
	t.Helper()
	useStepClock(t)
	store := newTestStore(t)
	img := newFakeImages()
	travels := NewTravelService(store, testLogger())
	return NewPostService(store, img, travels, testLogger()), store, img
}

func liverpoolEverton() *model.Match {
	return &model.Match{
		Competition: "Premier League",
		HomeTeam:    "Liverpool",
		AwayTeam:    "Everton",
		Stadium:     model.Stadium{Name: "Anfield"},
	}
}

// =========================================================================
// Submit TESTS
// =========================================================================

func TestSubmit_FullPost(t *testing.T) {
	svc, store, img := newTestPostService(t)
	seedUser(t, store, "u1", "Kop End", "kop")
	ctx := context.Background()

	in := PostInput{
		Title:   "  Merseyside derby  ",
		Match:   liverpoolEverton(),
		Hotels:  []model.Hotel{{Name: "Titanic Hotel", Rating: 4.5}},
		Costs:   &model.Costs{Flight: 150000, Hotel: 40000},
		Episode: "You'll Never Walk Alone before kick-off.",
	}

	post, err := svc.Submit(ctx, "u1", model.CollectionPosts, in, photos("a.jpg", "b.jpg"))
	require.NoError(t, err)
	require.NotEmpty(t, post.ID)

	assert.Equal(t, []string{"https://res.cloudinary.com/demo/a.jpg", "https://res.cloudinary.com/demo/b.jpg"}, post.ImageURLs)
	assert.Equal(t, img.uploaded, post.ImageURLs)

	doc, err := store.Get(ctx, model.CollectionPosts, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Merseyside derby", doc.String("title"))
	assert.Equal(t, "u1", doc.String("authorId"))
	assert.Equal(t, "Kop End", doc.String("author.name"))
	assert.Equal(t, float64(190000), doc.Number("costs.total"))
	assert.Equal(t, float64(0), doc.Number("likeCount"))
	_, hasCounter := doc["viewCount"]
	assert.True(t, hasCounter, "counters start at zero")
	_, ok := model.ParseTimestamp(doc["createdAt"])
	assert.True(t, ok)
}

func TestSubmit_SimplePostDropsFullFormFields(t *testing.T) {
	svc, store, _ := newTestPostService(t)
	ctx := context.Background()

	in := PostInput{
		Title:   "ignored",
		Match:   liverpoolEverton(),
		Advice:  "ignored too",
		Episode: "Great atmosphere",
	}
	post, err := svc.Submit(ctx, "u1", model.CollectionSimplePosts, in, nil)
	require.NoError(t, err)

	doc, err := store.Get(ctx, model.CollectionSimplePosts, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "", doc.String("title"))
	assert.Equal(t, "", doc.String("advice"))
	assert.Equal(t, "Great atmosphere", doc.String("episode"))
	assert.Equal(t, "Liverpool", doc.String("match.homeTeam"))
	assert.Equal(t, []any{}, doc["imageUrls"], "no photos is an empty list")
}

func TestSubmit_Validation(t *testing.T) {
	tests := []struct {
		name       string
		collection string
		in         PostInput
		files      int
		wantKind   error
	}{
		{"signed out", model.CollectionPosts, PostInput{Title: "x"}, 0, apperror.ErrUnauthorized},
		{"unknown collection", "banners", PostInput{Title: "x"}, 0, apperror.ErrNotFound},
		{"post without title or teams", model.CollectionPosts, PostInput{Episode: "x"}, 0, apperror.ErrValidation},
		{"simple post without teams", model.CollectionSimplePosts, PostInput{Title: "x"}, 0, apperror.ErrValidation},
		{"one team only", model.CollectionPosts, PostInput{Title: "x", Match: &model.Match{HomeTeam: "Liverpool"}}, 0, apperror.ErrValidation},
		{"six photos", model.CollectionPosts, PostInput{Title: "x"}, 6, apperror.ErrValidation},
		{"kept plus new over five", model.CollectionPosts, PostInput{Title: "x", ImageURLs: []string{"https://a/1", "https://a/2", "https://a/3"}}, 3, apperror.ErrValidation},
		{"four hotels", model.CollectionPosts, PostInput{Title: "x", Hotels: []model.Hotel{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}}}, 0, apperror.ErrValidation},
		{"both travel choices", model.CollectionPosts, PostInput{Title: "x", TravelID: "t1", NewTravel: &TravelInput{}}, 0, apperror.ErrValidation},
		{"unknown travel", model.CollectionPosts, PostInput{Title: "x", TravelID: "nope"}, 0, apperror.ErrValidation},
		{"unnamed spot", model.CollectionPosts, PostInput{Title: "x", Spots: []model.SpotNote{{Comment: "nice"}}}, 0, apperror.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, img := newTestPostService(t)
			names := make([]string, tt.files)
			for i := range names {
				names[i] = "p.jpg"
			}
			uid := "u1"
			if tt.wantKind == apperror.ErrUnauthorized {
				uid = ""
			}

			_, err := svc.Submit(context.Background(), uid, tt.collection, tt.in, photos(names...))
			assertKind(t, err, tt.wantKind)
			assert.Empty(t, img.uploaded, "nothing is uploaded when validation fails")
		})
	}
}

func TestSubmit_RejectsNonImageFile(t *testing.T) {
	svc, _, img := newTestPostService(t)
	files := photos("a.jpg")
	files[0].ContentType = "application/pdf"

	_, err := svc.Submit(context.Background(), "u1", model.CollectionPosts, PostInput{Title: "x"}, files)
	assertKind(t, err, apperror.ErrValidation)
	assert.Empty(t, img.uploaded)
}

func TestSubmit_CreatesNewTravel(t *testing.T) {
	svc, store, _ := newTestPostService(t)
	ctx := context.Background()

	in := PostInput{
		Match:     liverpoolEverton(),
		NewTravel: &TravelInput{Season: "2024-25", StartDate: "2024-12-01", EndDate: "2024-12-06", Cities: []string{" Liverpool ", ""}},
	}
	post, err := svc.Submit(ctx, "u1", model.CollectionSimplePosts, in, nil)
	require.NoError(t, err)
	require.NotEmpty(t, post.TravelID)

	travel, err := store.Get(ctx, model.CollectionTravels, post.TravelID)
	require.NoError(t, err)
	assert.Equal(t, "u1", travel.String("authorId"))
	assert.Equal(t, []any{"Liverpool"}, travel["cities"])
}

func TestSubmit_LinksOwnTravelOnly(t *testing.T) {
	svc, _, _ := newTestPostService(t)
	ctx := context.Background()

	travel, err := svc.travels.Create(ctx, "u1", TravelInput{Season: "2024-25"})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, "u2", model.CollectionPosts, PostInput{Title: "x", TravelID: travel.ID}, nil)
	assertKind(t, err, apperror.ErrForbidden)

	post, err := svc.Submit(ctx, "u1", model.CollectionPosts, PostInput{Title: "x", TravelID: travel.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, travel.ID, post.TravelID)
}

func TestSubmit_UploadFailureWritesNothing(t *testing.T) {
	svc, store, img := newTestPostService(t)
	img.failAt = 1
	ctx := context.Background()

	_, err := svc.Submit(ctx, "u1", model.CollectionPosts, PostInput{Title: "x"}, photos("a.jpg", "b.jpg", "c.jpg"))
	assertKind(t, err, apperror.ErrUpstream)
	assert.Len(t, img.uploaded, 1, "the first photo stays uploaded")

	docs, err := store.Query(ctx, model.CollectionPosts, repository.Query{})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

// =========================================================================
// Update / Delete TESTS
// =========================================================================

func TestUpdate_OwnerOnly(t *testing.T) {
	svc, _, _ := newTestPostService(t)
	ctx := context.Background()

	post, err := svc.Submit(ctx, "u1", model.CollectionPosts, PostInput{Title: "x"}, nil)
	require.NoError(t, err)

	_, err = svc.Update(ctx, "u2", model.CollectionPosts, post.ID, PostInput{Title: "mine now"}, nil)
	assertKind(t, err, apperror.ErrForbidden)

	_, err = svc.Update(ctx, "u1", model.CollectionPosts, "missing", PostInput{Title: "y"}, nil)
	assertKind(t, err, apperror.ErrNotFound)
}

func TestUpdate_KeepsCountersAndAppendsPhotos(t *testing.T) {
	svc, store, _ := newTestPostService(t)
	ctx := context.Background()

	post, err := svc.Submit(ctx, "u1", model.CollectionPosts, PostInput{Title: "x", Advice: "bring a scarf"}, photos("a.jpg"))
	require.NoError(t, err)
	require.NoError(t, store.Increment(ctx, model.CollectionPosts, post.ID, model.FieldLikeCount, 3))

	updated, err := svc.Update(ctx, "u1", model.CollectionPosts, post.ID, PostInput{Title: "Derby day"}, photos("b.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://res.cloudinary.com/demo/a.jpg", "https://res.cloudinary.com/demo/b.jpg"}, updated.ImageURLs)

	doc, err := store.Get(ctx, model.CollectionPosts, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Derby day", doc.String("title"))
	assert.Equal(t, "", doc.String("advice"), "cleared fields are cleared")
	assert.Equal(t, float64(3), doc.Number("likeCount"))
	assert.Equal(t, "u1", doc.String("authorId"))

	created, _ := model.ParseTimestamp(doc["createdAt"])
	changed, _ := model.ParseTimestamp(doc["updatedAt"])
	assert.True(t, changed.After(created))
}

func TestUpdate_ReplacesKeptPhotos(t *testing.T) {
	svc, _, _ := newTestPostService(t)
	ctx := context.Background()

	post, err := svc.Submit(ctx, "u1", model.CollectionPosts, PostInput{Title: "x"}, photos("a.jpg", "b.jpg"))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "u1", model.CollectionPosts, post.ID, PostInput{Title: "x", ImageURLs: []string{}}, nil)
	require.NoError(t, err)
	assert.Empty(t, updated.ImageURLs)
}

func TestDeletePost(t *testing.T) {
	svc, _, _ := newTestPostService(t)
	ctx := context.Background()

	post, err := svc.Submit(ctx, "u1", model.CollectionSimplePosts, PostInput{Match: liverpoolEverton()}, nil)
	require.NoError(t, err)

	assertKind(t, svc.Delete(ctx, "u2", model.CollectionSimplePosts, post.ID), apperror.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, "u1", model.CollectionSimplePosts, post.ID))

	_, err = svc.Get(ctx, model.CollectionSimplePosts, post.ID)
	assertKind(t, err, apperror.ErrNotFound)
}
