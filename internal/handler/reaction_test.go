package handler_test

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/kansenki/internal/auth"
	"github.com/sakif/kansenki/internal/handler"
	"github.com/sakif/kansenki/internal/model"
	"github.com/sakif/kansenki/internal/service"
)

func newReactionRouter(t *testing.T) (http.Handler, string) {
	t.Helper()
	store := newTestStore(t)
	postID := seed(t, store, model.CollectionPosts, model.Document{"title": "Derby day", "authorId": "writer"})

	engagement := service.NewEngagementService(store, testLogger())
	reactions := handler.NewReactionHandler(engagement, testLogger())
	questions := handler.NewQuestionHandler(service.NewQuestionService(store, auth.NewAdmins([]string{"admin"}), testLogger()), testLogger())
	users := handler.NewUserHandler(service.NewProfileService(store, &fakeImages{}, testLogger()), engagement, testLogger())

	r := chi.NewRouter()
	r.Get("/api/me/bookmarks", users.HandleBookmarks)
	r.Post("/api/questions/{id}/answer", questions.HandleAnswer)
	r.Delete("/api/questions/{id}", questions.HandleDelete)
	r.Route("/api/{collection}/{id}", func(r chi.Router) {
		r.Post("/like", reactions.HandleLike)
		r.Delete("/like", reactions.HandleUnlike)
		r.Post("/bookmark", reactions.HandleBookmark)
		r.Delete("/bookmark", reactions.HandleUnbookmark)
		r.Post("/thanks", reactions.HandleThank)
		r.Delete("/thanks", reactions.HandleUnthank)
		r.Post("/view", reactions.HandleView)
		r.Get("/status", reactions.HandleStatus)
		r.Get("/questions", questions.HandleList)
		r.Post("/questions", questions.HandleAsk)
	})
	return r, postID
}

func TestReactionHandler_Like(t *testing.T) {
	router, postID := newReactionRouter(t)
	url := "/api/posts/" + postID + "/like"

	rec := serve(router, as(jsonRequest(t, http.MethodPost, url, nil), "u1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[handler.ReactionResponse](t, rec)
	assert.True(t, resp.Changed)
	assert.True(t, resp.Status.Liked)
	assert.Equal(t, 1, resp.Status.LikeCount)

	// Liking twice is a no-op.
	rec = serve(router, as(jsonRequest(t, http.MethodPost, url, nil), "u1"))
	resp = decode[handler.ReactionResponse](t, rec)
	assert.False(t, resp.Changed)
	assert.Equal(t, 1, resp.Status.LikeCount)

	rec = serve(router, as(jsonRequest(t, http.MethodDelete, url, nil), "u1"))
	resp = decode[handler.ReactionResponse](t, rec)
	assert.True(t, resp.Changed)
	assert.False(t, resp.Status.Liked)
	assert.Equal(t, 0, resp.Status.LikeCount)
}

func TestReactionHandler_GuestLike(t *testing.T) {
	router, postID := newReactionRouter(t)
	url := "/api/posts/" + postID + "/like"

	rec := serve(router, asVisitor(jsonRequest(t, http.MethodPost, url, nil), "visitor-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[handler.ReactionResponse](t, rec)
	assert.True(t, resp.Changed)
	assert.True(t, resp.Status.Liked, "the same browser sees its own like")

	rec = serve(router, asVisitor(jsonRequest(t, http.MethodPost, url, nil), "visitor-1"))
	assert.False(t, decode[handler.ReactionResponse](t, rec).Changed, "one like per browser")

	rec = serve(router, asVisitor(jsonRequest(t, http.MethodPost, url, nil), "visitor-2"))
	assert.Equal(t, 2, decode[handler.ReactionResponse](t, rec).Status.LikeCount)

	// Without a visitor cookie there is nothing to key the like on.
	rec = serve(router, jsonRequest(t, http.MethodPost, url, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Guests can't bookmark.
	rec = serve(router, asVisitor(jsonRequest(t, http.MethodPost, "/api/posts/"+postID+"/bookmark", nil), "visitor-1"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReactionHandler_BookmarksAndThanks(t *testing.T) {
	router, postID := newReactionRouter(t)

	rec := serve(router, as(jsonRequest(t, http.MethodPost, "/api/posts/"+postID+"/bookmark", nil), "u1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = serve(router, as(jsonRequest(t, http.MethodPost, "/api/posts/"+postID+"/thanks", nil), "u1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	status := decode[handler.ReactionResponse](t, rec).Status
	assert.True(t, status.Bookmarked)
	assert.True(t, status.Thanked)
	assert.Equal(t, 1, status.HelpfulCount)
	assert.Equal(t, 1, status.BookmarkCount)

	rec = serve(router, as(jsonRequest(t, http.MethodGet, "/api/me/bookmarks", nil), "u1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	bookmarks := decode[[]map[string]any](t, rec)
	require.Len(t, bookmarks, 1)
	assert.Equal(t, postID, bookmarks[0]["id"])

	rec = serve(router, jsonRequest(t, http.MethodGet, "/api/me/bookmarks", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReactionHandler_ViewAndStatus(t *testing.T) {
	router, postID := newReactionRouter(t)

	for range 3 {
		rec := serve(router, jsonRequest(t, http.MethodPost, "/api/posts/"+postID+"/view", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	rec := serve(router, jsonRequest(t, http.MethodGet, "/api/posts/"+postID+"/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[service.Status](t, rec).ViewCount)

	rec = serve(router, jsonRequest(t, http.MethodGet, "/api/posts/missing/status", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(router, jsonRequest(t, http.MethodGet, "/api/users/"+postID+"/status", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "users can't be reacted to")
}

func TestQuestionHandler_Thread(t *testing.T) {
	router, postID := newReactionRouter(t)
	base := "/api/posts/" + postID + "/questions"

	rec := serve(router, as(jsonRequest(t, http.MethodPost, base, map[string]string{"body": "Where did you sit?"}), "reader"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	q := decode[model.Question](t, rec)

	rec = serve(router, as(jsonRequest(t, http.MethodPost, "/api/questions/"+q.ID+"/answer", map[string]string{"answer": "Kop end"}), "reader"))
	assert.Equal(t, http.StatusForbidden, rec.Code, "only the post's author answers")

	rec = serve(router, as(jsonRequest(t, http.MethodPost, "/api/questions/"+q.ID+"/answer", map[string]string{"answer": "Kop end"}), "writer"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(router, jsonRequest(t, http.MethodGet, base, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	thread := decode[[]model.Question](t, rec)
	require.Len(t, thread, 1)
	assert.Equal(t, "Kop end", thread[0].Answer)

	rec = serve(router, as(jsonRequest(t, http.MethodDelete, "/api/questions/"+q.ID, nil), "admin"))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(router, as(jsonRequest(t, http.MethodPost, base, map[string]string{"body": " "}), "reader"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
