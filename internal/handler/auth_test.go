package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/kansenki/internal/auth"
	"github.com/sakif/kansenki/internal/handler"
	"github.com/sakif/kansenki/internal/model"
	"github.com/sakif/kansenki/internal/service"
)

// fakeGoogle stands in for the OAuth round trip.
type fakeGoogle struct {
	user *auth.GoogleUser
	err  error
	code string
}

func (f *fakeGoogle) AuthURL(state string) string {
	return "https://accounts.example/consent?state=" + url.QueryEscape(state)
}

func (f *fakeGoogle) Exchange(_ context.Context, code string) (*auth.GoogleUser, error) {
	f.code = code
	return f.user, f.err
}

func newAuthHandler(t *testing.T, google *fakeGoogle) (*handler.AuthHandler, *auth.TokenService) {
	t.Helper()
	tokens, err := auth.NewTokenService("handler-test-secret-0123456789")
	require.NoError(t, err)
	profiles := service.NewProfileService(newTestStore(t), &fakeImages{}, testLogger())
	return handler.NewAuthHandler(google, service.NewAuthService(profiles, tokens, testLogger()), true, testLogger()), tokens
}

func cookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// callback builds the redirect Google sends back, with a matching state
// cookie unless state is "".
func callback(query, state string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?"+query, nil)
	if state != "" {
		req.AddCookie(&http.Cookie{Name: "oauth_state", Value: state})
	}
	return req
}

func TestAuthHandler_Login(t *testing.T) {
	h, _ := newAuthHandler(t, &fakeGoogle{})

	rec := httptest.NewRecorder()
	h.HandleGoogleLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	state := cookie(rec, "oauth_state")
	require.NotNil(t, state)
	assert.True(t, state.HttpOnly)
	assert.True(t, state.Secure)
	assert.Contains(t, rec.Header().Get("Location"), "state="+state.Value)
}

func TestAuthHandler_Callback(t *testing.T) {
	google := &fakeGoogle{user: &auth.GoogleUser{Subject: "g-42", Name: "Sakura", Email: "s@example.com"}}
	h, tokens := newAuthHandler(t, google)

	rec := httptest.NewRecorder()
	h.HandleGoogleCallback(rec, callback("code=abc&state=s1", "s1"))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, "abc", google.code)

	session := cookie(rec, auth.CookieName)
	require.NotNil(t, session, "session cookie is set")
	assert.True(t, session.Secure)
	uid, err := tokens.Validate(session.Value)
	require.NoError(t, err)
	assert.Equal(t, "g-42", uid)

	// The session now resolves to the new profile.
	rec = httptest.NewRecorder()
	h.HandleMe(rec, as(httptest.NewRequest(http.MethodGet, "/api/me", nil), "g-42"))
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[model.User](t, rec)
	assert.Equal(t, "Sakura", me.Nickname)
	assert.NotEmpty(t, me.Handle)
}

func TestAuthHandler_CallbackRejects(t *testing.T) {
	tests := []struct {
		name     string
		google   *fakeGoogle
		req      *http.Request
		wantCode int
	}{
		{"missing state cookie", &fakeGoogle{}, callback("code=abc&state=s1", ""), http.StatusBadRequest},
		{"state mismatch", &fakeGoogle{}, callback("code=abc&state=forged", "s1"), http.StatusBadRequest},
		{"missing code", &fakeGoogle{}, callback("state=s1", "s1"), http.StatusBadRequest},
		{"exchange fails", &fakeGoogle{err: errors.New("bad code")}, callback("code=abc&state=s1", "s1"), http.StatusBadGateway},
		{"user denied", &fakeGoogle{}, callback("error=access_denied&state=s1", "s1"), http.StatusSeeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newAuthHandler(t, tt.google)
			rec := httptest.NewRecorder()
			h.HandleGoogleCallback(rec, tt.req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Nil(t, cookie(rec, auth.CookieName), "no session on failure")
		})
	}
}

func TestAuthHandler_LogoutAndMe(t *testing.T) {
	h, _ := newAuthHandler(t, &fakeGoogle{})

	rec := httptest.NewRecorder()
	h.HandleLogout(rec, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	session := cookie(rec, auth.CookieName)
	require.NotNil(t, session)
	assert.Negative(t, session.MaxAge)

	rec = httptest.NewRecorder()
	h.HandleMe(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
