package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rs/xid"
	"github.com/sakif/kansenki/internal/apperror"
	"github.com/sakif/kansenki/internal/auth"
	"github.com/sakif/kansenki/internal/service"
)

const stateCookieName = "oauth_state"

// OAuthProvider is the part of auth.GoogleProvider the login flow needs.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleUser, error)
}

// AuthHandler manages the Google login flow and the session cookie.
//
// HANDLER RESPONSIBILITIES:
//   - HandleGoogleLogin    → redirect the browser to Google's consent page
//   - HandleGoogleCallback → verify state, exchange the code, issue the JWT cookie
//   - HandleLogout         → clear the JWT cookie
//   - HandleMe             → return the signed-in user's profile
type AuthHandler struct {
	google OAuthProvider
	auth   *service.AuthService
	secure bool // set the Secure flag on cookies (HTTPS deployments)
	logger *slog.Logger
}

func NewAuthHandler(google OAuthProvider, svc *service.AuthService, secure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{google: google, auth: svc, secure: secure, logger: logger}
}

// HandleGoogleLogin redirects the user to Google.
//
// HTTP: GET /auth/google/login
//
// A random state goes into a short-lived cookie and into the consent URL.
// The callback only proceeds when both match, so a login can't be started
// by another site.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the login.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter
//  2. Exchange the code for the Google identity
//  3. Ensure the profile exists and issue a JWT (service.AuthService)
//  4. Store the JWT in the session cookie and go home
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// The user pressed "cancel" on the consent page.
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	gu, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: Google exchange failed", slog.String("error", err.Error()))
		writeError(w, apperror.Upstream("google", err))
		return
	}

	result, err := h.auth.LoginWithGoogle(r.Context(), gu)
	if err != nil {
		writeError(w, err)
		return
	}

	auth.SetSessionCookie(w, result.Token, h.secure)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /auth/logout
//
// Tokens are stateless, so "logout" only removes the browser's copy.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the signed-in user's profile.
//
// HTTP: GET /api/me
// Auth: Required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	user, err := h.auth.CurrentUser(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
