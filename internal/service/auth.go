package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/kansenki/internal/auth"
	"github.com/sakif/kansenki/internal/model"
)

// AuthService finishes a Google sign-in:
//
//	AuthHandler (HTTP) → AuthService → ProfileService (users/{uid})
//	                                 ↘ TokenService (JWT)
//
// The Google subject is the user id, so the same account always lands on the
// same profile. It does not set cookies; that is the handler's job.
type AuthService struct {
	profiles *ProfileService
	tokens   *auth.TokenService
	logger   *slog.Logger
}

func NewAuthService(profiles *ProfileService, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{
		profiles: profiles,
		tokens:   tokens,
		logger:   logger,
	}
}

// AuthResult bundles the profile and the session token so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// LoginWithGoogle ensures the profile of the Google account exists (first
// login creates it) and issues a session token.
func (s *AuthService) LoginWithGoogle(ctx context.Context, gu *auth.GoogleUser) (*AuthResult, error) {
	if gu == nil || gu.Subject == "" {
		return nil, fmt.Errorf("service/auth: google user must have a subject")
	}

	user, err := s.profiles.EnsureProfile(ctx, gu.Subject, gu.Email, gu.Name, gu.Picture)
	if err != nil {
		return nil, fmt.Errorf("service/auth: ensuring profile %s: %w", gu.Subject, err)
	}

	s.logger.Info("user signed in with Google",
		slog.String("userID", user.ID),
		slog.String("handle", user.Handle),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// CurrentUser returns the profile behind /api/me.
func (s *AuthService) CurrentUser(ctx context.Context, uid string) (*model.User, error) {
	if err := requireUser(uid); err != nil {
		return nil, err
	}
	return s.profiles.Get(ctx, uid)
}
