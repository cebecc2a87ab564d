package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// VisitorCookie identifies a browser across anonymous likes.
const VisitorCookie = "visitor_id"

type visitorKey struct{}

// Visitor makes sure every browser carries a random visitor id, issuing one
// on the first request. Anonymous likes are keyed by it so that liking twice
// from the same browser counts once.
func Visitor(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(VisitorCookie); err == nil {
				if parsed, err := uuid.Parse(c.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     VisitorCookie,
					Value:    id,
					Path:     "/",
					MaxAge:   365 * 24 * 60 * 60,
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(WithVisitorID(r.Context(), id)))
		})
	}
}

func WithVisitorID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, visitorKey{}, id)
}

// VisitorIDFromContext returns "" outside the Visitor middleware.
func VisitorIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(visitorKey{}).(string)
	return id
}
