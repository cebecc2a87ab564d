package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/kansenki/internal/apperror"
	"github.com/sakif/kansenki/internal/auth"
)

// viewerID is the signed-in user, or "" for guests.
func viewerID(r *http.Request) string {
	uid, _ := auth.UserIDFromContext(r.Context())
	return uid
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(key, key+" must be a number")
	}
	return n, nil
}

// queryList splits a comma separated query parameter, dropping blanks.
func queryList(r *http.Request, key string) []string {
	var out []string
	for _, part := range strings.Split(r.URL.Query().Get(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// target returns the {collection} and {id} URL parameters.
func target(r *http.Request) (string, string) {
	return chi.URLParam(r, "collection"), chi.URLParam(r, "id")
}
