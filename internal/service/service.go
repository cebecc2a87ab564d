// Package service contains the business rules of the application.
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, checks ownership, orchestrates
//	DocumentStore            → reads/writes documents
//
// Services take a repository.DocumentStore (interface), never a concrete
// store, so tests run them against in-memory SQLite and production can pick
// SQLite or MongoDB in one place (internal/server).
//
// Validation that the browser forms used to enforce (photo and hotel limits,
// rating range, text lengths) lives here, so every caller gets it.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/kansenki/internal/apperror"
	"github.com/sakif/kansenki/internal/model"
	"github.com/sakif/kansenki/internal/normalize"
	"github.com/sakif/kansenki/internal/repository"
)

// Limits shared by the post forms.
const (
	MaxHotels        = 3
	MaxTitleLength   = 100
	MaxTextLength    = 10000
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// now is the clock for createdAt/updatedAt stamps.
var now = func() time.Time { return time.Now().UTC() }

func requireUser(uid string) error {
	if uid == "" {
		return apperror.Unauthorized("sign in required")
	}
	return nil
}

// requireOwner fails with Forbidden unless uid wrote doc.
func requireOwner(doc model.Document, uid, what string) error {
	if err := requireUser(uid); err != nil {
		return err
	}
	if normalize.ResolveAuthorID(doc) != uid {
		return apperror.Forbidden(fmt.Sprintf("only the author can change this %s", what))
	}
	return nil
}

// requirePostLike rejects collections that cannot be liked, bookmarked or
// asked about.
func requirePostLike(collection string) error {
	if !model.IsPostLike(collection) {
		return apperror.NotFound("collection", collection)
	}
	return nil
}

// authorBlock builds the denormalized author written on new documents. A
// missing profile is not an error: the normalizer falls back at read time.
func authorBlock(ctx context.Context, store repository.DocumentStore, uid string) (model.Author, error) {
	a := model.Author{ID: uid}
	doc, err := store.Get(ctx, model.CollectionUsers, uid)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return a, nil
		}
		return a, fmt.Errorf("loading author profile: %w", err)
	}
	a.Name = doc.String("nickname")
	a.Image = doc.String("avatarUrl")
	return a, nil
}

// toStoreDocument converts a typed value for storage and keeps timestamps as
// time.Time so each store writes them in its native sortable form.
func toStoreDocument(v any, stamps map[string]time.Time) (model.Document, error) {
	doc, err := model.ToDocument(v)
	if err != nil {
		return nil, err
	}
	for field, t := range stamps {
		if !t.IsZero() {
			doc[field] = t
		}
	}
	return doc, nil
}

func checkLength(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return apperror.ValidationFailed(field, fmt.Sprintf("%s must be %d characters or less", field, max))
	}
	return nil
}

func checkURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return apperror.ValidationFailed(field, fmt.Sprintf("%s must be an http(s) URL", field))
	}
	return nil
}

func checkRating(field string, rating float64) error {
	if rating < 0 || rating > 5 {
		return apperror.ValidationFailed(field, "rating must be between 0 and 5")
	}
	return nil
}

func checkHotels(hotels []model.Hotel) error {
	if len(hotels) > MaxHotels {
		return apperror.ValidationFailed("hotels", fmt.Sprintf("at most %d hotels", MaxHotels))
	}
	for _, h := range hotels {
		if strings.TrimSpace(h.Name) == "" {
			return apperror.ValidationFailed("hotels", "hotel name is required")
		}
		if err := checkRating("hotels", h.Rating); err != nil {
			return err
		}
		if err := checkURL("hotels", h.URL); err != nil {
			return err
		}
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func trimAll(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
