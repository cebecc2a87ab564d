package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/kansenki/internal/apperror"
	"github.com/sakif/kansenki/internal/images"
	"github.com/sakif/kansenki/internal/model"
	"github.com/sakif/kansenki/internal/normalize"
	"github.com/sakif/kansenki/internal/ranking"
	"github.com/sakif/kansenki/internal/repository"
)

// MaxCommentLength bounds the spot comment.
const MaxCommentLength = 2000

// SpotInput is the recommended-spot form.
type SpotInput struct {
	Name      string   `json:"name"`
	URL       string   `json:"url"`
	Comment   string   `json:"comment"`
	Rating    float64  `json:"rating"`
	Country   string   `json:"country"`
	Category  string   `json:"category"`
	Address   string   `json:"address"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	ImageURLs []string `json:"imageUrls"`
}

func (in *SpotInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.URL = strings.TrimSpace(in.URL)
	in.Comment = strings.TrimSpace(in.Comment)
	in.Country = strings.TrimSpace(in.Country)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.Address = strings.TrimSpace(in.Address)
}

func (in SpotInput) validate(newPhotos int) error {
	if in.Name == "" {
		return apperror.ValidationFailed("name", "spot name is required")
	}
	if err := checkLength("name", in.Name, MaxTitleLength); err != nil {
		return err
	}
	if err := checkLength("comment", in.Comment, MaxCommentLength); err != nil {
		return err
	}
	if err := checkRating("rating", in.Rating); err != nil {
		return err
	}
	if err := checkURL("url", in.URL); err != nil {
		return err
	}
	if (in.Lat == nil) != (in.Lng == nil) {
		return apperror.ValidationFailed("lat", "lat and lng must be given together")
	}
	if len(in.ImageURLs)+newPhotos > images.MaxPerPost {
		return apperror.ValidationFailed("images", fmt.Sprintf("at most %d photos per spot", images.MaxPerPost))
	}
	return nil
}

type SpotService struct {
	store  repository.DocumentStore
	images images.Store
	logger *slog.Logger
}

func NewSpotService(store repository.DocumentStore, img images.Store, logger *slog.Logger) *SpotService {
	return &SpotService{store: store, images: img, logger: logger}
}

// Submit uploads the photos and writes the spot.
func (s *SpotService) Submit(ctx context.Context, uid string, in SpotInput, files []images.File) (*model.Spot, error) {
	if err := requireUser(uid); err != nil {
		return nil, err
	}
	in.normalize()
	if err := in.validate(len(files)); err != nil {
		return nil, err
	}
	if err := validateFiles(files); err != nil {
		return nil, err
	}

	author, err := authorBlock(ctx, s.store, uid)
	if err != nil {
		return nil, err
	}

	uploaded, err := images.UploadAll(ctx, s.images, files, s.logger)
	if err != nil {
		return nil, err
	}

	ts := now()
	spot := &model.Spot{
		AuthorID:  uid,
		Author:    author,
		CreatedAt: model.Timestamp{Time: ts},
		UpdatedAt: model.Timestamp{Time: ts},
	}
	applySpotInput(spot, in, uploaded)

	doc, err := toStoreDocument(spot, map[string]time.Time{"createdAt": ts, "updatedAt": ts})
	if err != nil {
		return nil, err
	}
	spot.ID, err = s.store.Create(ctx, model.CollectionSpots, "", doc)
	if err != nil {
		s.logger.Error("failed to save spot",
			slog.String("uid", uid),
			slog.Any("orphans", uploaded),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating spot: %w", err)
	}

	s.logger.Info("spot created", slog.String("id", spot.ID), slog.String("name", spot.Name))
	return spot, nil
}

func (s *SpotService) Get(ctx context.Context, id string) (*model.Spot, error) {
	doc, err := s.store.Get(ctx, model.CollectionSpots, id)
	if err != nil {
		return nil, err
	}
	var spot model.Spot
	if err := model.FromDocument(doc, &spot); err != nil {
		return nil, err
	}
	return &spot, nil
}

// Update replaces the spot fields; in.ImageURLs are the photos to keep (nil
// keeps the stored ones) and uploads are appended.
func (s *SpotService) Update(ctx context.Context, uid, id string, in SpotInput, files []images.File) (*model.Spot, error) {
	doc, err := s.store.Get(ctx, model.CollectionSpots, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(doc, uid, "spot"); err != nil {
		return nil, err
	}

	var spot model.Spot
	if err := model.FromDocument(doc, &spot); err != nil {
		return nil, err
	}
	if in.ImageURLs == nil {
		in.ImageURLs = spot.ImageURLs
	}
	in.normalize()
	if err := in.validate(len(files)); err != nil {
		return nil, err
	}
	if err := validateFiles(files); err != nil {
		return nil, err
	}

	uploaded, err := images.UploadAll(ctx, s.images, files, s.logger)
	if err != nil {
		return nil, err
	}

	ts := now()
	applySpotInput(&spot, in, uploaded)
	spot.UpdatedAt = model.Timestamp{Time: ts}

	fields, err := toStoreDocument(spot, map[string]time.Time{"updatedAt": ts})
	if err != nil {
		return nil, err
	}
	for _, key := range []string{"url", "comment", "country", "category", "address", "lat", "lng"} {
		if _, ok := fields[key]; !ok {
			fields[key] = nil
		}
	}
	for _, key := range []string{"createdAt", "authorId", "author", model.FieldLikeCount, model.FieldHelpfulCount, model.FieldBookmarkCount, model.FieldViewCount} {
		delete(fields, key)
	}

	if err := s.store.Update(ctx, model.CollectionSpots, id, fields); err != nil {
		s.logger.Error("failed to update spot",
			slog.String("id", id),
			slog.Any("orphans", uploaded),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating spot: %w", err)
	}
	s.logger.Info("spot updated", slog.String("id", id))
	return &spot, nil
}

func (s *SpotService) Delete(ctx context.Context, uid, id string) error {
	doc, err := s.store.Get(ctx, model.CollectionSpots, id)
	if err != nil {
		return err
	}
	if err := requireOwner(doc, uid, "spot"); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, model.CollectionSpots, id); err != nil {
		return fmt.Errorf("deleting spot: %w", err)
	}
	s.logger.Info("spot deleted", slog.String("id", id))
	return nil
}

// SpotFilter narrows the spot list. Empty fields match everything.
type SpotFilter struct {
	Country  string
	Category string
	Limit    int
}

// List returns spots newest first as unified posts.
func (s *SpotService) List(ctx context.Context, viewerID string, f SpotFilter) ([]normalize.UnifiedPost, error) {
	q := repository.Query{
		OrderBy: "createdAt",
		Desc:    true,
		Limit:   clampLimit(f.Limit),
	}
	if c := strings.TrimSpace(f.Country); c != "" {
		q.Where = append(q.Where, repository.Where("country", c))
	}
	if c := strings.ToLower(strings.TrimSpace(f.Category)); c != "" {
		q.Where = append(q.Where, repository.Where("category", c))
	}

	docs, err := s.store.Query(ctx, model.CollectionSpots, q)
	if err != nil {
		return nil, fmt.Errorf("listing spots: %w", err)
	}
	return normalizeAll(ctx, s.store, model.CollectionSpots, docs, viewerID)
}

func applySpotInput(spot *model.Spot, in SpotInput, uploaded []string) {
	spot.Name = in.Name
	spot.URL = in.URL
	spot.Comment = in.Comment
	spot.Rating = in.Rating
	spot.Country = in.Country
	spot.Category = in.Category
	spot.Address = in.Address
	spot.Lat = in.Lat
	spot.Lng = in.Lng
	spot.ImageURLs = append(append([]string{}, in.ImageURLs...), uploaded...)
}

// normalizeAll resolves the authors of docs in bulk and normalizes them.
func normalizeAll(ctx context.Context, store repository.DocumentStore, collection string, docs []model.Document, viewerID string) ([]normalize.UnifiedPost, error) {
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, normalize.ResolveAuthorID(doc))
	}
	profiles, err := ranking.ResolveProfiles(ctx, store, ids)
	if err != nil {
		return nil, err
	}
	out := make([]normalize.UnifiedPost, 0, len(docs))
	for _, doc := range docs {
		out = append(out, normalize.NormalizeForViewer(doc, collection, ranking.ProfileFor(profiles, doc), viewerID))
	}
	return out, nil
}
