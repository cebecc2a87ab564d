package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/kansenki/internal/apperror"
	"github.com/sakif/kansenki/internal/images"
	"github.com/sakif/kansenki/internal/model"
	"github.com/sakif/kansenki/internal/repository"
)

// PostInput is what the match report forms submit. The full form writes to
// "posts"; the simple form writes to "simple-posts" and only uses Match,
// TravelID/NewTravel, Episode and photos.
//
// NewTravel creates a trip record first and links the report to it.
// ImageURLs are already-hosted photos to keep when editing.
type PostInput struct {
	Title     string           `json:"title"`
	Match     *model.Match     `json:"match"`
	TravelID  string           `json:"travelId"`
	NewTravel *TravelInput     `json:"newTravel"`
	Flights   []model.Flight   `json:"flights"`
	Hotels    []model.Hotel    `json:"hotels"`
	Spots     []model.SpotNote `json:"spots"`
	Costs     *model.Costs     `json:"costs"`
	Episode   string           `json:"episode"`
	Advice    string           `json:"advice"`
	Items     string           `json:"items"`
	ImageURLs []string         `json:"imageUrls"`
}

// PostService handles both match report collections.
type PostService struct {
	store   repository.DocumentStore
	images  images.Store
	travels *TravelService
	logger  *slog.Logger
}

func NewPostService(store repository.DocumentStore, img images.Store, travels *TravelService, logger *slog.Logger) *PostService {
	return &PostService{
		store:   store,
		images:  img,
		travels: travels,
		logger:  logger,
	}
}

func requireReportCollection(collection string) error {
	if collection != model.CollectionPosts && collection != model.CollectionSimplePosts {
		return apperror.NotFound("collection", collection)
	}
	return nil
}

func (in *PostInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.TravelID = strings.TrimSpace(in.TravelID)
	in.Episode = strings.TrimSpace(in.Episode)
	in.Advice = strings.TrimSpace(in.Advice)
	in.Items = strings.TrimSpace(in.Items)
	if in.Match != nil {
		in.Match.HomeTeam = strings.TrimSpace(in.Match.HomeTeam)
		in.Match.AwayTeam = strings.TrimSpace(in.Match.AwayTeam)
		in.Match.Stadium.Name = strings.TrimSpace(in.Match.Stadium.Name)
	}
}

func (in PostInput) hasTeams() bool {
	return in.Match != nil && in.Match.HomeTeam != "" && in.Match.AwayTeam != ""
}

// validate checks everything that can be checked before any upload starts.
func (in PostInput) validate(collection string, newPhotos int) error {
	switch collection {
	case model.CollectionSimplePosts:
		if !in.hasTeams() {
			return apperror.ValidationFailed("match", "home and away teams are required")
		}
	default:
		if in.Title == "" && !in.hasTeams() {
			return apperror.ValidationFailed("title", "a title or both teams are required")
		}
	}
	if in.Match != nil && (in.Match.HomeTeam == "") != (in.Match.AwayTeam == "") {
		return apperror.ValidationFailed("match", "both teams are required")
	}

	if err := checkLength("title", in.Title, MaxTitleLength); err != nil {
		return err
	}
	for field, text := range map[string]string{"episode": in.Episode, "advice": in.Advice, "items": in.Items} {
		if err := checkLength(field, text, MaxTextLength); err != nil {
			return err
		}
	}
	if err := checkHotels(in.Hotels); err != nil {
		return err
	}
	for _, s := range in.Spots {
		if strings.TrimSpace(s.Name) == "" {
			return apperror.ValidationFailed("spots", "spot name is required")
		}
		if err := checkURL("spots", s.URL); err != nil {
			return err
		}
	}
	if in.TravelID != "" && in.NewTravel != nil {
		return apperror.ValidationFailed("travelId", "choose an existing trip or a new one, not both")
	}
	if in.NewTravel != nil {
		if err := in.NewTravel.validate(); err != nil {
			return err
		}
	}
	if len(in.ImageURLs)+newPhotos > images.MaxPerPost {
		return apperror.ValidationFailed("images", fmt.Sprintf("at most %d photos per post", images.MaxPerPost))
	}
	for _, u := range in.ImageURLs {
		if err := checkURL("imageUrls", u); err != nil {
			return err
		}
	}
	return nil
}

func validateFiles(files []images.File) error {
	for _, f := range files {
		if err := images.Validate(f); err != nil {
			return err
		}
	}
	return nil
}

// Submit runs the form pipeline: validate, create the trip when a new one
// was entered, upload photos one by one, then write the report once.
// A failure at any step returns immediately. Nothing is rolled back.
func (s *PostService) Submit(ctx context.Context, uid, collection string, in PostInput, files []images.File) (*model.Post, error) {
	if err := requireUser(uid); err != nil {
		return nil, err
	}
	if err := requireReportCollection(collection); err != nil {
		return nil, err
	}
	in.normalize()
	if err := in.validate(collection, len(files)); err != nil {
		return nil, err
	}
	if err := validateFiles(files); err != nil {
		return nil, err
	}
	if err := s.checkTravel(ctx, uid, in.TravelID); err != nil {
		return nil, err
	}

	author, err := authorBlock(ctx, s.store, uid)
	if err != nil {
		return nil, err
	}

	if in.NewTravel != nil {
		travel, err := s.travels.Create(ctx, uid, *in.NewTravel)
		if err != nil {
			return nil, err
		}
		in.TravelID = travel.ID
	}

	uploaded, err := images.UploadAll(ctx, s.images, files, s.logger)
	if err != nil {
		return nil, err
	}

	ts := now()
	post := &model.Post{
		AuthorID:  uid,
		Author:    author,
		ImageURLs: append(append([]string{}, in.ImageURLs...), uploaded...),
		CreatedAt: model.Timestamp{Time: ts},
		UpdatedAt: model.Timestamp{Time: ts},
	}
	applyPostInput(post, collection, in)

	doc, err := toStoreDocument(post, map[string]time.Time{"createdAt": ts, "updatedAt": ts})
	if err != nil {
		return nil, err
	}
	post.ID, err = s.store.Create(ctx, collection, "", doc)
	if err != nil {
		s.logger.Error("failed to save post",
			slog.String("collection", collection),
			slog.String("uid", uid),
			slog.Any("orphans", uploaded),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating %s: %w", collection, err)
	}

	s.logger.Info("post created",
		slog.String("collection", collection),
		slog.String("id", post.ID),
		slog.Int("photos", len(post.ImageURLs)),
	)
	return post, nil
}

// checkTravel makes sure a linked trip exists and belongs to the writer.
func (s *PostService) checkTravel(ctx context.Context, uid, travelID string) error {
	if travelID == "" {
		return nil
	}
	doc, err := s.store.Get(ctx, model.CollectionTravels, travelID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.ValidationFailed("travelId", "trip not found")
		}
		return err
	}
	return requireOwner(doc, uid, "travel")
}

func (s *PostService) Get(ctx context.Context, collection, id string) (*model.Post, error) {
	if err := requireReportCollection(collection); err != nil {
		return nil, err
	}
	doc, err := s.store.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	var post model.Post
	if err := model.FromDocument(doc, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// Update re-runs the form pipeline on an existing report. in.ImageURLs is
// the list of photos to keep; new uploads are appended to it. A nil list
// keeps the stored photos.
func (s *PostService) Update(ctx context.Context, uid, collection, id string, in PostInput, files []images.File) (*model.Post, error) {
	if err := requireReportCollection(collection); err != nil {
		return nil, err
	}
	doc, err := s.store.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(doc, uid, "post"); err != nil {
		return nil, err
	}

	var post model.Post
	if err := model.FromDocument(doc, &post); err != nil {
		return nil, err
	}
	if in.ImageURLs == nil {
		in.ImageURLs = post.ImageURLs
	}

	in.normalize()
	if err := in.validate(collection, len(files)); err != nil {
		return nil, err
	}
	if err := validateFiles(files); err != nil {
		return nil, err
	}
	if in.TravelID != post.TravelID {
		if err := s.checkTravel(ctx, uid, in.TravelID); err != nil {
			return nil, err
		}
	}

	if in.NewTravel != nil {
		travel, err := s.travels.Create(ctx, uid, *in.NewTravel)
		if err != nil {
			return nil, err
		}
		in.TravelID = travel.ID
	}

	uploaded, err := images.UploadAll(ctx, s.images, files, s.logger)
	if err != nil {
		return nil, err
	}

	ts := now()
	post.ImageURLs = append(append([]string{}, in.ImageURLs...), uploaded...)
	post.UpdatedAt = model.Timestamp{Time: ts}
	applyPostInput(&post, collection, in)

	fields, err := toStoreDocument(post, map[string]time.Time{"updatedAt": ts})
	if err != nil {
		return nil, err
	}
	for _, key := range []string{"title", "match", "travelId", "flights", "hotels", "spots", "costs", "episode", "advice", "items"} {
		if _, ok := fields[key]; !ok {
			fields[key] = nil
		}
	}
	// Counters move only through Increment; the author block and creation
	// time never change.
	for _, key := range []string{"createdAt", "authorId", "author", model.FieldLikeCount, model.FieldHelpfulCount, model.FieldBookmarkCount, model.FieldViewCount} {
		delete(fields, key)
	}

	if err := s.store.Update(ctx, collection, id, fields); err != nil {
		s.logger.Error("failed to update post",
			slog.String("id", id),
			slog.Any("orphans", uploaded),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating %s: %w", collection, err)
	}

	s.logger.Info("post updated", slog.String("collection", collection), slog.String("id", id))
	return &post, nil
}

func (s *PostService) Delete(ctx context.Context, uid, collection, id string) error {
	if err := requireReportCollection(collection); err != nil {
		return err
	}
	doc, err := s.store.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	if err := requireOwner(doc, uid, "post"); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, collection, id); err != nil {
		return fmt.Errorf("deleting %s: %w", collection, err)
	}
	s.logger.Info("post deleted", slog.String("collection", collection), slog.String("id", id))
	return nil
}

// applyPostInput copies the form fields the collection keeps.
func applyPostInput(p *model.Post, collection string, in PostInput) {
	p.Match = in.Match
	p.TravelID = in.TravelID
	p.Episode = in.Episode
	if collection == model.CollectionSimplePosts {
		return
	}
	p.Title = in.Title
	p.Flights = in.Flights
	p.Hotels = in.Hotels
	p.Spots = in.Spots
	p.Advice = in.Advice
	p.Items = in.Items
	if in.Costs != nil {
		c := in.Costs.Sum()
		p.Costs = &c
	} else {
		p.Costs = nil
	}
}
