package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/kansenki/internal/apperror"
	"github.com/sakif/kansenki/internal/model"
	"github.com/sakif/kansenki/internal/repository"
)

// TravelInput is the trip part of the post form. Several match reports from
// the same trip point at one travel document.
type TravelInput struct {
	Season    string         `json:"season"`
	StartDate string         `json:"startDate"`
	EndDate   string         `json:"endDate"`
	Duration  string         `json:"duration"`
	Cities    []string       `json:"cities"`
	Flights   []model.Flight `json:"flights"`
	Hotels    []model.Hotel  `json:"hotels"`
	Costs     *model.Costs   `json:"costs"`
}

func (in TravelInput) validate() error {
	if err := checkHotels(in.Hotels); err != nil {
		return err
	}
	start, err := parseDate("startDate", in.StartDate)
	if err != nil {
		return err
	}
	end, err := parseDate("endDate", in.EndDate)
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return apperror.ValidationFailed("endDate", "endDate must not be before startDate")
	}
	return nil
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, apperror.ValidationFailed(field, fmt.Sprintf("%s must be YYYY-MM-DD", field))
	}
	return t, nil
}

type TravelService struct {
	store  repository.DocumentStore
	logger *slog.Logger
}

func NewTravelService(store repository.DocumentStore, logger *slog.Logger) *TravelService {
	return &TravelService{store: store, logger: logger}
}

func (s *TravelService) Create(ctx context.Context, uid string, in TravelInput) (*model.Travel, error) {
	if err := requireUser(uid); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	author, err := authorBlock(ctx, s.store, uid)
	if err != nil {
		return nil, err
	}

	ts := now()
	travel := &model.Travel{
		AuthorID:  uid,
		Author:    author,
		CreatedAt: model.Timestamp{Time: ts},
		UpdatedAt: model.Timestamp{Time: ts},
	}
	applyTravelInput(travel, in)

	doc, err := toStoreDocument(travel, map[string]time.Time{"createdAt": ts, "updatedAt": ts})
	if err != nil {
		return nil, err
	}
	travel.ID, err = s.store.Create(ctx, model.CollectionTravels, "", doc)
	if err != nil {
		s.logger.Error("failed to create travel", slog.String("uid", uid), slog.String("error", err.Error()))
		return nil, fmt.Errorf("creating travel: %w", err)
	}

	s.logger.Info("travel created", slog.String("id", travel.ID), slog.String("uid", uid))
	return travel, nil
}

func (s *TravelService) Get(ctx context.Context, id string) (*model.Travel, error) {
	doc, err := s.store.Get(ctx, model.CollectionTravels, id)
	if err != nil {
		return nil, err
	}
	var travel model.Travel
	if err := model.FromDocument(doc, &travel); err != nil {
		return nil, err
	}
	return &travel, nil
}

// Update replaces the trip fields. Only the author may update.
func (s *TravelService) Update(ctx context.Context, uid, id string, in TravelInput) (*model.Travel, error) {
	doc, err := s.store.Get(ctx, model.CollectionTravels, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(doc, uid, "travel"); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var travel model.Travel
	if err := model.FromDocument(doc, &travel); err != nil {
		return nil, err
	}
	applyTravelInput(&travel, in)
	ts := now()
	travel.UpdatedAt = model.Timestamp{Time: ts}

	fields, err := toStoreDocument(travel, map[string]time.Time{"updatedAt": ts})
	if err != nil {
		return nil, err
	}
	// Cleared optional fields must be removed from the stored document too.
	for _, key := range []string{"season", "startDate", "endDate", "duration", "cities", "flights", "hotels", "costs"} {
		if _, ok := fields[key]; !ok {
			fields[key] = nil
		}
	}
	delete(fields, "createdAt")

	if err := s.store.Update(ctx, model.CollectionTravels, id, fields); err != nil {
		return nil, fmt.Errorf("updating travel: %w", err)
	}

	s.logger.Info("travel updated", slog.String("id", id))
	return &travel, nil
}

func (s *TravelService) Delete(ctx context.Context, uid, id string) error {
	doc, err := s.store.Get(ctx, model.CollectionTravels, id)
	if err != nil {
		return err
	}
	if err := requireOwner(doc, uid, "travel"); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, model.CollectionTravels, id); err != nil {
		return fmt.Errorf("deleting travel: %w", err)
	}
	s.logger.Info("travel deleted", slog.String("id", id))
	return nil
}

// ListByAuthor returns the user's trips, newest first. The post form offers
// them when attaching a report to an existing trip.
func (s *TravelService) ListByAuthor(ctx context.Context, uid string) ([]model.Travel, error) {
	docs, err := s.store.Query(ctx, model.CollectionTravels, repository.Query{
		Where:   []repository.Filter{repository.Where("authorId", uid)},
		OrderBy: "createdAt",
		Desc:    true,
		Limit:   MaxListLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing travels: %w", err)
	}

	travels := make([]model.Travel, 0, len(docs))
	for _, doc := range docs {
		var t model.Travel
		if err := model.FromDocument(doc, &t); err != nil {
			return nil, err
		}
		travels = append(travels, t)
	}
	return travels, nil
}

func applyTravelInput(t *model.Travel, in TravelInput) {
	t.Season = strings.TrimSpace(in.Season)
	t.StartDate = in.StartDate
	t.EndDate = in.EndDate
	t.Duration = strings.TrimSpace(in.Duration)
	t.Cities = trimAll(in.Cities)
	t.Flights = in.Flights
	t.Hotels = in.Hotels
	if in.Costs != nil {
		c := in.Costs.Sum()
		t.Costs = &c
	} else {
		t.Costs = nil
	}
}
