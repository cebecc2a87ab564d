package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/kansenki/internal/apperror"
	"github.com/sakif/kansenki/internal/model"
	"github.com/sakif/kansenki/internal/ogp"
	"github.com/sakif/kansenki/internal/repository"
)

// AdminPolicy decides who may manage banners and moderate questions.
// auth.Admins implements it.
type AdminPolicy interface {
	IsAdmin(uid string) bool
}

// LinkPreviewer reads a page's Open Graph metadata. *ogp.Fetcher implements it.
type LinkPreviewer interface {
	Fetch(ctx context.Context, rawURL string) (*ogp.Metadata, error)
}

// BannerInput is the admin banner form. Empty text fields are filled from
// the linked page on create and left unchanged on update.
type BannerInput struct {
	LinkURL  string `json:"linkUrl"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	ImageURL string `json:"imageUrl"`
	Order    *int   `json:"order"`
}

func (in *BannerInput) normalize() {
	in.LinkURL = strings.TrimSpace(in.LinkURL)
	in.Title = strings.TrimSpace(in.Title)
	in.Subtitle = strings.TrimSpace(in.Subtitle)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
}

type BannerService struct {
	store   repository.DocumentStore
	preview LinkPreviewer
	admins  AdminPolicy
	logger  *slog.Logger
}

func NewBannerService(store repository.DocumentStore, preview LinkPreviewer, admins AdminPolicy, logger *slog.Logger) *BannerService {
	return &BannerService{
		store:   store,
		preview: preview,
		admins:  admins,
		logger:  logger,
	}
}

func (s *BannerService) requireAdmin(uid string) error {
	if err := requireUser(uid); err != nil {
		return err
	}
	if !s.admins.IsAdmin(uid) {
		return apperror.Forbidden("admin only")
	}
	return nil
}

// Create adds a banner. Missing title, subtitle or image are read from the
// link's OGP tags. Without an explicit order the banner goes last.
func (s *BannerService) Create(ctx context.Context, uid string, in BannerInput) (*model.Banner, error) {
	if err := s.requireAdmin(uid); err != nil {
		return nil, err
	}
	in.normalize()
	if _, err := ogp.ValidateURL(in.LinkURL); err != nil {
		return nil, apperror.ValidationFailed("linkUrl", "linkUrl must be an absolute http(s) URL")
	}
	if err := checkURL("imageUrl", in.ImageURL); err != nil {
		return nil, err
	}

	if in.Title == "" || in.Subtitle == "" || in.ImageURL == "" {
		meta, err := s.preview.Fetch(ctx, in.LinkURL)
		switch {
		case err == nil:
			in.Title = firstNonEmpty(in.Title, meta.Title)
			in.Subtitle = firstNonEmpty(in.Subtitle, meta.Description)
			in.ImageURL = firstNonEmpty(in.ImageURL, meta.Image)
		case in.Title == "":
			return nil, err
		default:
			// The admin typed a title; a page we cannot read only loses the extras.
			s.logger.Warn("banner link preview failed", slog.String("url", in.LinkURL), slog.String("error", err.Error()))
		}
	}
	if in.Title == "" {
		return nil, apperror.ValidationFailed("title", "title is required and the page has no og:title")
	}
	if err := checkLength("title", in.Title, MaxTitleLength); err != nil {
		return nil, err
	}

	order := 0
	if in.Order != nil {
		order = *in.Order
	} else {
		existing, err := s.store.Query(ctx, model.CollectionBanners, repository.Query{})
		if err != nil {
			return nil, fmt.Errorf("counting banners: %w", err)
		}
		order = len(existing)
	}

	ts := now()
	banner := &model.Banner{
		Title:     in.Title,
		Subtitle:  in.Subtitle,
		ImageURL:  in.ImageURL,
		LinkURL:   in.LinkURL,
		Order:     order,
		CreatedAt: model.Timestamp{Time: ts},
	}
	doc, err := toStoreDocument(banner, map[string]time.Time{"createdAt": ts})
	if err != nil {
		return nil, err
	}
	banner.ID, err = s.store.Create(ctx, model.CollectionBanners, "", doc)
	if err != nil {
		return nil, fmt.Errorf("creating banner: %w", err)
	}

	s.logger.Info("banner created", slog.String("id", banner.ID), slog.String("title", banner.Title))
	return banner, nil
}

// List returns all banners by ascending order.
func (s *BannerService) List(ctx context.Context) ([]model.Banner, error) {
	docs, err := s.store.Query(ctx, model.CollectionBanners, repository.Query{
		OrderBy: "order",
		Limit:   MaxListLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing banners: %w", err)
	}
	banners := make([]model.Banner, 0, len(docs))
	for _, doc := range docs {
		var b model.Banner
		if err := model.FromDocument(doc, &b); err != nil {
			return nil, err
		}
		banners = append(banners, b)
	}
	return banners, nil
}

// Update changes the given fields. Nothing is fetched.
func (s *BannerService) Update(ctx context.Context, uid, id string, in BannerInput) (*model.Banner, error) {
	if err := s.requireAdmin(uid); err != nil {
		return nil, err
	}
	in.normalize()

	fields := model.Document{}
	if in.LinkURL != "" {
		if _, err := ogp.ValidateURL(in.LinkURL); err != nil {
			return nil, apperror.ValidationFailed("linkUrl", "linkUrl must be an absolute http(s) URL")
		}
		fields["linkUrl"] = in.LinkURL
	}
	if in.Title != "" {
		if err := checkLength("title", in.Title, MaxTitleLength); err != nil {
			return nil, err
		}
		fields["title"] = in.Title
	}
	if in.Subtitle != "" {
		fields["subtitle"] = in.Subtitle
	}
	if in.ImageURL != "" {
		if err := checkURL("imageUrl", in.ImageURL); err != nil {
			return nil, err
		}
		fields["imageUrl"] = in.ImageURL
	}
	if in.Order != nil {
		fields["order"] = *in.Order
	}

	if err := s.store.Update(ctx, model.CollectionBanners, id, fields); err != nil {
		return nil, err
	}
	doc, err := s.store.Get(ctx, model.CollectionBanners, id)
	if err != nil {
		return nil, err
	}
	var b model.Banner
	if err := model.FromDocument(doc, &b); err != nil {
		return nil, err
	}
	s.logger.Info("banner updated", slog.String("id", id))
	return &b, nil
}

func (s *BannerService) Delete(ctx context.Context, uid, id string) error {
	if err := s.requireAdmin(uid); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, model.CollectionBanners, id); err != nil {
		return err
	}
	s.logger.Info("banner deleted", slog.String("id", id))
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
