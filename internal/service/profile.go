package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/kansenki/internal/apperror"
	"github.com/sakif/kansenki/internal/images"
	"github.com/sakif/kansenki/internal/model"
	"github.com/sakif/kansenki/internal/normalize"
	"github.com/sakif/kansenki/internal/ranking"
	"github.com/sakif/kansenki/internal/repository"
)

const (
	MaxNicknameLength = 30
	MaxBioLength      = 300
	maxSocialLength   = 200
	// handleAttempts bounds the retries when a random handle is taken.
	handleAttempts = 5
)

var handlePattern = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)

// ProfileCollections are searched when listing a user's posts.
var ProfileCollections = []string{
	model.CollectionPosts,
	model.CollectionSimplePosts,
	model.CollectionSpots,
	model.CollectionTravels,
}

// ProfileInput is the profile edit form. Nil fields are left unchanged.
type ProfileInput struct {
	Nickname         *string            `json:"nickname"`
	Handle           *string            `json:"handle"`
	Bio              *string            `json:"bio"`
	Social           *model.SocialLinks `json:"social"`
	TravelStats      *model.TravelStats `json:"travelStats"`
	VisitedCountries []string           `json:"visitedCountries"`
}

type ProfileService struct {
	store  repository.DocumentStore
	images images.Store
	logger *slog.Logger
}

func NewProfileService(store repository.DocumentStore, img images.Store, logger *slog.Logger) *ProfileService {
	return &ProfileService{store: store, images: img, logger: logger}
}

// EnsureProfile returns the profile of uid, creating it on first sign-in
// with the identity provider's name and picture and a random handle.
func (s *ProfileService) EnsureProfile(ctx context.Context, uid, email, name, picture string) (*model.User, error) {
	if err := requireUser(uid); err != nil {
		return nil, err
	}
	user, err := s.Get(ctx, uid)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	handle, err := s.randomHandle(ctx)
	if err != nil {
		return nil, err
	}

	nickname := []rune(strings.TrimSpace(name))
	if len(nickname) > MaxNicknameLength {
		nickname = nickname[:MaxNicknameLength]
	}

	ts := now()
	user = &model.User{
		ID:               uid,
		Nickname:         string(nickname),
		Handle:           handle,
		AvatarURL:        picture,
		Email:            email,
		VisitedCountries: []string{},
		CreatedAt:        model.Timestamp{Time: ts},
		UpdatedAt:        model.Timestamp{Time: ts},
	}
	doc, err := toStoreDocument(user, map[string]time.Time{"createdAt": ts, "updatedAt": ts})
	if err != nil {
		return nil, err
	}

	if _, err := s.store.Create(ctx, model.CollectionUsers, uid, doc); err != nil {
		// A concurrent first sign-in created it already.
		if errors.Is(err, apperror.ErrConflict) {
			return s.Get(ctx, uid)
		}
		return nil, fmt.Errorf("creating profile: %w", err)
	}

	s.logger.Info("profile created", slog.String("uid", uid), slog.String("handle", handle))
	return user, nil
}

func (s *ProfileService) randomHandle(ctx context.Context) (string, error) {
	for range handleAttempts {
		id := xid.New().String()
		handle := "fan_" + id[len(id)-10:]
		taken, err := s.handleTaken(ctx, handle, "")
		if err != nil {
			return "", err
		}
		if !taken {
			return handle, nil
		}
	}
	return "", apperror.Conflict("handle", "random")
}

// handleTaken reports whether another user than uid owns handle.
func (s *ProfileService) handleTaken(ctx context.Context, handle, uid string) (bool, error) {
	docs, err := s.store.Query(ctx, model.CollectionUsers, repository.Query{
		Where: []repository.Filter{repository.Where("handle", handle)},
		Limit: 2,
	})
	if err != nil {
		return false, fmt.Errorf("checking handle: %w", err)
	}
	for _, doc := range docs {
		if doc.String("id") != uid {
			return true, nil
		}
	}
	return false, nil
}

func (s *ProfileService) Get(ctx context.Context, uid string) (*model.User, error) {
	doc, err := s.store.Get(ctx, model.CollectionUsers, uid)
	if err != nil {
		return nil, err
	}
	return userFromDocument(doc)
}

func (s *ProfileService) GetByHandle(ctx context.Context, handle string) (*model.User, error) {
	handle = strings.ToLower(strings.TrimSpace(handle))
	docs, err := s.store.Query(ctx, model.CollectionUsers, repository.Query{
		Where: []repository.Filter{repository.Where("handle", handle)},
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("finding handle: %w", err)
	}
	if len(docs) == 0 {
		return nil, apperror.NotFound("user", handle)
	}
	return userFromDocument(docs[0])
}

func userFromDocument(doc model.Document) (*model.User, error) {
	var user model.User
	if err := model.FromDocument(doc, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Update edits the signed-in user's own profile. avatar, when given, is
// uploaded and replaces avatarUrl.
func (s *ProfileService) Update(ctx context.Context, uid string, in ProfileInput, avatar *images.File) (*model.User, error) {
	if err := requireUser(uid); err != nil {
		return nil, err
	}

	fields := model.Document{}
	if in.Nickname != nil {
		nickname := strings.TrimSpace(*in.Nickname)
		if nickname == "" {
			return nil, apperror.ValidationFailed("nickname", "nickname is required")
		}
		if err := checkLength("nickname", nickname, MaxNicknameLength); err != nil {
			return nil, err
		}
		fields["nickname"] = nickname
	}
	if in.Handle != nil {
		handle := strings.ToLower(strings.TrimSpace(*in.Handle))
		if !handlePattern.MatchString(handle) {
			return nil, apperror.ValidationFailed("handle", "handle must be 3-20 characters of a-z, 0-9 and _")
		}
		taken, err := s.handleTaken(ctx, handle, uid)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperror.Conflict("handle", handle)
		}
		fields["handle"] = handle
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if err := checkLength("bio", bio, MaxBioLength); err != nil {
			return nil, err
		}
		fields["bio"] = bio
	}
	if in.Social != nil {
		for field, link := range map[string]string{
			"social.x": in.Social.X, "social.instagram": in.Social.Instagram,
			"social.youtube": in.Social.YouTube, "social.note": in.Social.Note,
		} {
			if err := checkLength(field, link, maxSocialLength); err != nil {
				return nil, err
			}
		}
		social, err := model.ToDocument(in.Social)
		if err != nil {
			return nil, err
		}
		fields["social"] = social
	}
	if in.TravelStats != nil {
		st := *in.TravelStats
		if st.Countries < 0 || st.Matches < 0 || st.Stadiums < 0 {
			return nil, apperror.ValidationFailed("travelStats", "travel stats cannot be negative")
		}
		stats, err := model.ToDocument(st)
		if err != nil {
			return nil, err
		}
		fields["travelStats"] = stats
	}
	if in.VisitedCountries != nil {
		fields["visitedCountries"] = trimAll(in.VisitedCountries)
	}

	if avatar != nil {
		if err := images.Validate(*avatar); err != nil {
			return nil, err
		}
		// Make sure the profile exists before paying for the upload.
		if _, err := s.store.Get(ctx, model.CollectionUsers, uid); err != nil {
			return nil, err
		}
		url, err := s.images.Upload(ctx, *avatar)
		if err != nil {
			return nil, err
		}
		fields["avatarUrl"] = url
	}

	fields["updatedAt"] = now()
	if err := s.store.Update(ctx, model.CollectionUsers, uid, fields); err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}

	s.logger.Info("profile updated", slog.String("uid", uid), slog.Int("fields", len(fields)-1))
	return s.Get(ctx, uid)
}

// ListPosts returns everything uid wrote across the post-like collections,
// newest first. Older documents name their author under different fields,
// so each collection is queried once per author field and the results are
// merged without duplicates.
func (s *ProfileService) ListPosts(ctx context.Context, uid, viewerID string) ([]normalize.UnifiedPost, error) {
	type slot struct {
		collection string
		docs       []model.Document
	}
	slots := make([]slot, len(ProfileCollections)*len(normalize.AuthorFields))

	g, gctx := errgroup.WithContext(ctx)
	for i, collection := range ProfileCollections {
		for j, field := range normalize.AuthorFields {
			idx := i*len(normalize.AuthorFields) + j
			g.Go(func() error {
				docs, err := s.store.Query(gctx, collection, repository.Query{
					Where:   []repository.Filter{repository.Where(field, uid)},
					OrderBy: "createdAt",
					Desc:    true,
					Limit:   MaxListLimit,
				})
				if err != nil {
					return fmt.Errorf("listing %s by %s: %w", collection, field, err)
				}
				slots[idx] = slot{collection: collection, docs: docs}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	profiles, err := ranking.ResolveProfiles(ctx, s.store, []string{uid})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var posts []normalize.UnifiedPost
	for _, sl := range slots {
		for _, doc := range sl.docs {
			// A legacy uid field can name someone else than authorId.
			if normalize.ResolveAuthorID(doc) != uid {
				continue
			}
			key := sl.collection + "/" + doc.String("id")
			if seen[key] {
				continue
			}
			seen[key] = true
			posts = append(posts, normalize.NormalizeForViewer(doc, sl.collection, ranking.ProfileFor(profiles, doc), viewerID))
		}
	}

	sortNewestFirst(posts)
	if posts == nil {
		posts = []normalize.UnifiedPost{}
	}
	return posts, nil
}

// sortNewestFirst orders by CreatedAt descending; equal times keep their
// order.
func sortNewestFirst(posts []normalize.UnifiedPost) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}
