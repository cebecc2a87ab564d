// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: config comes in, and New builds the store,
// the external clients, the services and the handlers, then maps URLs to
// handlers. Nothing below this package constructs its own dependencies.
//
// DEPENDENCY FLOW:
//
//	config.Config
//	  → DocumentStore (SQLite or MongoDB)
//	  → images.Store, places.Client, ogp.Fetcher, auth.TokenService
//	  → services → handlers → routes
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/kansenki/internal/auth"
	"github.com/sakif/kansenki/internal/config"
	"github.com/sakif/kansenki/internal/handler"
	"github.com/sakif/kansenki/internal/images"
	"github.com/sakif/kansenki/internal/mapview"
	"github.com/sakif/kansenki/internal/middleware"
	"github.com/sakif/kansenki/internal/model"
	"github.com/sakif/kansenki/internal/ogp"
	"github.com/sakif/kansenki/internal/places"
	"github.com/sakif/kansenki/internal/ranking"
	"github.com/sakif/kansenki/internal/repository"
	"github.com/sakif/kansenki/internal/repository/mongo"
	sqliteRepo "github.com/sakif/kansenki/internal/repository/sqlite"
	"github.com/sakif/kansenki/internal/service"
)

// Store is a DocumentStore the server owns and closes on shutdown.
type Store interface {
	repository.DocumentStore
	Close() error
}

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	store  Store // closed when Start returns
}

// New opens the configured store and wires every route.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}

	if err := s.setupRoutes(); err != nil {
		store.Close() // don't leak the connection if wiring fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		store, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, fmt.Errorf("opening MongoDB: %w", err)
		}
		return store, nil
	default:
		store, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return store, nil
	}
}

// Handler exposes the router, so tests can drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the store. Start calls it on shutdown.
func (s *Server) Close() error {
	return s.store.Close()
}

// imageStore returns Cloudinary, or a store that fails every upload when no
// CLOUDINARY_URL is set so forms without photos still work.
func (s *Server) imageStore() (images.Store, error) {
	if s.config.CloudinaryURL == "" {
		s.logger.Warn("CLOUDINARY_URL not set; photo uploads are disabled")
		return images.Unavailable{}, nil
	}
	return images.NewCloudinary(s.config.CloudinaryURL, s.config.CloudinaryFolder, s.config.CloudinaryUploadPreset, s.logger)
}

// setupRoutes configures middleware and routes.
//
// MIDDLEWARE ORDER:
//  1. RequestID, RealIP, Recoverer (chi)
//  2. Logger
//  3. Visitor: a cookie id for guests, used by anonymous likes
//  4. OptionalAuth: puts the user id in the context when the session cookie
//     is valid; write routes add RequireAuth on top
func (s *Server) setupRoutes() error {
	cfg := s.config
	secure := strings.HasPrefix(cfg.GoogleCallbackURL, "https://")

	// === Auth ===
	var tokens *auth.TokenService
	if cfg.AuthEnabled() {
		var err error
		if tokens, err = auth.NewTokenService(cfg.JWTSecret); err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
	} else {
		s.logger.Warn("JWT_SECRET not set; sign-in is disabled")
	}
	admins := auth.NewAdmins(cfg.AdminUIDs)
	requireAuth := auth.RequireAuth(tokens)
	requireAdmin := auth.RequireAdmin(admins)

	// === External clients ===
	img, err := s.imageStore()
	if err != nil {
		return fmt.Errorf("creating image store: %w", err)
	}
	placesClient := places.New(cfg.GoogleMapsAPIKey, cfg.ProxyTimeout, s.logger)
	if !placesClient.Configured() {
		s.logger.Warn("GOOGLE_MAPS_API_KEY not set; place search is disabled")
	}
	preview := ogp.NewFetcher(cfg.ProxyTimeout, s.logger)
	palette, err := mapview.DefaultPalette()
	if err != nil {
		return fmt.Errorf("loading map palette: %w", err)
	}

	// === Services ===
	travels := service.NewTravelService(s.store, s.logger)
	posts := service.NewPostService(s.store, img, travels, s.logger)
	spots := service.NewSpotService(s.store, img, s.logger)
	profiles := service.NewProfileService(s.store, img, s.logger)
	engagement := service.NewEngagementService(s.store, s.logger)
	banners := service.NewBannerService(s.store, preview, admins, s.logger)
	questions := service.NewQuestionService(s.store, admins, s.logger)
	feed := service.NewFeedService(s.store, s.logger)
	maps := service.NewMapService(s.store, palette, s.logger)
	authService := service.NewAuthService(profiles, tokens, s.logger)

	// === Handlers ===
	authH := handler.NewAuthHandler(
		auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL),
		authService, secure, s.logger,
	)
	postH := handler.NewPostHandler(posts, s.logger)
	travelH := handler.NewTravelHandler(travels, s.logger)
	spotH := handler.NewSpotHandler(spots, s.logger)
	userH := handler.NewUserHandler(profiles, engagement, s.logger)
	reactionH := handler.NewReactionHandler(engagement, s.logger)
	questionH := handler.NewQuestionHandler(questions, s.logger)
	bannerH := handler.NewBannerHandler(banners, s.logger)
	uploadH := handler.NewUploadHandler(img, s.logger)
	feedH := handler.NewFeedHandler(feed, ranking.NewAggregator(s.store, s.logger), s.logger)
	mapH := handler.NewMapHandler(maps, s.logger)
	proxyH := handler.NewProxyHandler(placesClient, preview, s.logger)

	// === Global middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Visitor(secure))
	s.router.Use(auth.OptionalAuth(tokens))

	s.router.Get("/healthz", handler.HandleHealth)

	// OAuth routes only exist when sign-in is possible.
	if cfg.AuthEnabled() && cfg.GoogleClientID != "" {
		s.router.Get("/auth/google/login", authH.HandleGoogleLogin)
		s.router.Get("/auth/google/callback", authH.HandleGoogleCallback)
	}
	s.router.Post("/auth/logout", authH.HandleLogout)

	limiter := middleware.NewIPRateLimiter(cfg.ProxyRateLimit, int(cfg.ProxyRateLimit*2))

	s.router.Route("/api", func(r chi.Router) {
		// --- Public reads ---
		r.Get("/feed", feedH.HandleLatest)
		r.Get("/ranking", feedH.HandleRanking)
		r.Get("/items/{collection}/{id}", feedH.HandleItem)
		r.Get("/banners", bannerH.HandleList)
		r.Get("/map/markers", mapH.HandleMarkers)
		r.Get("/spots", spotH.HandleList)
		r.Get("/travels/{id}", travelH.HandleGet)
		r.Get("/users/by-handle/{handle}", userH.HandleGetByHandle)
		r.Get("/users/{uid}", userH.HandleGet)
		r.Get("/users/{uid}/posts", userH.HandlePosts)

		// --- Proxies (rate limited per IP) ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(limiter, s.logger))
			r.Get("/places/search", proxyH.HandlePlaceSearch)
			r.Get("/places/details", proxyH.HandlePlaceDetails)
			r.Get("/places/photo", proxyH.HandlePlacePhoto)
		})

		// --- Signed-in users ---
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/me", authH.HandleMe)
			r.Get("/me/bookmarks", userH.HandleBookmarks)
			r.Get("/me/travels", travelH.HandleListMine)
			r.Put("/users/me", userH.HandleUpdateMe)
			r.Post("/uploads", uploadH.HandleUpload)

			for _, collection := range []string{model.CollectionPosts, model.CollectionSimplePosts} {
				r.Post("/"+collection, postH.HandleCreate(collection))
				r.Put("/"+collection+"/{id}", postH.HandleUpdate(collection))
				r.Delete("/"+collection+"/{id}", postH.HandleDelete(collection))
			}

			r.Post("/travels", travelH.HandleCreate)
			r.Put("/travels/{id}", travelH.HandleUpdate)
			r.Delete("/travels/{id}", travelH.HandleDelete)

			r.Post("/spots", spotH.HandleCreate)
			r.Put("/spots/{id}", spotH.HandleUpdate)
			r.Delete("/spots/{id}", spotH.HandleDelete)

			r.Post("/questions/{id}/answer", questionH.HandleAnswer)
			r.Delete("/questions/{id}", questionH.HandleDelete)

			// --- Admins ---
			r.With(requireAdmin).Post("/banners", bannerH.HandleCreate)
			r.With(requireAdmin).Put("/banners/{id}", bannerH.HandleUpdate)
			r.With(requireAdmin).Delete("/banners/{id}", bannerH.HandleDelete)
			// Link previews are for banner authoring only.
			r.With(requireAdmin, middleware.RateLimit(limiter, s.logger)).Get("/ogp", proxyH.HandleOGP)
		})

		// --- Reactions and Q&A on any post-like collection ---
		// Static prefixes above win; a path like /posts/{id}/like falls
		// through to here.
		r.Route("/{collection}/{id}", func(r chi.Router) {
			r.Post("/like", reactionH.HandleLike) // guests like by visitor cookie
			r.Post("/view", reactionH.HandleView)
			r.Get("/status", reactionH.HandleStatus)
			r.Get("/questions", questionH.HandleList)

			r.With(requireAuth).Delete("/like", reactionH.HandleUnlike)
			r.With(requireAuth).Post("/bookmark", reactionH.HandleBookmark)
			r.With(requireAuth).Delete("/bookmark", reactionH.HandleUnbookmark)
			r.With(requireAuth).Post("/thanks", reactionH.HandleThank)
			r.With(requireAuth).Delete("/thanks", reactionH.HandleUnthank)
			r.With(requireAuth).Post("/questions", questionH.HandleAsk)
		})
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests
//  3. Close the store (flushes SQLite WAL, disconnects Mongo)
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", s.config.Port),
		Handler:     s.router,
		ReadTimeout: 30 * time.Second, // photo uploads are large
		// Proxied photo downloads and OGP fetches can take up to PROXY_TIMEOUT.
		WriteTimeout: s.config.ProxyTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("store", s.config.StoreDriver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
