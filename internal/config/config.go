// Package config loads server configuration from the environment.
//
// A .env file in the working directory is read first (godotenv), so local
// development needs no exported variables. Real environment variables win over
// .env entries because godotenv.Load never overwrites a variable that is set.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config is everything cmd/server needs to build the server.
type Config struct {
	Port     int
	LogLevel slog.Level

	StoreDriver   string
	DBPath        string
	MongoURI      string
	MongoDatabase string

	// JWTSecret signs session cookies. Empty disables sign-in.
	JWTSecret          string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
	AdminUIDs          []string

	CloudinaryURL          string
	CloudinaryUploadPreset string
	CloudinaryFolder       string

	GoogleMapsAPIKey string
	ProxyRateLimit   float64
	ProxyTimeout     time.Duration
}

// AuthEnabled reports whether sessions can be issued.
func (c Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// Load reads .env (if present) and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function. Tests pass a map-backed
// getenv instead of mutating the process environment.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := Config{
		StoreDriver:            get("STORE_DRIVER", DriverSQLite),
		DBPath:                 get("DB_PATH", "data/kansenki.db"),
		MongoURI:               get("MONGODB_URI", "mongodb://127.0.0.1:27017"),
		MongoDatabase:          get("MONGODB_DATABASE", "kansenki"),
		JWTSecret:              get("JWT_SECRET", ""),
		GoogleClientID:         get("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:     get("GOOGLE_CLIENT_SECRET", ""),
		GoogleCallbackURL:      get("GOOGLE_CALLBACK_URL", ""),
		AdminUIDs:              splitList(get("ADMIN_UIDS", "")),
		CloudinaryURL:          get("CLOUDINARY_URL", ""),
		CloudinaryUploadPreset: get("CLOUDINARY_UPLOAD_PRESET", ""),
		CloudinaryFolder:       get("CLOUDINARY_FOLDER", "kansenki"),
		GoogleMapsAPIKey:       get("GOOGLE_MAPS_API_KEY", ""),
	}

	var err error
	if cfg.Port, err = strconv.Atoi(get("PORT", "8080")); err != nil || cfg.Port <= 0 {
		return Config{}, fmt.Errorf("config: invalid PORT %q", getenv("PORT"))
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(get("LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("config: invalid LOG_LEVEL: %w", err)
	}

	switch cfg.StoreDriver {
	case DriverSQLite, DriverMongo:
	default:
		return Config{}, fmt.Errorf("config: unknown STORE_DRIVER %q (want sqlite or mongo)", cfg.StoreDriver)
	}

	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < 16 {
		return Config{}, fmt.Errorf("config: JWT_SECRET must be at least 16 characters")
	}

	if cfg.GoogleCallbackURL == "" {
		cfg.GoogleCallbackURL = fmt.Sprintf("http://localhost:%d/auth/google/callback", cfg.Port)
	}

	if cfg.ProxyRateLimit, err = strconv.ParseFloat(get("PROXY_RATE_LIMIT", "5"), 64); err != nil || cfg.ProxyRateLimit <= 0 {
		return Config{}, fmt.Errorf("config: invalid PROXY_RATE_LIMIT %q", getenv("PROXY_RATE_LIMIT"))
	}

	if cfg.ProxyTimeout, err = time.ParseDuration(get("PROXY_TIMEOUT", "10s")); err != nil {
		return Config{}, fmt.Errorf("config: invalid PROXY_TIMEOUT: %w", err)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
