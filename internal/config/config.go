package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	BackendSQLite    = "sqlite"
	BackendPathstore = "pathstore"
	BackendMemory    = "memory"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"8090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Remote sources
	ListingURL     string        `env:"LISTING_URL" envDefault:"https://api.github.com/repos/lutherie/traite/contents/pages"`
	ListingToken   string        `env:"LISTING_TOKEN"`
	ContentBaseURL string        `env:"CONTENT_BASE_URL" envDefault:"https://lutherie.github.io/traite"`
	HTTPTimeout    time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	// Local store
	StoreBackend string `env:"STORE_BACKEND" envDefault:"sqlite"`
	StorePath    string `env:"STORE_PATH" envDefault:"page-cache.db"`

	// Pathstore connection
	PathstoreURL    string `env:"PATHSTORE_URL" envDefault:"http://localhost:8080"`
	PathstoreAPIKey string `env:"PATHSTORE_API_KEY"`
	PathstorePrefix string `env:"PATHSTORE_PREFIX" envDefault:"pagecache"`

	// Reconciliation
	MaxConcurrentFetch int           `env:"MAX_CONCURRENT_FETCH" envDefault:"4"`
	SyncInterval       time.Duration `env:"SYNC_INTERVAL" envDefault:"10m"`

	// Navigation
	Locales       []string `env:"LOCALES" envDefault:"en,fr" envSeparator:","`
	DefaultLocale string   `env:"DEFAULT_LOCALE" envDefault:"en"`
	BasePath      string   `env:"BASE_PATH" envDefault:"/"`
	HomeLinkTitle string   `env:"HOME_LINK_TITLE" envDefault:"François Denis"`
	HomeLinkURL   string   `env:"HOME_LINK_URL" envDefault:"https://lutherie.github.io"`
}

// Load reads the configuration from the environment and fills in defaults for
// values that parse but make no sense.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.MaxConcurrentFetch <= 0 {
		cfg.MaxConcurrentFetch = 4
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = 10 * time.Minute
	}
	cfg.DefaultLocale = strings.ToLower(strings.TrimSpace(cfg.DefaultLocale))
	for i, l := range cfg.Locales {
		cfg.Locales[i] = strings.ToLower(strings.TrimSpace(l))
	}
	cfg.ContentBaseURL = strings.TrimRight(cfg.ContentBaseURL, "/")
	if cfg.BasePath == "" {
		cfg.BasePath = "/"
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.ListingURL == "" {
		return fmt.Errorf("LISTING_URL is required")
	}
	if c.ContentBaseURL == "" {
		return fmt.Errorf("CONTENT_BASE_URL is required")
	}
	switch c.StoreBackend {
	case BackendSQLite:
		if c.StorePath == "" {
			return fmt.Errorf("STORE_PATH is required for the sqlite backend")
		}
	case BackendPathstore:
		if c.PathstoreAPIKey == "" {
			return fmt.Errorf("PATHSTORE_API_KEY is required for the pathstore backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if len(c.Locales) == 0 {
		return fmt.Errorf("LOCALES must name at least one locale")
	}
	found := false
	for _, l := range c.Locales {
		if len(l) != 2 {
			return fmt.Errorf("locale %q is not a 2-letter code", l)
		}
		if l == c.DefaultLocale {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("DEFAULT_LOCALE %q is not one of LOCALES %v", c.DefaultLocale, c.Locales)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level. Unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
