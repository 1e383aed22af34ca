package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	BackendURL     string
	BackendTimeout time.Duration
	Redis          RedisConfig
	Store          StoreConfig
	RateLimit      RateLimitConfig
	UI             UIConfig
	WorkspaceTTL   time.Duration
	CookieSecure   bool
	LogLevel       slog.Level
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// StoreConfig selects where favorites and watchlists are persisted.
type StoreConfig struct {
	Driver string
	DSN    string
}

type RateLimitConfig struct {
	Max           int
	WindowSeconds int
}

// UIConfig holds the knobs the page controllers use.
type UIConfig struct {
	SearchDebounce   time.Duration
	RecommendationsK int
	RecsPageSize     int
	CatalogPageSize  int
	AutocompleteSize int
	SearchPageSize   int
}

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	rateLimitMax, _ := strconv.Atoi(getEnv("RATE_LIMIT_MAX", "120"))
	rateLimitWindow, _ := strconv.Atoi(getEnv("RATE_LIMIT_WINDOW_SECONDS", "60"))

	backendTimeout, err := time.ParseDuration(getEnv("BACKEND_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid BACKEND_TIMEOUT: %w", err)
	}
	debounce, err := time.ParseDuration(getEnv("SEARCH_DEBOUNCE", "300ms"))
	if err != nil {
		return nil, fmt.Errorf("invalid SEARCH_DEBOUNCE: %w", err)
	}
	workspaceTTL, err := time.ParseDuration(getEnv("WORKSPACE_TTL", "30m"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKSPACE_TTL: %w", err)
	}

	recsK, _ := strconv.Atoi(getEnv("RECS_K", "100"))
	recsPageSize, _ := strconv.Atoi(getEnv("RECS_PAGE_SIZE", "30"))
	catalogPageSize, _ := strconv.Atoi(getEnv("CATALOG_PAGE_SIZE", "20"))

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		Port:           getEnv("SERVER_PORT", "8080"),
		BackendURL:     strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:5000"), "/"),
		BackendTimeout: backendTimeout,
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", StoreSQLite)),
			DSN:    getEnv("STORE_DSN", "./data/lists.db"),
		},
		RateLimit: RateLimitConfig{
			Max:           rateLimitMax,
			WindowSeconds: rateLimitWindow,
		},
		UI: UIConfig{
			SearchDebounce:   debounce,
			RecommendationsK: positive(recsK, 100),
			RecsPageSize:     positive(recsPageSize, 30),
			CatalogPageSize:  positive(catalogPageSize, 20),
			AutocompleteSize: 8,
			SearchPageSize:   100,
		},
		WorkspaceTTL: workspaceTTL,
		CookieSecure: getEnv("COOKIE_SECURE", "false") == "true",
		LogLevel:     level,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreMemory, StoreSQLite, StorePostgres:
	case StoreRedis:
		if !c.Redis.Enabled() {
			return fmt.Errorf("STORE_DRIVER=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL must not be empty")
	}
	return nil
}

func positive(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
