package runtimeconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	ErrLocalBackendUnknown      = errors.New("sitecontent config: local storage backend must be memory, sql or redis")
	ErrRemoteBackendUnknown     = errors.New("sitecontent config: remote storage backend must be memory or bun")
	ErrDriverUnknown            = errors.New("sitecontent config: database driver must be sqlite or postgres")
	ErrDSNRequired              = errors.New("sitecontent config: database dsn is required for sql storage")
	ErrRedisAddrRequired        = errors.New("sitecontent config: redis address is required for redis storage")
	ErrAuthSecretRequired       = errors.New("sitecontent config: auth secret is required when auth is enabled")
	ErrQuotaInvalid             = errors.New("sitecontent config: local quota must be zero or positive")
	ErrHistoryLimitInvalid      = errors.New("sitecontent config: history limit must be zero or positive")
	ErrLoggingProviderRequired  = errors.New("sitecontent config: logging provider is required when logging feature is enabled")
	ErrLoggingProviderUnknown   = errors.New("sitecontent config: logging provider is invalid")
	ErrLoggingLevelInvalid      = errors.New("sitecontent config: logging level is invalid")
	ErrLoggingFormatInvalid     = errors.New("sitecontent config: logging format is invalid")
	ErrAdvancedCacheRequiresBun = errors.New("sitecontent config: cache requires the bun remote backend")
	ErrEventStreamRequiresHTTP  = errors.New("sitecontent config: event stream requires an http address")
)

// Config aggregates storage bindings and feature flags for the content layer.
type Config struct {
	Storage  StorageConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Content  ContentConfig
	Cache    CacheConfig
	Logging  LoggingConfig
	HTTP     HTTPConfig
	Features Features
}

// StorageConfig selects the local and remote backends.
type StorageConfig struct {
	Local  string
	Remote string
	Driver string
	DSN    string
	// Area namespaces local entries so several sites can share one database.
	Area string
}

// RedisConfig configures the redis local backend and change notifier.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig configures bearer token verification for write endpoints.
type AuthConfig struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// ContentConfig captures content storage behaviour.
type ContentConfig struct {
	Quota            int
	HistoryLimit     int
	DeterministicIDs bool
	DefaultsDir      string
	MigrateLegacy    bool
}

// CacheConfig captures cache behaviour toggles.
type CacheConfig struct {
	Enabled    bool
	DefaultTTL time.Duration
}

// LoggingConfig captures provider-specific options for runtime logging.
type LoggingConfig struct {
	Provider  string
	Level     string
	Format    string
	AddSource bool
	Focus     []string
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr           string
	BasePath       string
	AllowedOrigins []string
}

// Features toggles optional functionality.
type Features struct {
	Auth        bool
	EventStream bool
	Logger      bool
}

// DefaultConfig returns an in-memory configuration suitable for development.
func DefaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			Local:  "memory",
			Remote: "memory",
			Driver: "sqlite",
			Area:   "default",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Auth: AuthConfig{
			Issuer:   "sitecontent",
			TokenTTL: 12 * time.Hour,
		},
		Content: ContentConfig{
			Quota:         5 * 1024 * 1024,
			HistoryLimit:  50,
			MigrateLegacy: true,
		},
		Cache: CacheConfig{
			DefaultTTL: time.Minute,
		},
		Logging: LoggingConfig{
			Provider: "console",
			Level:    "info",
		},
		HTTP: HTTPConfig{
			Addr:     ":8080",
			BasePath: "/api",
		},
		Features: Features{
			EventStream: true,
		},
	}
}

// Validate performs high-level consistency checks.
func (cfg Config) Validate() error {
	switch normalize(cfg.Storage.Local) {
	case "memory":
	case "sql":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			return fmt.Errorf("%w: local", ErrDSNRequired)
		}
	case "redis":
		if strings.TrimSpace(cfg.Redis.Addr) == "" {
			return ErrRedisAddrRequired
		}
	default:
		return fmt.Errorf("%w: %s", ErrLocalBackendUnknown, cfg.Storage.Local)
	}

	switch normalize(cfg.Storage.Remote) {
	case "memory":
		if cfg.Cache.Enabled {
			return ErrAdvancedCacheRequiresBun
		}
	case "bun":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			return fmt.Errorf("%w: remote", ErrDSNRequired)
		}
	default:
		return fmt.Errorf("%w: %s", ErrRemoteBackendUnknown, cfg.Storage.Remote)
	}

	if usesDatabase(cfg) {
		switch normalize(cfg.Storage.Driver) {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("%w: %s", ErrDriverUnknown, cfg.Storage.Driver)
		}
	}

	if cfg.Features.Auth && strings.TrimSpace(cfg.Auth.Secret) == "" {
		return ErrAuthSecretRequired
	}
	if cfg.Content.Quota < 0 {
		return ErrQuotaInvalid
	}
	if cfg.Content.HistoryLimit < 0 {
		return ErrHistoryLimitInvalid
	}
	if cfg.Features.EventStream && strings.TrimSpace(cfg.HTTP.Addr) == "" {
		return ErrEventStreamRequiresHTTP
	}

	if cfg.Features.Logger {
		provider := normalize(cfg.Logging.Provider)
		if provider == "" {
			return ErrLoggingProviderRequired
		}
		if !isSupportedProvider(provider) {
			return fmt.Errorf("%w: %s", ErrLoggingProviderUnknown, provider)
		}
		if level := strings.TrimSpace(cfg.Logging.Level); level != "" && !isSupportedLevel(level) {
			return fmt.Errorf("%w: %s", ErrLoggingLevelInvalid, level)
		}
		if provider == "gologger" {
			if format := strings.TrimSpace(cfg.Logging.Format); format != "" && !isSupportedFormat(format) {
				return fmt.Errorf("%w: %s", ErrLoggingFormatInvalid, format)
			}
		}
	}
	return nil
}

// FromEnv loads the given dotenv files (".env" when none are named), applies
// SITECONTENT_* overrides on top of DefaultConfig and validates the result.
// Missing dotenv files are ignored; variables already set in the process
// environment win over file values.
func FromEnv(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("sitecontent config: load env: %w", err)
	}
	cfg := DefaultConfig()
	applyEnv(&cfg, os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) {
	str := func(key string, target *string) {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			*target = strings.TrimSpace(value)
		}
	}
	integer := func(key string, target *int) {
		if value, ok := lookup(key); ok {
			if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				*target = parsed
			}
		}
	}
	boolean := func(key string, target *bool) {
		if value, ok := lookup(key); ok {
			if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
				*target = parsed
			}
		}
	}
	duration := func(key string, target *time.Duration) {
		if value, ok := lookup(key); ok {
			if parsed, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
				*target = parsed
			}
		}
	}
	list := func(key string, target *[]string) {
		if value, ok := lookup(key); ok {
			var items []string
			for _, item := range strings.Split(value, ",") {
				if trimmed := strings.TrimSpace(item); trimmed != "" {
					items = append(items, trimmed)
				}
			}
			*target = items
		}
	}

	str("SITECONTENT_LOCAL_BACKEND", &cfg.Storage.Local)
	str("SITECONTENT_REMOTE_BACKEND", &cfg.Storage.Remote)
	str("SITECONTENT_DB_DRIVER", &cfg.Storage.Driver)
	str("SITECONTENT_DB_DSN", &cfg.Storage.DSN)
	str("SITECONTENT_AREA", &cfg.Storage.Area)

	str("SITECONTENT_REDIS_ADDR", &cfg.Redis.Addr)
	str("SITECONTENT_REDIS_PASSWORD", &cfg.Redis.Password)
	integer("SITECONTENT_REDIS_DB", &cfg.Redis.DB)

	str("SITECONTENT_JWT_SECRET", &cfg.Auth.Secret)
	str("SITECONTENT_JWT_ISSUER", &cfg.Auth.Issuer)
	duration("SITECONTENT_JWT_TTL", &cfg.Auth.TokenTTL)

	integer("SITECONTENT_LOCAL_QUOTA", &cfg.Content.Quota)
	integer("SITECONTENT_HISTORY_LIMIT", &cfg.Content.HistoryLimit)
	boolean("SITECONTENT_DETERMINISTIC_IDS", &cfg.Content.DeterministicIDs)
	str("SITECONTENT_DEFAULTS_DIR", &cfg.Content.DefaultsDir)
	boolean("SITECONTENT_MIGRATE_LEGACY", &cfg.Content.MigrateLegacy)

	boolean("SITECONTENT_CACHE_ENABLED", &cfg.Cache.Enabled)
	duration("SITECONTENT_CACHE_TTL", &cfg.Cache.DefaultTTL)

	str("SITECONTENT_LOG_PROVIDER", &cfg.Logging.Provider)
	str("SITECONTENT_LOG_LEVEL", &cfg.Logging.Level)
	str("SITECONTENT_LOG_FORMAT", &cfg.Logging.Format)
	boolean("SITECONTENT_LOG_ADD_SOURCE", &cfg.Logging.AddSource)
	list("SITECONTENT_LOG_FOCUS", &cfg.Logging.Focus)

	str("SITECONTENT_HTTP_ADDR", &cfg.HTTP.Addr)
	str("SITECONTENT_HTTP_BASE_PATH", &cfg.HTTP.BasePath)
	list("SITECONTENT_HTTP_ALLOWED_ORIGINS", &cfg.HTTP.AllowedOrigins)

	boolean("SITECONTENT_FEATURE_AUTH", &cfg.Features.Auth)
	boolean("SITECONTENT_FEATURE_EVENT_STREAM", &cfg.Features.EventStream)
	boolean("SITECONTENT_FEATURE_LOGGER", &cfg.Features.Logger)

	if strings.TrimSpace(cfg.Auth.Secret) != "" {
		cfg.Features.Auth = true
	}
}

func usesDatabase(cfg Config) bool {
	return normalize(cfg.Storage.Local) == "sql" || normalize(cfg.Storage.Remote) == "bun"
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func isSupportedProvider(provider string) bool {
	switch provider {
	case "console", "gologger":
		return true
	default:
		return false
	}
}

func isSupportedLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
		return true
	default:
		return false
	}
}

func isSupportedFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json", "console", "pretty":
		return true
	default:
		return false
	}
}
