package cms

import "github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/runtimeconfig"

var (
	ErrLocalBackendUnknown      = runtimeconfig.ErrLocalBackendUnknown
	ErrRemoteBackendUnknown     = runtimeconfig.ErrRemoteBackendUnknown
	ErrDriverUnknown            = runtimeconfig.ErrDriverUnknown
	ErrDSNRequired              = runtimeconfig.ErrDSNRequired
	ErrRedisAddrRequired        = runtimeconfig.ErrRedisAddrRequired
	ErrAuthSecretRequired       = runtimeconfig.ErrAuthSecretRequired
	ErrQuotaInvalid             = runtimeconfig.ErrQuotaInvalid
	ErrHistoryLimitInvalid      = runtimeconfig.ErrHistoryLimitInvalid
	ErrLoggingProviderRequired  = runtimeconfig.ErrLoggingProviderRequired
	ErrLoggingProviderUnknown   = runtimeconfig.ErrLoggingProviderUnknown
	ErrLoggingLevelInvalid      = runtimeconfig.ErrLoggingLevelInvalid
	ErrLoggingFormatInvalid     = runtimeconfig.ErrLoggingFormatInvalid
	ErrAdvancedCacheRequiresBun = runtimeconfig.ErrAdvancedCacheRequiresBun
	ErrEventStreamRequiresHTTP  = runtimeconfig.ErrEventStreamRequiresHTTP
)

type (
	Config        = runtimeconfig.Config
	StorageConfig = runtimeconfig.StorageConfig
	RedisConfig   = runtimeconfig.RedisConfig
	AuthConfig    = runtimeconfig.AuthConfig
	ContentConfig = runtimeconfig.ContentConfig
	CacheConfig   = runtimeconfig.CacheConfig
	LoggingConfig = runtimeconfig.LoggingConfig
	HTTPConfig    = runtimeconfig.HTTPConfig
	Features      = runtimeconfig.Features
)

// DefaultConfig returns an in-memory configuration suitable for development.
func DefaultConfig() Config {
	return runtimeconfig.DefaultConfig()
}

// ConfigFromEnv loads dotenv files and SITECONTENT_* overrides.
func ConfigFromEnv(files ...string) (Config, error) {
	return runtimeconfig.FromEnv(files...)
}
