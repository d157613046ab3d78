// Package config provides configuration management for the portal client.
// It supports environment variable-based configuration with validation and default values
// for the API transport, anti-forgery handling, caches, session, Redis, metrics and logging.
// Operational tuning (TTLs, CSRF detection) may also come from YAML files under configs/.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/LunarVagabond/phasepoint-frontend/internal/models"
)

// Config represents the complete configuration for the portal client,
// aggregating all component-specific configurations.
type Config struct {
	// Environment holds environment-specific settings.
	Environment EnvironmentConfig `envconfig:"ENVIRONMENT"`
	// API contains backend connection settings.
	API APIConfig `envconfig:"API"`
	// CSRF contains anti-forgery token settings.
	CSRF CSRFConfig `envconfig:"CSRF"`
	// Cache contains reference-data cache TTLs.
	Cache CacheConfig `envconfig:"CACHE"`
	// Session contains identity cache settings.
	Session SessionConfig `envconfig:"SESSION"`
	// Navigation contains route guard settings.
	Navigation NavigationConfig `envconfig:"NAVIGATION"`
	// Kiosk pins the client to a kiosk device when set.
	Kiosk KioskConfig `envconfig:"KIOSK"`
	// Redis contains the optional shared cache store configuration.
	Redis RedisConfig `envconfig:"REDIS"`
	// Metrics contains the local debug server configuration.
	Metrics MetricsConfig `envconfig:"METRICS"`
	// Logging contains logging configuration.
	Logging LoggingConfig `envconfig:"LOGGING"`
}

type Environment string

const (
	Local   Environment = "LOCAL"
	NonProd Environment = "NONPROD"
	Prod    Environment = "PROD"
)

// EnvironmentConfig holds environment-specific settings.
type EnvironmentConfig struct {
	// Environment indicates the current running environment (LOCAL, NONPROD, PROD).
	Environment Environment `envconfig:"ENV" default:"LOCAL"`
}

// APIConfig holds backend connection settings.
type APIConfig struct {
	// URL is the API base URL. Empty selects the environment default.
	URL string `envconfig:"URL"`
	// Timeout bounds every outbound request including the token fetch.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"30s"`
}

// CSRFConfig holds anti-forgery token settings.
type CSRFConfig struct {
	// Path is the token endpoint relative to the API base URL.
	Path string `envconfig:"PATH" default:"/csrf/"`
	// HeaderName is the request header carrying the token.
	HeaderName string `envconfig:"HEADER_NAME" default:"X-Csrftoken"`
	// Keywords mark a 403 body as a stale-token rejection (case-insensitive substring match).
	Keywords []string `envconfig:"KEYWORDS" default:"csrf"`
}

// CacheConfig holds per-kind reference-data TTLs.
type CacheConfig struct {
	CustomersTTL time.Duration `envconfig:"CUSTOMERS_TTL" default:"2m"`
	UsersTTL     time.Duration `envconfig:"USERS_TTL"     default:"2m"`
	GroupsTTL    time.Duration `envconfig:"GROUPS_TTL"    default:"10m"`
}

// SessionConfig holds identity cache settings.
type SessionConfig struct {
	// TTL is how long a fetched identity stays valid.
	TTL time.Duration `envconfig:"TTL" default:"5m"`
}

// NavigationConfig holds route guard settings.
type NavigationConfig struct {
	// MaxRedirects bounds how many guard redirects one navigation may follow.
	MaxRedirects int `envconfig:"MAX_REDIRECTS" default:"5"`
}

// KioskConfig holds kiosk-mode settings.
type KioskConfig struct {
	// ID is the registered kiosk identifier. Non-empty enables kiosk mode.
	ID string `envconfig:"ID"`
}

// RedisConfig contains Redis connection configuration including
// connection pool settings and timeouts. An empty URL keeps caches in memory.
type RedisConfig struct {
	// URL is the Redis connection URL.
	URL string `envconfig:"URL"`
	// Password is the Redis authentication password.
	Password string `envconfig:"PASSWORD"`
	// DB is the Redis database number to use.
	DB int `envconfig:"DB"            default:"0"`
	// KeyPrefix namespaces every key written by the reference cache.
	KeyPrefix string `envconfig:"KEY_PREFIX"    default:"refcache"`
	// MaxRetries is the maximum number of retry attempts for failed operations.
	MaxRetries int `envconfig:"MAX_RETRIES"   default:"3"`
	// PoolSize is the maximum number of socket connections.
	PoolSize int `envconfig:"POOL_SIZE"     default:"10"`
	// MinIdleConn is the minimum number of idle connections.
	MinIdleConn int `envconfig:"MIN_IDLE_CONN" default:"1"`
	// DialTimeout is the timeout for establishing new connections.
	DialTimeout time.Duration `envconfig:"DIAL_TIMEOUT"  default:"5s"`
	// ReadTimeout is the timeout for socket reads.
	ReadTimeout time.Duration `envconfig:"READ_TIMEOUT"  default:"3s"`
	// WriteTimeout is the timeout for socket writes.
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
	// PoolTimeout is the amount of time client waits for connection.
	PoolTimeout time.Duration `envconfig:"POOL_TIMEOUT"  default:"4s"`
	// IdleTimeout is the amount of time after which client closes idle connections.
	IdleTimeout time.Duration `envconfig:"IDLE_TIMEOUT"  default:"300s"`
}

// MetricsConfig holds the debug server configuration.
type MetricsConfig struct {
	// Addr is the listen address for /health and /metrics. Empty disables the server.
	Addr string `envconfig:"ADDR"`
	// ShutdownTimeout is the maximum time to wait for graceful server shutdown.
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
}

// LoggingConfig contains logging configuration including
// log level, format, and output destination.
type LoggingConfig struct {
	// Level is the logging level (debug, info, warn, error).
	Level string `envconfig:"LEVEL"              default:"warn"`
	// Format is the log output format (json, text).
	Format string `envconfig:"FORMAT"             default:"text"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `envconfig:"OUTPUT"             default:"stderr"`
	// ConsoleFormat is the format for console output (text, json).
	ConsoleFormat string `envconfig:"CONSOLE_FORMAT"     default:"text"`
	// FileFormat is the format for file output (text, json).
	FileFormat string `envconfig:"FILE_FORMAT"        default:"json"`
	// FilePath is the path to the log file for dual output.
	FilePath string `envconfig:"FILE_PATH"`
	// EnableDualOutput enables both console and file logging simultaneously.
	EnableDualOutput bool `envconfig:"ENABLE_DUAL_OUTPUT" default:"false"`
}

// Load reads configuration from environment variables, overlays operational
// settings from the YAML files for the active environment, and returns
// a validated Config instance.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.applyYAMLOverlay(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	var errs models.ValidationErrors

	switch c.Environment.Environment {
	case Local, NonProd, Prod:
	default:
		errs = append(errs, models.ValidationError{
			Field:   "ENVIRONMENT_ENV",
			Message: fmt.Sprintf("unknown environment %q", c.Environment.Environment),
		})
	}

	if c.API.URL != "" {
		if u, err := url.Parse(c.API.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, models.ValidationError{Field: "API_URL", Message: "must be an absolute http(s) URL"})
		}
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, models.ValidationError{Field: "API_TIMEOUT", Message: "must be positive"})
	}

	if strings.TrimSpace(c.CSRF.HeaderName) == "" {
		errs = append(errs, models.ValidationError{Field: "CSRF_HEADER_NAME", Message: "is required"})
	}
	if len(c.CSRFKeywords()) == 0 {
		errs = append(errs, models.ValidationError{Field: "CSRF_KEYWORDS", Message: "needs at least one keyword"})
	}

	for field, ttl := range map[string]time.Duration{
		"CACHE_CUSTOMERS_TTL": c.Cache.CustomersTTL,
		"CACHE_USERS_TTL":     c.Cache.UsersTTL,
		"CACHE_GROUPS_TTL":    c.Cache.GroupsTTL,
		"SESSION_TTL":         c.Session.TTL,
	} {
		if ttl <= 0 {
			errs = append(errs, models.ValidationError{Field: field, Message: "must be positive"})
		}
	}

	if c.Navigation.MaxRedirects < 1 {
		errs = append(errs, models.ValidationError{Field: "NAVIGATION_MAX_REDIRECTS", Message: "must be at least 1"})
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// CSRFKeywords returns the configured stale-token keywords, trimmed and
// lower-cased, with blanks removed.
func (c *Config) CSRFKeywords() []string {
	out := make([]string, 0, len(c.CSRF.Keywords))
	for _, k := range c.CSRF.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// APIBaseURL returns the configured API URL or the environment default.
func (c *Config) APIBaseURL() string {
	if c.API.URL != "" {
		return strings.TrimRight(c.API.URL, "/")
	}
	return c.GetServiceURLs().APIBaseURL
}

// IsKioskMode reports whether the client is pinned to a kiosk device.
func (c *Config) IsKioskMode() bool {
	return c.Kiosk.ID != ""
}

// IsRedisConfigured reports whether the reference cache should use Redis.
func (c *Config) IsRedisConfigured() bool {
	return c.Redis.URL != ""
}

// IsMetricsEnabled reports whether the debug server should run.
func (c *Config) IsMetricsEnabled() bool {
	return c.Metrics.Addr != ""
}

var errNoOverlay = errors.New("no yaml overlay")
