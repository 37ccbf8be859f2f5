package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	BackendPostgres = "postgres"
	BackendPebble   = "pebble"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	StoreBackend string `mapstructure:"STORE_BACKEND"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	DBMaxConns   int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns   int32  `mapstructure:"DB_MIN_CONNS"`
	PebblePath   string `mapstructure:"PEBBLE_PATH"`

	RedisURL       string        `mapstructure:"REDIS_URL"`
	UnreadCacheTTL time.Duration `mapstructure:"UNREAD_CACHE_TTL"`

	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL    string `mapstructure:"AUTH_JWKS_URL"`
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`

	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`

	ForumStrictRoles  bool     `mapstructure:"FORUM_STRICT_ROLES"`
	ForumEmojiPalette []string `mapstructure:"FORUM_EMOJI_PALETTE"`

	NotificationRetention     time.Duration `mapstructure:"NOTIFICATION_RETENTION"`
	NotificationRetentionCron string        `mapstructure:"NOTIFICATION_RETENTION_CRON"`

	TLSEnabled  bool   `mapstructure:"TLS_ENABLED"`
	TLSCertFile string `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile  string `mapstructure:"TLS_KEY_FILE"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"STORE_BACKEND", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "PEBBLE_PATH",
	"REDIS_URL", "UNREAD_CACHE_TTL",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWKS_URL", "AUTH_SIGNING_KEY",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT", "BODY_LIMIT",
	"FORUM_STRICT_ROLES", "FORUM_EMOJI_PALETTE",
	"NOTIFICATION_RETENTION", "NOTIFICATION_RETENTION_CRON",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
}

// Load reads configuration from the environment and an optional .env file.
// Call Validate before using the result.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", BackendPostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("PEBBLE_PATH", "./data/curalink")
	v.SetDefault("UNREAD_CACHE_TTL", "1m")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("FORUM_STRICT_ROLES", false)
	v.SetDefault("NOTIFICATION_RETENTION", "720h")
	v.SetDefault("NOTIFICATION_RETENTION_CRON", "0 3 * * *")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// A missing .env file is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)
	cfg.ForumEmojiPalette = splitList(cfg.ForumEmojiPalette)
	return cfg, nil
}

// splitList accepts both an already split slice and a single comma separated
// entry, and drops blanks.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Level returns the zerolog level named by LOG_LEVEL.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Validate checks that the configuration is safe to run. Outside development
// a token verification source is required.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is %q", BackendPostgres)
		}
		if c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
		}
	case BackendPebble:
		if c.PebblePath == "" {
			return fmt.Errorf("PEBBLE_PATH is required when STORE_BACKEND is %q", BackendPebble)
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendPebble, c.StoreBackend)
	}

	if !c.IsDev() && c.AuthSigningKey == "" && c.AuthJWKSURL == "" {
		return fmt.Errorf("AUTH_JWKS_URL or AUTH_SIGNING_KEY must be set when ENV=%q", c.Env)
	}
	if c.IsProduction() && c.AuthSigningKey != "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is for development and tests; use AUTH_JWKS_URL in production")
	}

	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.UnreadCacheTTL <= 0 {
		return fmt.Errorf("UNREAD_CACHE_TTL must be positive, got %s", c.UnreadCacheTTL)
	}
	if c.NotificationRetention <= 0 {
		return fmt.Errorf("NOTIFICATION_RETENTION must be positive, got %s", c.NotificationRetention)
	}
	if !gronx.IsValid(c.NotificationRetentionCron) {
		return fmt.Errorf("NOTIFICATION_RETENTION_CRON is not a valid cron expression: %q", c.NotificationRetentionCron)
	}

	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}
	return nil
}
