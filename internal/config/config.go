// Package config loads and validates the service configuration from a YAML
// file and KARTO_-prefixed environment variables. Unknown options are
// rejected at startup so a typo fails fast instead of silently running with
// a default.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	DB     DBConfig     `mapstructure:"db"`
	OIDC   OIDCConfig   `mapstructure:"oidc"`
	Outbox OutboxConfig `mapstructure:"outbox"`
	Tenant TenantConfig `mapstructure:"tenant"`
	APIKey APIKeyConfig `mapstructure:"api_key"`
	Log    LogConfig    `mapstructure:"log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// Addr is the bind address (host:port).
	Addr string `mapstructure:"addr"`
}

// DBConfig holds the relational store settings.
type DBConfig struct {
	// URL is the DSN; postgres:// selects PostgreSQL, anything else SQLite.
	URL     string `mapstructure:"url"`
	PoolMin int    `mapstructure:"pool_min"`
	PoolMax int    `mapstructure:"pool_max"`
}

// OIDCConfig holds token validation settings.
type OIDCConfig struct {
	IssuerURL string `mapstructure:"issuer_url"`
	ClientID  string `mapstructure:"client_id"`
	// Audience overrides the expected aud claim; ClientID is used when
	// unset.
	Audience      string        `mapstructure:"audience"`
	UserIDClaim   string        `mapstructure:"user_id_claim"`
	UsernameClaim string        `mapstructure:"username_claim"`
	JWKSCacheTTL  time.Duration `mapstructure:"jwks_cache_ttl"`
}

// OutboxConfig holds worker settings.
type OutboxConfig struct {
	BatchSize     int `mapstructure:"batch_size"`
	PollIntervalS int `mapstructure:"poll_interval_s"`
	MaxAttempts   int `mapstructure:"max_attempts"`
}

// PollInterval returns the poll interval as a duration.
func (c OutboxConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalS) * time.Second
}

// TenantConfig holds tenant resolution settings.
type TenantConfig struct {
	// SingleTenantMode makes requests without an explicit tenant header
	// fall back to the default tenant.
	SingleTenantMode bool   `mapstructure:"single_tenant_mode"`
	DefaultName      string `mapstructure:"default_name"`
}

// APIKeyConfig holds secret generation settings.
type APIKeyConfig struct {
	Prefix       string `mapstructure:"prefix"`
	EntropyBytes int    `mapstructure:"entropy_bytes"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is a zerolog level name: trace, debug, info, warn, error.
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "localhost:8080")
	v.SetDefault("db.url", "kartograph.db")
	v.SetDefault("db.pool_min", 2)
	v.SetDefault("db.pool_max", 25)
	v.SetDefault("oidc.user_id_claim", "sub")
	v.SetDefault("oidc.username_claim", "preferred_username")
	v.SetDefault("oidc.jwks_cache_ttl", 24*time.Hour)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval_s", 5)
	v.SetDefault("outbox.max_attempts", 10)
	v.SetDefault("tenant.single_tenant_mode", false)
	v.SetDefault("tenant.default_name", "default")
	v.SetDefault("api_key.prefix", "karto_")
	v.SetDefault("api_key.entropy_bytes", 32)
	v.SetDefault("log.level", "info")
}

// Load reads configuration from the given file (optional) and the
// environment. Environment variables use the KARTO_ prefix with underscores
// for dots, e.g. KARTO_DB_URL overrides db.url.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("KARTO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := new(Config)
	// UnmarshalExact errors on keys that match no field, which is how
	// unknown options are rejected.
	if err := v.UnmarshalExact(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.DB.URL == "" {
		return fmt.Errorf("db.url must not be empty")
	}
	if c.DB.PoolMin < 0 {
		return fmt.Errorf("db.pool_min must not be negative")
	}
	if c.DB.PoolMax < c.DB.PoolMin {
		return fmt.Errorf("db.pool_max (%d) must be >= db.pool_min (%d)", c.DB.PoolMax, c.DB.PoolMin)
	}
	if c.DB.PoolMax > 100 {
		return fmt.Errorf("db.pool_max (%d) must be <= 100", c.DB.PoolMax)
	}
	if c.Outbox.BatchSize <= 0 {
		return fmt.Errorf("outbox.batch_size must be positive")
	}
	if c.Outbox.PollIntervalS <= 0 {
		return fmt.Errorf("outbox.poll_interval_s must be positive")
	}
	if c.Outbox.MaxAttempts <= 0 {
		return fmt.Errorf("outbox.max_attempts must be positive")
	}
	if c.APIKey.Prefix == "" {
		return fmt.Errorf("api_key.prefix must not be empty")
	}
	if c.APIKey.EntropyBytes < 16 {
		return fmt.Errorf("api_key.entropy_bytes (%d) must be >= 16", c.APIKey.EntropyBytes)
	}
	if c.OIDC.JWKSCacheTTL <= 0 {
		return fmt.Errorf("oidc.jwks_cache_ttl must be positive")
	}
	return nil
}
