// Package config loads the service configuration from an optional file, the
// environment and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PIPELINE_SERVER_PORT.
const EnvPrefix = "PIPELINE"

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTSettings     `mapstructure:"jwt"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Billing   BillingConfig   `mapstructure:"billing"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig configures the relational store.
type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MigrateOnStart bool   `mapstructure:"migrate_on_start"`
}

// JWTSettings holds the raw session credential settings.
type JWTSettings struct {
	Secret          string `mapstructure:"secret"`
	ExpirationHours int    `mapstructure:"expiration_hours"`
}

// NotifyConfig configures the notification queue. An empty AMQPURL logs notifications instead.
type NotifyConfig struct {
	AMQPURL        string        `mapstructure:"amqp_url"`
	Queue          string        `mapstructure:"queue"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// BillingConfig configures invoice defaults.
type BillingConfig struct {
	TVARate        float64 `mapstructure:"tva_rate"`
	DefaultDueDays int     `mapstructure:"default_due_days"`
}

// MatchingConfig configures bulk scoring.
type MatchingConfig struct {
	TopN           int  `mapstructure:"top_n"`
	Workers        int  `mapstructure:"workers"`
	ExperienceGate bool `mapstructure:"experience_gate"`
}

// LogConfig configures the logger.
type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

// RateLimitConfig configures per-client request throttling on the HTTP API.
type RateLimitConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DefaultLimit    int           `mapstructure:"default_limit"`
	DefaultWindow   time.Duration `mapstructure:"default_window"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Whitelist       []string      `mapstructure:"whitelist"`
	Blacklist       []string      `mapstructure:"blacklist"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("database.url", "")
	v.SetDefault("database.migrate_on_start", false)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration_hours", 24)
	v.SetDefault("notify.amqp_url", "")
	v.SetDefault("notify.queue", "notifications")
	v.SetDefault("notify.publish_timeout", 5*time.Second)
	v.SetDefault("billing.tva_rate", 0.20)
	v.SetDefault("billing.default_due_days", 30)
	v.SetDefault("matching.top_n", 50)
	v.SetDefault("matching.workers", 4)
	v.SetDefault("matching.experience_gate", false)
	v.SetDefault("log.json", false)
	v.SetDefault("log.debug", false)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.default_limit", 1000)
	v.SetDefault("rate_limit.default_window", time.Minute)
	v.SetDefault("rate_limit.cleanup_interval", 5*time.Minute)
	v.SetDefault("rate_limit.whitelist", []string{})
	v.SetDefault("rate_limit.blacklist", []string{})
}

// Load reads configuration from path (optional), PIPELINE_* environment variables
// and the unprefixed DATABASE_URL, JWT_SECRET, JWT_EXPIRATION_HOURS and AMQP_URL.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	legacy := map[string][]string{
		"database.url":         {"PIPELINE_DATABASE_URL", "DATABASE_URL"},
		"jwt.secret":           {"PIPELINE_JWT_SECRET", "JWT_SECRET"},
		"jwt.expiration_hours": {"PIPELINE_JWT_EXPIRATION_HOURS", "JWT_EXPIRATION_HOURS"},
		"notify.amqp_url":      {"PIPELINE_NOTIFY_AMQP_URL", "AMQP_URL"},
	}
	for key, envs := range legacy {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Billing.TVARate < 0 || c.Billing.TVARate > 1 {
		errs = append(errs, fmt.Errorf("billing.tva_rate must be between 0 and 1, got %g", c.Billing.TVARate))
	}
	if c.Billing.DefaultDueDays < 0 {
		errs = append(errs, fmt.Errorf("billing.default_due_days cannot be negative"))
	}
	if c.Matching.TopN < 1 {
		errs = append(errs, fmt.Errorf("matching.top_n must be at least 1, got %d", c.Matching.TopN))
	}
	if c.Matching.Workers < 1 {
		errs = append(errs, fmt.Errorf("matching.workers must be at least 1, got %d", c.Matching.Workers))
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.DefaultLimit < 1 {
			errs = append(errs, fmt.Errorf("rate_limit.default_limit must be at least 1, got %d", c.RateLimit.DefaultLimit))
		}
		if c.RateLimit.DefaultWindow <= 0 {
			errs = append(errs, fmt.Errorf("rate_limit.default_window must be positive"))
		}
	}
	return errors.Join(errs...)
}
