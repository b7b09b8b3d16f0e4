package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Worker    WorkerConfig    `koanf:"worker"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Auth      AuthConfig      `koanf:"auth"`
	Limits    LimitsConfig    `koanf:"limits"`
	Jobs      JobsConfig      `koanf:"jobs"`
	Cache     CacheConfig     `koanf:"cache"`
	Retention RetentionConfig `koanf:"retention"`
	Fetch     FetchConfig     `koanf:"fetch"`
	Separator SeparatorConfig `koanf:"separator"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type WorkerConfig struct {
	HealthPort int `koanf:"health_port"`
}

type DatabaseConfig struct {
	URL            string `koanf:"url"`
	MaxConnections int    `koanf:"max_connections"`
}

type RedisConfig struct {
	URL string `koanf:"url"`
}

type AuthConfig struct {
	APIKey     string `koanf:"api_key"`
	HeaderName string `koanf:"header_name"`
}

type LimitsConfig struct {
	MaxConcurrentJobs int      `koanf:"max_concurrent_jobs"`
	RatePerSecond     float64  `koanf:"rate_per_second"`
	AllowedDomains    []string `koanf:"allowed_domains"`
}

type JobsConfig struct {
	BaseDir        string   `koanf:"base_dir"`
	AttemptTimeout string   `koanf:"attempt_timeout"`
	MaxAttempts    int      `koanf:"max_attempts"`
	RetryDelays    []string `koanf:"retry_delays"`
}

type CacheConfig struct {
	TTL string `koanf:"ttl"`
}

type RetentionConfig struct {
	MaxAge   string `koanf:"max_age"`
	Interval string `koanf:"interval"`
}

type FetchConfig struct {
	Binary string `koanf:"binary"`
}

type SeparatorConfig struct {
	Binary string `koanf:"binary"`
	Model  string `koanf:"model"`
	Device string `koanf:"device"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Load reads config from TOML file (if provided) then overlays env vars.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	// 2. Load TOML config file if provided
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, err
		}
	}

	// 3. Load env vars: STEM_SERVER_PORT -> server.port. Every key is
	// section.name, so only the first underscore separates them; the rest
	// belong to the name (STEM_LIMITS_MAX_CONCURRENT_JOBS ->
	// limits.max_concurrent_jobs). Empty values are skipped so they don't
	// override TOML config.
	if err := k.Load(env.ProviderWithValue("STEM_", ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		mapped := strings.ToLower(strings.TrimPrefix(key, "STEM_"))
		if section, name, ok := strings.Cut(mapped, "_"); ok {
			mapped = section + "." + name
		}
		return mapped, value
	}), nil); err != nil {
		return nil, err
	}

	// 4. Handle top-level convenience env vars
	if v := os.Getenv("STEM_DATABASE_URL"); v != "" {
		k.Set("database.url", v)
	}
	if v := os.Getenv("STEM_REDIS_URL"); v != "" {
		k.Set("redis.url", v)
	}
	if v := os.Getenv("STEM_AUTH_API_KEY"); v != "" {
		k.Set("auth.api_key", v)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// AttemptTimeout parses the configured per-attempt timeout, falling back to
// 10 minutes on a bad value.
func (c *Config) AttemptTimeout() time.Duration {
	return parseDuration(c.Jobs.AttemptTimeout, 10*time.Minute)
}

// RetryDelays parses the configured backoff schedule. Unparseable entries
// are skipped; an empty result falls back to the default schedule.
func (c *Config) RetryDelays() []time.Duration {
	var delays []time.Duration
	for _, s := range c.Jobs.RetryDelays {
		if d, err := time.ParseDuration(s); err == nil && d >= 0 {
			delays = append(delays, d)
		}
	}
	if len(delays) == 0 {
		return []time.Duration{10 * time.Second, 30 * time.Second, 60 * time.Second}
	}
	return delays
}

// CacheTTL parses the result cache TTL, default 7 days.
func (c *Config) CacheTTL() time.Duration {
	return parseDuration(c.Cache.TTL, 7*24*time.Hour)
}

// RetentionMaxAge parses the sweep age threshold, default 7 days.
func (c *Config) RetentionMaxAge() time.Duration {
	return parseDuration(c.Retention.MaxAge, 7*24*time.Hour)
}

// RetentionInterval parses the sweep period, default 1 hour.
func (c *Config) RetentionInterval() time.Duration {
	return parseDuration(c.Retention.Interval, time.Hour)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
