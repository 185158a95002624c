// Package config loads service configuration from defaults, an optional
// file and STUDENTSVC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// STUDENTSVC_HTTP_ADDR for http.addr.
const EnvPrefix = "STUDENTSVC"

// Config is the complete service configuration.
type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	Shows    ShowsConfig    `mapstructure:"shows"`
	Marks    MarksConfig    `mapstructure:"marks"`
}

type HTTPConfig struct {
	Addr              string        `mapstructure:"addr"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Burst             int           `mapstructure:"burst"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type EngineConfig struct {
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	Concurrency        int           `mapstructure:"concurrency"`
	BatchSize          int           `mapstructure:"batch_size"`
	CompletedRetention time.Duration `mapstructure:"completed_retention"`
	PurgeInterval      time.Duration `mapstructure:"purge_interval"`
}

type CacheConfig struct {
	Backend  string        `mapstructure:"backend"`
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
	Size     int           `mapstructure:"size"`
	Prefix   string        `mapstructure:"prefix"`
}

// AuthConfig lists the accepted API tokens. An empty list disables
// authorization.
type AuthConfig struct {
	Tokens []string `mapstructure:"tokens"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ShowsConfig points at the TVMaze API. An empty base URL disables the
// lookup.
type ShowsConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	ShowID  int           `mapstructure:"show_id"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type MarksConfig struct {
	Delay time.Duration `mapstructure:"delay"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.requests_per_minute", 600)
	v.SetDefault("http.burst", 50)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "studentsvc.db")
	v.SetDefault("database.max_open_conns", 0) // driver default
	v.SetDefault("database.max_idle_conns", 0)
	v.SetDefault("database.conn_max_lifetime", 0)
	v.SetDefault("database.conn_max_idle_time", 0)

	v.SetDefault("engine.poll_interval", time.Second)
	v.SetDefault("engine.concurrency", 10)
	v.SetDefault("engine.batch_size", 100)
	v.SetDefault("engine.completed_retention", 24*time.Hour)
	v.SetDefault("engine.purge_interval", 10*time.Minute)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_url", "redis://localhost:6379/0")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.size", 128)
	v.SetDefault("cache.prefix", "studentsvc:")

	v.SetDefault("auth.tokens", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("shows.base_url", "https://api.tvmaze.com")
	v.SetDefault("shows.show_id", 2)
	v.SetDefault("shows.timeout", 5*time.Second)

	v.SetDefault("marks.delay", 10*time.Second)
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads configuration. path may be empty, in which case
// studentsvc.{yaml,toml,json} is looked up in the working directory and
// silently skipped if absent.
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("studentsvc")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", describe(path), err)
		}
	}
	return LoadWithViper(v)
}

// LoadWithViper decodes and validates the configuration held by v.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	// Comma separated tokens from the environment arrive as one string.
	cfg.Auth.Tokens = splitTokens(cfg.Auth.Tokens)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Engine.PollInterval <= 0 {
		errs = append(errs, errors.New("engine.poll_interval must be positive"))
	}
	if c.Engine.Concurrency < 1 {
		errs = append(errs, errors.New("engine.concurrency must be at least 1"))
	}
	if c.Engine.CompletedRetention < 0 {
		errs = append(errs, errors.New("engine.completed_retention must not be negative"))
	}
	if c.HTTP.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("http.requests_per_minute must not be negative"))
	}
	if c.Marks.Delay < 0 {
		errs = append(errs, errors.New("marks.delay must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func splitTokens(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, t := range strings.Split(s, ",") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

func describe(path string) string {
	if path == "" {
		return "studentsvc config"
	}
	return path
}
