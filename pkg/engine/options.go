package engine

import (
	"log/slog"
	"time"

	"github.com/Saiteja21M/studentsvc/pkg/internal/backoff"
	"github.com/Saiteja21M/studentsvc/pkg/security"
)

// Option configures an Engine.
type Option interface {
	apply(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) apply(c *Config) { f(c) }

// Config holds engine configuration.
type Config struct {
	PollInterval time.Duration
	Concurrency  int
	BatchSize    int

	// CompletedRetention is how long COMPLETE triggers stay queryable.
	// Zero deletes a trigger as soon as it completes.
	CompletedRetention time.Duration
	PurgeInterval      time.Duration

	StorageRetry backoff.Config
	Now          func() time.Time
	Logger       *slog.Logger
	Metrics      *Metrics
}

func defaultConfig() Config {
	return Config{
		PollInterval:       time.Second,
		Concurrency:        10,
		BatchSize:          100,
		CompletedRetention: 24 * time.Hour,
		PurgeInterval:      10 * time.Minute,
		StorageRetry:       backoff.Default(),
		Now:                time.Now,
	}
}

// PollInterval sets how often the engine looks for due triggers.
func PollInterval(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		if d > 0 {
			c.PollInterval = d
		}
	})
}

// Concurrency bounds the number of fires running at once.
// Values are clamped to [1, MaxConcurrency].
func Concurrency(n int) Option {
	return optionFunc(func(c *Config) {
		c.Concurrency = security.ClampConcurrency(n)
	})
}

// BatchSize bounds the number of due triggers read per tick.
func BatchSize(n int) Option {
	return optionFunc(func(c *Config) {
		c.BatchSize = security.ClampBatchSize(n)
	})
}

// CompletedRetention sets how long finished triggers are kept.
func CompletedRetention(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		if d >= 0 {
			c.CompletedRetention = d
		}
	})
}

// PurgeInterval sets how often finished triggers are purged.
func PurgeInterval(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		if d > 0 {
			c.PurgeInterval = d
		}
	})
}

// StorageRetry sets the retry policy for post-fire store writes.
func StorageRetry(cfg backoff.Config) Option {
	return optionFunc(func(c *Config) {
		c.StorageRetry = cfg
	})
}

// WithClock replaces the wall clock. Tests use it to drive fire times.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(c *Config) {
		if now != nil {
			c.Now = now
		}
	})
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *Config) {
		c.Logger = l
	})
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return optionFunc(func(c *Config) {
		c.Metrics = m
	})
}
