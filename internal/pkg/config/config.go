package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"` // json or text

	HTTPAddr  string `env:"HTTP_ADDR" envDefault:":8080"`
	AdminAddr string `env:"ADMIN_ADDR" envDefault:":9091"`

	// An empty PostgresURL keeps leases in memory.
	PostgresURL string `env:"POSTGRES_URL"`
	// JournalDir persists the in-memory store; empty means nothing survives
	// a restart.
	JournalDir          string `env:"JOURNAL_DIR"`
	JournalSegmentBytes int64  `env:"JOURNAL_SEGMENT_BYTES" envDefault:"10485760"` // 10MB
	JournalMaxBytes     int64  `env:"JOURNAL_MAX_BYTES" envDefault:"1073741824"`   // 1GB
	// An empty RedisAddr echoes ids instead of resolving display names.
	RedisAddr         string        `env:"REDIS_ADDR"` // host:port or redis:// URL
	DirectoryCacheTTL time.Duration `env:"DIRECTORY_CACHE_TTL" envDefault:"5m"`

	IndexationNoticeDays int    `env:"INDEXATION_NOTICE_DAYS" envDefault:"30"`
	Timezone             string `env:"TIMEZONE" envDefault:"Europe/Brussels"`

	APIKeys      []string `env:"API_KEYS" envSeparator:","`
	MaxBodyBytes int64    `env:"MAX_BODY_BYTES" envDefault:"1048576"` // 1MB

	DefaultPageSize int `env:"DEFAULT_PAGE_SIZE" envDefault:"20"`
	MaxPageSize     int `env:"MAX_PAGE_SIZE" envDefault:"100"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.IndexationNoticeDays < 0 {
		return fmt.Errorf("INDEXATION_NOTICE_DAYS must not be negative, got %d", c.IndexationNoticeDays)
	}
	if c.JournalDir != "" && (c.JournalSegmentBytes <= 0 || c.JournalMaxBytes < c.JournalSegmentBytes) {
		return fmt.Errorf("invalid journal sizes: segment %d, max %d", c.JournalSegmentBytes, c.JournalMaxBytes)
	}
	if c.DefaultPageSize <= 0 || c.MaxPageSize < c.DefaultPageSize {
		return fmt.Errorf("invalid page sizes: default %d, max %d", c.DefaultPageSize, c.MaxPageSize)
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}
