// Package config reads the CLI's WIZARD_* environment.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap/zapcore"
)

// Storage backends for session snapshots.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

type Config struct {
	SessionDir          string        `env:"WIZARD_SESSION_DIR" envDefault:".wizard"`
	Store               string        `env:"WIZARD_STORE" envDefault:"file"`
	SQLitePath          string        `env:"WIZARD_SQLITE_PATH"`
	SchemaPath          string        `env:"WIZARD_SCHEMA_PATH"`
	Rules               string        `env:"WIZARD_RULES" envDefault:"expr"`
	LogLevel            zapcore.Level `env:"WIZARD_LOG_LEVEL" envDefault:"warn"`
	Development         bool          `env:"WIZARD_DEV"`
	ClassifyConcurrency int           `env:"WIZARD_CLASSIFY_CONCURRENCY" envDefault:"4"`
	QuotaBytes          int64         `env:"WIZARD_QUOTA_BYTES" envDefault:"5242880"`
	MinConfidence       float64       `env:"WIZARD_MIN_CONFIDENCE" envDefault:"50"`
	Actor               string        `env:"WIZARD_ACTOR" envDefault:"cli"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	switch c.Store {
	case StoreFile, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("WIZARD_STORE: unknown backend %q (want file, sqlite or memory)", c.Store)
	}
	c.Rules = strings.ToLower(strings.TrimSpace(c.Rules))
	switch c.Rules {
	case "expr", "cel", "js":
	default:
		return fmt.Errorf("WIZARD_RULES: unknown condition language %q (want expr, cel or js)", c.Rules)
	}
	if c.ClassifyConcurrency < 1 {
		return fmt.Errorf("WIZARD_CLASSIFY_CONCURRENCY must be at least 1, got %d", c.ClassifyConcurrency)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 100 {
		return fmt.Errorf("WIZARD_MIN_CONFIDENCE must be within 0..100, got %v", c.MinConfidence)
	}
	if c.QuotaBytes < 0 {
		return fmt.Errorf("WIZARD_QUOTA_BYTES must not be negative")
	}
	if c.SQLitePath == "" {
		c.SQLitePath = filepath.Join(c.SessionDir, "sessions.db")
	}
	return nil
}
