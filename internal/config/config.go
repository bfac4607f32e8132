// Package config loads CLI defaults from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/solforge/internal/ir"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds defaults that command-line flags override.
type Config struct {
	DB       string `env:"SOLFORGE_DB"        envDefault:"solforge.db"`
	Format   string `env:"SOLFORGE_FORMAT"    envDefault:"text"`
	LogLevel string `env:"SOLFORGE_LOG_LEVEL" envDefault:"info"`

	// Caller is the base58 identity used when a command's --caller flag is
	// omitted. Empty means the flag is required.
	Caller string `env:"SOLFORGE_CALLER"`

	// Manifest is the default CUE manifest read by init.
	Manifest string `env:"SOLFORGE_MANIFEST"`
}

// Load parses the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated fields and the caller identity.
func (c Config) Validate() error {
	switch c.Format {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("config: format %q: must be %q or %q", c.Format, FormatText, FormatJSON)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Caller != "" {
		if _, err := ir.ParseIdentity(c.Caller); err != nil {
			return fmt.Errorf("config: caller: %w", err)
		}
	}
	return nil
}

// Level returns the parsed log level. Call Validate first.
func (c Config) Level() slog.Level {
	lvl, _ := ParseLevel(c.LogLevel)
	return lvl
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
