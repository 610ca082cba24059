package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if FUPAN_CONFIG is set
//  3. env (prefix FUPAN_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("FUPAN_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: FUPAN_ADDR, FUPAN_GRADING_DELAY_SECONDS, ...
	// Map env keys like FUPAN_DATABASE_PATH -> database_path (flat keys).
	envProvider := env.Provider("FUPAN_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "fupan_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.GradingDelaySeconds <= 0 {
		return fmt.Errorf("%w: grading_delay_seconds must be positive", ErrInvalidConfig)
	}
	if c.GradingPollSeconds <= 0 {
		return fmt.Errorf("%w: grading_poll_seconds must be positive", ErrInvalidConfig)
	}
	if c.GradingMaxAttempts <= 0 {
		return fmt.Errorf("%w: grading_max_attempts must be positive", ErrInvalidConfig)
	}
	if c.MaxLeaderboardLimit <= 0 {
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	}
	return nil
}
