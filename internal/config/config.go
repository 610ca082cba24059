// Package config defines service configuration structures and loading hooks.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabasePath points at the sqlite file. Empty selects the in-memory
	// store, which loses all sessions on restart.
	DatabasePath string `koanf:"database_path"`

	// GradingDelaySeconds is the horizon between prediction submission and
	// grading. The default is one day, standing in for the next market close.
	GradingDelaySeconds int `koanf:"grading_delay_seconds"`

	// GradingPollSeconds is the scheduler's poll cadence for due gradings.
	GradingPollSeconds int `koanf:"grading_poll_seconds"`

	// GradingMaxAttempts bounds grading retries before a session is marked
	// grading_failed.
	GradingMaxAttempts int `koanf:"grading_max_attempts"`

	// GradingBackoffSeconds is the base of the exponential retry backoff.
	GradingBackoffSeconds int `koanf:"grading_backoff_seconds"`

	// MarketPushSeconds is the cadence of market_update pushes on the live
	// channel.
	MarketPushSeconds int `koanf:"market_push_seconds"`

	// MaxLeaderboardLimit caps GET /api/leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// StepBaseReward is the skill points granted per completed step.
	StepBaseReward int `koanf:"step_base_reward"`

	// StepRichnessBonus is the extra reward for detailed step content.
	StepRichnessBonus int `koanf:"step_richness_bonus"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":8080",
		DatabasePath:          "",
		GradingDelaySeconds:   86_400,
		GradingPollSeconds:    5,
		GradingMaxAttempts:    5,
		GradingBackoffSeconds: 30,
		MarketPushSeconds:     30,
		MaxLeaderboardLimit:   100,
		StepBaseReward:        5,
		StepRichnessBonus:     2,
	}
}
