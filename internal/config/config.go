package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	// Transport endpoints.
	SignalURL  string `mapstructure:"signal_url" validate:"required,url"`
	HistoryURL string `mapstructure:"history_url" validate:"required,url"`

	// Chat synchronization.
	PollInterval  time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	HistoryLimit  int           `mapstructure:"history_limit" validate:"gt=0"`
	DegradedAfter int           `mapstructure:"degraded_after" validate:"gt=0"`

	// Bridge reconnect backoff.
	ReconnectBase     time.Duration `mapstructure:"reconnect_base" validate:"gt=0"`
	ReconnectMax      time.Duration `mapstructure:"reconnect_max" validate:"gt=0"`
	ReconnectAttempts int           `mapstructure:"reconnect_attempts" validate:"gt=0"`

	// Reactions.
	ReactionDuration time.Duration `mapstructure:"reaction_duration" validate:"gt=0"`

	// Read-cursor persistence. When RedisURL is set the shared store is
	// used, otherwise the local bbolt file at CursorPath.
	CursorPath string `mapstructure:"cursor_path"`
	RedisURL   string `mapstructure:"redis_url"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("signal_url", "ws://localhost:8080/api/ws/session")
	v.SetDefault("history_url", "http://localhost:8080")
	v.SetDefault("poll_interval", "1s")
	v.SetDefault("history_limit", 100)
	v.SetDefault("degraded_after", 10)
	v.SetDefault("reconnect_base", "500ms")
	v.SetDefault("reconnect_max", "15s")
	v.SetDefault("reconnect_attempts", 8)
	v.SetDefault("reaction_duration", "5s")
	v.SetDefault("cursor_path", "huddle-cursors.db")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present. Handy for
// embedding the engine without viper lookups.
func Default() *Config {
	return &Config{
		SignalURL:         "ws://localhost:8080/api/ws/session",
		HistoryURL:        "http://localhost:8080",
		PollInterval:      time.Second,
		HistoryLimit:      100,
		DegradedAfter:     10,
		ReconnectBase:     500 * time.Millisecond,
		ReconnectMax:      15 * time.Second,
		ReconnectAttempts: 8,
		ReactionDuration:  5 * time.Second,
		CursorPath:        "huddle-cursors.db",
	}
}
