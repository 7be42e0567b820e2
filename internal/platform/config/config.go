package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Store backends selectable via STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	AppEnv        string `env:"APP_ENV" default:"development"`
	Port          string `env:"PORT" default:"8080"`
	LogLevel      string `env:"LOG_LEVEL" default:"info"`
	LogFormat     string `env:"LOG_FORMAT" default:"text"`
	StoreBackend  string `env:"STORE_BACKEND" default:"memory"`
	RedisURL      string `env:"REDIS_URL"`
	DatabaseURL   string `env:"DATABASE_URL"`
	VoteablesFile string `env:"VOTEABLES_FILE" default:"voteables.yaml"`

	VoteTimeout            time.Duration `env:"VOTE_TIMEOUT" default:"2s"`
	PropagationTimeout     time.Duration `env:"PROPAGATION_TIMEOUT" default:"2s"`
	PropagationConcurrency int           `env:"PROPAGATION_CONCURRENCY" default:"4"`

	// Per client IP, on the vote endpoint only.
	VoteRateLimit float64 `env:"VOTE_RATE_LIMIT" default:"10"`
	VoteRateBurst int     `env:"VOTE_RATE_BURST" default:"20"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required when STORE_BACKEND=redis")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of memory, redis, postgres, got %q", cfg.StoreBackend)
	}

	if cfg.VoteablesFile == "" {
		return errors.New("VOTEABLES_FILE is required")
	}

	durations := map[string]time.Duration{
		"VOTE_TIMEOUT":        cfg.VoteTimeout,
		"PROPAGATION_TIMEOUT": cfg.PropagationTimeout,
		"SHUTDOWN_TIMEOUT":    cfg.ShutdownTimeout,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if cfg.PropagationConcurrency < 1 {
		return fmt.Errorf("PROPAGATION_CONCURRENCY must be at least 1, got %d", cfg.PropagationConcurrency)
	}
	if cfg.VoteRateLimit <= 0 || cfg.VoteRateBurst < 1 {
		return errors.New("VOTE_RATE_LIMIT must be positive and VOTE_RATE_BURST at least 1")
	}

	return nil
}
