// Package config loads process configuration from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/liamcoop/healthrisk/riskmodel"
)

// Config is shared by the server, the CLI and the migration tool.
type Config struct {
	Port string `validate:"required,numeric"`

	// DatabaseURL selects the Postgres rule store. Empty keeps rules in memory.
	DatabaseURL string `validate:"omitempty,url"`

	// RedisAddr enables the shared active-rules cache.
	RedisAddr     string `validate:"omitempty,hostname_port"`
	RedisPassword string
	RedisDB       int `validate:"gte=0,lte=15"`

	RulesCacheTTL time.Duration `validate:"gte=0s"`

	ModelSeed    uint64
	ModelTrees   int `validate:"gte=0"`
	ModelSamples int `validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads .env (if present) and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from environment variables alone.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.RulesCacheTTL, err = getDuration("RULES_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ModelSeed, err = getUint("MODEL_SEED", riskmodel.DefaultSeed); err != nil {
		return nil, err
	}
	if cfg.ModelTrees, err = getInt("MODEL_TREES", riskmodel.DefaultTrees); err != nil {
		return nil, err
	}
	if cfg.ModelSamples, err = getInt("MODEL_SAMPLES", riskmodel.DefaultSamples); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ModelConfig returns the classifier settings.
func (c *Config) ModelConfig() riskmodel.Config {
	return riskmodel.Config{
		Trees:   c.ModelTrees,
		Samples: c.ModelSamples,
		Seed:    c.ModelSeed,
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getUint(key string, fallback uint64) (uint64, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
