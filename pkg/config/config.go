// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the server
type Config struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	Debug          bool     `env:"DEBUG" envDefault:"false"`
	FrontendOrigin string   `env:"FRONTEND_ORIGIN"`
	APIKeys        []string `env:"API_KEYS" envSeparator:","`

	SessionRetention time.Duration `env:"SESSION_RETENTION" envDefault:"1h"`
	AbandonAfter     time.Duration `env:"ABANDON_AFTER" envDefault:"0s"`

	AIMinDelay time.Duration `env:"AI_MIN_DELAY" envDefault:"500ms"`
	AIMaxDelay time.Duration `env:"AI_MAX_DELAY" envDefault:"1500ms"`

	EnginePath     string        `env:"ENGINE_PATH"`
	EnginePoolSize int           `env:"ENGINE_POOL_SIZE" envDefault:"2"`
	EngineMoveTime time.Duration `env:"ENGINE_MOVE_TIME" envDefault:"1s"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.SessionRetention <= 0 {
		return fmt.Errorf("SESSION_RETENTION must be positive, got %s", c.SessionRetention)
	}
	if c.AbandonAfter < 0 {
		return fmt.Errorf("ABANDON_AFTER must not be negative, got %s", c.AbandonAfter)
	}
	if c.AIMinDelay < 0 || c.AIMaxDelay < c.AIMinDelay {
		return fmt.Errorf("AI delay range [%s, %s] is invalid", c.AIMinDelay, c.AIMaxDelay)
	}
	if c.EnginePath != "" && c.EnginePoolSize < 1 {
		return fmt.Errorf("ENGINE_POOL_SIZE must be at least 1, got %d", c.EnginePoolSize)
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}
