// Package config loads application configuration from environment variables
// and optional .env files, validates it, and exposes typed per-component
// sections.
package config

import (
	"fmt"
)

// Load loads configuration from environment variables and .env files.
// It should be called once at process startup.
func Load() (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}

	cfg, err := parse()
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}
