// Package config loads the pipeline server settings from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config defines runtime settings for the pipeline server.
type Config struct {
	Addr        string `yaml:"addr"`
	LogLevel    string `yaml:"log_level"`
	SeedExample bool   `yaml:"seed_example"`
	MaxSessions int    `yaml:"max_sessions"`
}

// Default returns the settings used when no file or override is given.
func Default() *Config {
	return &Config{
		Addr:        ":3000",
		LogLevel:    "info",
		MaxSessions: 100,
	}
}

// Load reads configuration from a YAML file and environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if addr := os.Getenv("PIPELINE_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if level := os.Getenv("PIPELINE_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if seed := os.Getenv("PIPELINE_SEED_EXAMPLE"); seed != "" {
		v, err := strconv.ParseBool(seed)
		if err != nil {
			return nil, fmt.Errorf("PIPELINE_SEED_EXAMPLE: %w", err)
		}
		cfg.SeedExample = v
	}
	if max := os.Getenv("PIPELINE_MAX_SESSIONS"); max != "" {
		v, err := strconv.Atoi(max)
		if err != nil {
			return nil, fmt.Errorf("PIPELINE_MAX_SESSIONS: %w", err)
		}
		cfg.MaxSessions = v
	}

	if cfg.MaxSessions <= 0 {
		return nil, fmt.Errorf("max_sessions must be positive, got %d", cfg.MaxSessions)
	}
	return cfg, nil
}
