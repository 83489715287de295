package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "BUSLINE"

// Load reads configuration from a YAML file, fills defaults and applies
// environment overrides. An empty filename loads defaults plus environment.
func Load(filename string) (*Config, error) {
	cfg := Default()

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", filename, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", filename, err)
		}
	}

	loadFromEnv(cfg)
	cfg.applyDefaults()

	return cfg, nil
}

// loadFromEnv overrides fields from BUSLINE_* environment variables.
func loadFromEnv(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "_URL"); v != "" {
		cfg.URL = v
	}
	if v := os.Getenv(EnvPrefix + "_NODE_ID"); v != "" {
		cfg.NodeID = v
	}
	if v := os.Getenv(EnvPrefix + "_PREFIX"); v != "" {
		cfg.Prefix = v
	}
	if v := os.Getenv(EnvPrefix + "_PREFETCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PrefetchCount = n
		}
	}
	if v := os.Getenv(EnvPrefix + "_EVENT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.EventTTL = d
		}
	}
}
