package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into the provided struct.
// The struct should use `env` tags to define mappings, and may use
// time.Duration fields directly ("15m", "240h").
//
// Example:
//
//	type Config struct {
//	    Port          int           `env:"PORT" envDefault:"8000"`
//	    AccessExpiry  time.Duration `env:"ACCESS_TOKEN_EXPIRY" envDefault:"1h"`
//	}
func Load(cfg any) error {
	return LoadWithPrefix(cfg, "")
}

// LoadWithPrefix is like Load but only looks at variables starting with
// prefix, e.g. "VIDTUBE_" maps `env:"PORT"` to VIDTUBE_PORT.
func LoadWithPrefix(cfg any, prefix string) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: prefix}); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
