// Package config loads the optional TOML configuration consumed by
// tablectl. The engine itself (package table) takes every tuning value as
// a Go argument and never reads a config file directly; this package only
// exists to give the CLI a place to keep storage-root and flush-tuning
// defaults across invocations.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the CLI's on-disk configuration format.
//
//	storage_root = "/var/lib/ristretto/tables"
//
//	[flush]
//	rows = 512
//	interval = "100ms"
type Config struct {
	StorageRoot string      `toml:"storage_root"`
	Flush       FlushConfig `toml:"flush"`
}

// FlushConfig overrides the engine's default dual-trigger flush policy.
type FlushConfig struct {
	Rows     int    `toml:"rows"`
	Interval string `toml:"interval"`
}

// Default returns the configuration tablectl falls back to when no file is
// given, matching the engine's built-in defaults (512 rows / 100ms).
func Default() *Config {
	return &Config{
		StorageRoot: "./data",
		Flush: FlushConfig{
			Rows:     512,
			Interval: "100ms",
		},
	}
}

// Load reads and decodes the TOML file at path. Fields left unset in the
// file keep Default's values.
func Load(path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %q: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: %q: unrecognized keys: %v", path, undecoded)
	}
	if cfg.StorageRoot == "" {
		return nil, fmt.Errorf("config: %q: storage_root must not be empty", path)
	}
	if cfg.Flush.Rows <= 0 {
		return nil, fmt.Errorf("config: %q: flush.rows must be positive", path)
	}
	if _, err := cfg.FlushInterval(); err != nil {
		return nil, fmt.Errorf("config: %q: flush.interval: %w", path, err)
	}
	return cfg, nil
}

// FlushInterval parses the configured flush interval string.
func (c *Config) FlushInterval() (time.Duration, error) {
	if c.Flush.Interval == "" {
		return 100 * time.Millisecond, nil
	}
	return time.ParseDuration(c.Flush.Interval)
}
