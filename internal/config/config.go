// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for codelink.
//
// Configuration lives at ~/.codelink/config.toml with built-in defaults
// and environment variable overrides. The file is optional; a missing
// file yields the defaults. A watcher supports live reload while the
// client is running.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/codelink-tui/internal/transport"
	"github.com/jeranaias/codelink-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete codelink configuration.
type Config struct {
	// Server is the agent server base URL, e.g. "http://localhost:4096".
	Server string `toml:"server"`

	// ConnectTimeoutSecs bounds the liveness probe during connect.
	ConnectTimeoutSecs int `toml:"connect_timeout_secs"`

	UI UIConfig `toml:"ui"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	// Theme is the color theme name: "dark", "light", or "auto".
	Theme string `toml:"theme"`

	// Markdown enables rendered markdown for assistant text.
	Markdown bool `toml:"markdown"`

	// ShowReasoning displays the model's reasoning parts when present.
	ShowReasoning bool `toml:"show_reasoning"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server:             "http://localhost:4096",
		ConnectTimeoutSecs: 10,
		UI: UIConfig{
			Theme:         "auto",
			Markdown:      true,
			ShowReasoning: false,
		},
	}
}

// ConnectTimeout returns the liveness probe timeout as a duration.
func (c *Config) ConnectTimeout() time.Duration {
	if c.ConnectTimeoutSecs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ConnectTimeoutSecs) * time.Second
}

// =============================================================================
// LOADING
// =============================================================================

// ErrInvalidConfig wraps validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// Dir returns the codelink configuration directory (~/.codelink).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".codelink"), nil
}

// Path returns the config file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file, applies environment overrides, and
// validates. A missing file is not an error; defaults apply.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads a specific config file path.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets environment variables win over the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CODELINK_SERVER_URL"); v != "" {
		cfg.Server = v
	}
	if v := os.Getenv("CODELINK_THEME"); v != "" {
		cfg.UI.Theme = v
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if err := transport.ValidateServerURL(c.Server); err != nil {
		return fmt.Errorf("%w: server: %v", ErrInvalidConfig, err)
	}
	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		return fmt.Errorf("%w: unknown theme %q", ErrInvalidConfig, c.UI.Theme)
	}
	return nil
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the config atomically to the default path.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to a specific path atomically.
func (c *Config) SaveTo(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0o600)
}
