// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// =============================================================================
// LOAD TESTS
// =============================================================================

func TestLoadFrom_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server != "http://localhost:4096" {
		t.Errorf("Server = %q", cfg.Server)
	}
	if cfg.UI.Theme != "auto" || !cfg.UI.Markdown {
		t.Errorf("UI defaults wrong: %+v", cfg.UI)
	}
}

func TestLoadFrom_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
server = "http://remote:9000"
connect_timeout_secs = 30

[ui]
theme = "dark"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server != "http://remote:9000" {
		t.Errorf("Server = %q", cfg.Server)
	}
	if cfg.ConnectTimeout() != 30*time.Second {
		t.Errorf("ConnectTimeout = %v", cfg.ConnectTimeout())
	}
	if cfg.UI.Theme != "dark" {
		t.Errorf("Theme = %q", cfg.UI.Theme)
	}
}

func TestLoadFrom_EnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`server = "http://from-file:1"`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CODELINK_SERVER_URL", "http://from-env:2")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server != "http://from-env:2" {
		t.Errorf("Server = %q, env override lost", cfg.Server)
	}
}

func TestLoadFrom_RejectsBadTheme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[ui]\ntheme = \"hotdog\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFrom(path)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadFrom_RejectsBadServerURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`server = "not-a-url"`), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFrom(path); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

// =============================================================================
// SAVE TESTS
// =============================================================================

func TestSaveTo_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := DefaultConfig()
	cfg.Server = "http://saved:4096"
	cfg.UI.Theme = "light"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if loaded.Server != "http://saved:4096" || loaded.UI.Theme != "light" {
		t.Errorf("round trip lost data: %+v", loaded)
	}
}

// =============================================================================
// WATCHER TESTS
// =============================================================================

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`server = "http://one:1"`), 0o600); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()
	if err := w.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(path, []byte(`server = "http://two:2"`), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Server != "http://two:2" {
			t.Errorf("Server = %q", cfg.Server)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload within deadline")
	}
}

func TestWatcher_KeepsOldConfigOnParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`server = "http://one:1"`), 0o600); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config) { reloaded <- cfg })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()
	if err := w.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	// Broken TOML must not reach the callback.
	if err := os.WriteFile(path, []byte(`server = [broken`), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		t.Fatalf("broken config delivered: %+v", cfg)
	case <-time.After(1 * time.Second):
		// Expected: reload skipped.
	}
}

func TestWatcher_CloseAfterFailedWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "config.toml")

	w, err := NewWatcher(path, func(*Config) {})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Watch(); err == nil {
		w.Close()
		t.Fatal("Watch succeeded on a missing directory")
	}

	// The underlying watcher must still be releasable.
	if err := w.Close(); err != nil {
		t.Fatalf("Close after failed Watch: %v", err)
	}
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`server = "http://one:1"`), 0o600); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) { reloaded <- cfg })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()
	if err := w.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloaded:
		t.Fatal("sibling file triggered a reload")
	case <-time.After(600 * time.Millisecond):
	}
}
