// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prefs persists the client's local state between runs.
//
// Storage is a single SQLite table of string key to JSON blob, nothing
// more: last server URL, model/agent selection, theme, and the cached
// session list the UI paints before the first fetch completes. Values
// are read once at startup and written on change.
package prefs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/codelink-tui/internal/protocol"
)

// =============================================================================
// STORE
// =============================================================================

// Well-known preference keys.
const (
	KeyServerURL = "server_url"
	KeySelection = "selection"
	KeyTheme     = "theme"
	KeySessions  = "sessions_cache"
)

// ErrNotFound indicates the key has never been written.
var ErrNotFound = errors.New("preference not found")

const schema = `
CREATE TABLE IF NOT EXISTS prefs (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Store is the on-disk preference store.
type Store struct {
	db *sql.DB
}

// DefaultPath returns ~/.codelink/prefs.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".codelink", "prefs.db"), nil
}

// Open opens (creating if needed) the preference database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create prefs directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open prefs database: %w", err)
	}

	// SQLite allows one writer; keep the pool at a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// RAW GET / SET
// =============================================================================

// Get unmarshals the value stored under key into out.
func (s *Store) Get(key string, out any) error {
	var raw string
	err := s.db.QueryRow("SELECT value FROM prefs WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read pref %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode pref %s: %w", key, err)
	}
	return nil
}

// Set stores value under key as a JSON blob.
func (s *Store) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode pref %s: %w", key, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO prefs (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(raw), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("write pref %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Missing keys are not an error.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM prefs WHERE key = ?", key)
	return err
}

// =============================================================================
// TYPED ACCESSORS
// =============================================================================

// Selection is the persisted model/provider/agent choice.
type Selection struct {
	ProviderID string `json:"providerID"`
	ModelID    string `json:"modelID"`
	Agent      string `json:"agent"`
}

// ServerURL returns the last-used server URL, or "" when unset.
func (s *Store) ServerURL() string {
	var url string
	if err := s.Get(KeyServerURL, &url); err != nil {
		return ""
	}
	return url
}

// SetServerURL records the last-used server URL.
func (s *Store) SetServerURL(url string) error {
	return s.Set(KeyServerURL, url)
}

// Theme returns the last applied theme name, or "" when unset.
func (s *Store) Theme() string {
	var theme string
	if err := s.Get(KeyTheme, &theme); err != nil {
		return ""
	}
	return theme
}

// SetTheme records the applied theme name.
func (s *Store) SetTheme(theme string) error {
	return s.Set(KeyTheme, theme)
}

// Selection returns the persisted selection, zero-valued when unset.
func (s *Store) Selection() Selection {
	var sel Selection
	if err := s.Get(KeySelection, &sel); err != nil {
		return Selection{}
	}
	return sel
}

// SetSelection records the model/provider/agent choice.
func (s *Store) SetSelection(providerID, modelID, agent string) error {
	return s.Set(KeySelection, Selection{
		ProviderID: providerID,
		ModelID:    modelID,
		Agent:      agent,
	})
}

// CachedSessions returns the session list from the previous run, letting
// the UI paint something before the first fetch lands.
func (s *Store) CachedSessions() []protocol.Session {
	var sessions []protocol.Session
	if err := s.Get(KeySessions, &sessions); err != nil {
		return nil
	}
	return sessions
}

// SetCachedSessions stores the session list for the next startup.
func (s *Store) SetCachedSessions(sessions []protocol.Session) error {
	return s.Set(KeySessions, sessions)
}
