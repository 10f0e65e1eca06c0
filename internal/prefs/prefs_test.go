// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prefs

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/jeranaias/codelink-tui/internal/protocol"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// =============================================================================
// RAW GET / SET
// =============================================================================

func TestGetSet_RoundTrip(t *testing.T) {
	s := openStore(t)

	if err := s.Set("answer", 42); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var got int
	if err := s.Get("answer", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
}

func TestGet_MissingKey(t *testing.T) {
	s := openStore(t)

	var out string
	if err := s.Get("never-written", &out); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSet_OverwritesExisting(t *testing.T) {
	s := openStore(t)

	if err := s.Set("k", "first"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("k", "second"); err != nil {
		t.Fatal(err)
	}

	var got string
	if err := s.Get("k", &got); err != nil {
		t.Fatal(err)
	}
	if got != "second" {
		t.Errorf("got %q, want %q", got, "second")
	}
}

func TestDelete_RemovesKeyAndToleratesMissing(t *testing.T) {
	s := openStore(t)

	if err := s.Set("k", "v"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	var out string
	if err := s.Get("k", &out); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting again is a no-op.
	if err := s.Delete("k"); err != nil {
		t.Fatalf("Delete of missing key: %v", err)
	}
}

func TestOpen_ReopenSeesPersistedData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SetServerURL("http://persisted:4096"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if got := s2.ServerURL(); got != "http://persisted:4096" {
		t.Errorf("ServerURL = %q", got)
	}
}

// =============================================================================
// TYPED ACCESSORS
// =============================================================================

func TestServerURL_UnsetReturnsEmpty(t *testing.T) {
	s := openStore(t)
	if got := s.ServerURL(); got != "" {
		t.Errorf("ServerURL = %q, want empty", got)
	}
}

func TestTheme_RoundTrip(t *testing.T) {
	s := openStore(t)

	if got := s.Theme(); got != "" {
		t.Errorf("unset Theme = %q, want empty", got)
	}
	if err := s.SetTheme("light"); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}
	if got := s.Theme(); got != "light" {
		t.Errorf("Theme = %q", got)
	}
}

func TestSelection_RoundTrip(t *testing.T) {
	s := openStore(t)

	if sel := s.Selection(); sel != (Selection{}) {
		t.Errorf("unset Selection = %+v, want zero", sel)
	}

	if err := s.SetSelection("anthropic", "claude-sonnet", "build"); err != nil {
		t.Fatalf("SetSelection: %v", err)
	}
	sel := s.Selection()
	if sel.ProviderID != "anthropic" || sel.ModelID != "claude-sonnet" || sel.Agent != "build" {
		t.Errorf("Selection = %+v", sel)
	}
}

func TestCachedSessions_RoundTrip(t *testing.T) {
	s := openStore(t)

	if got := s.CachedSessions(); got != nil {
		t.Errorf("unset CachedSessions = %v, want nil", got)
	}

	in := []protocol.Session{
		{ID: "s1", Title: "first"},
		{ID: "s2", Title: "second"},
	}
	if err := s.SetCachedSessions(in); err != nil {
		t.Fatalf("SetCachedSessions: %v", err)
	}

	got := s.CachedSessions()
	if len(got) != 2 || got[0].ID != "s1" || got[1].Title != "second" {
		t.Errorf("CachedSessions = %+v", got)
	}
}
