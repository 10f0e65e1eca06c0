// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jeranaias/codelink-tui/internal/protocol"
)

// =============================================================================
// URL VALIDATION TESTS
// =============================================================================

func TestValidateServerURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"http", "http://localhost:4096", false},
		{"https", "https://agent.example.com", false},
		{"with path", "http://localhost:4096/base", false},
		{"empty", "", true},
		{"no scheme", "localhost:4096", true},
		{"bad scheme", "ftp://host", true},
		{"scheme only", "http://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateServerURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateServerURL(%q) = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidServerURL) {
				t.Errorf("error not wrapping ErrInvalidServerURL: %v", err)
			}
		})
	}
}

// =============================================================================
// CLIENT CONFIGURATION TESTS
// =============================================================================

func TestClient_UnconfiguredFails(t *testing.T) {
	c := NewClient()
	_, err := c.AppInfo(context.Background())
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestClient_ConfigureStripsTrailingSlash(t *testing.T) {
	c := NewClient()
	c.Configure("http://localhost:4096/")
	if got := c.BaseURL(); got != "http://localhost:4096" {
		t.Errorf("BaseURL = %q", got)
	}
}

func TestClient_ResetClearsConfiguration(t *testing.T) {
	c := NewClient()
	c.Configure("http://localhost:4096")
	c.Reset()
	if c.Configured() {
		t.Error("still configured after Reset")
	}
}

// =============================================================================
// ENDPOINT TESTS
// =============================================================================

func TestClient_ListSessions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/session" || r.Method != http.MethodGet {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode([]protocol.Session{{ID: "s1", Title: "first"}})
	}))
	defer srv.Close()

	c := NewClient()
	c.Configure(srv.URL)

	sessions, err := c.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "s1" {
		t.Errorf("unexpected sessions: %+v", sessions)
	}
}

func TestClient_SendChat_PostsInput(t *testing.T) {
	var got protocol.ChatInput
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/session/s1/message" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient()
	c.Configure(srv.URL)

	input := protocol.TextInput("anthropic", "claude-sonnet", "build", "hello")
	if err := c.SendChat(context.Background(), "s1", input); err != nil {
		t.Fatalf("SendChat: %v", err)
	}
	if got.ModelID != "claude-sonnet" || got.ProviderID != "anthropic" {
		t.Errorf("model routing lost: %+v", got)
	}
	if len(got.Parts) != 1 || got.Parts[0].Text != "hello" {
		t.Errorf("text part lost: %+v", got.Parts)
	}
}

func TestClient_NotFoundMapsToSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"data":{"message":"no such session"}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient()
	c.Configure(srv.URL)

	err := c.DeleteSession(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	var serr *ServerError
	if !errors.As(err, &serr) {
		t.Fatalf("expected ServerError in chain, got %v", err)
	}
	if serr.Message != "no such session" {
		t.Errorf("envelope message not extracted: %q", serr.Message)
	}
}

func TestClient_RateLimitedMapsToSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient()
	c.Configure(srv.URL)

	_, err := c.ListSessions(context.Background())
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestClient_SessionIDIsPathEscaped(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient()
	c.Configure(srv.URL)

	_ = c.Abort(context.Background(), "weird/id")
	if gotPath != "/session/weird%2Fid/abort" {
		t.Errorf("path = %q, id not escaped", gotPath)
	}
}

func TestReadResponse_SizeBoundary(t *testing.T) {
	exact := &http.Response{Body: io.NopCloser(bytes.NewReader(make([]byte, MaxResponseSize)))}
	body, err := readResponse(exact)
	if err != nil {
		t.Fatalf("body at the size cap rejected: %v", err)
	}
	if int64(len(body)) != MaxResponseSize {
		t.Fatalf("read %d bytes, want %d", len(body), MaxResponseSize)
	}

	over := &http.Response{Body: io.NopCloser(bytes.NewReader(make([]byte, MaxResponseSize+1)))}
	if _, err := readResponse(over); err == nil {
		t.Fatal("oversized body accepted")
	}
}
