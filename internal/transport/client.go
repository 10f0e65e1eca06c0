// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/codelink-tui/internal/protocol"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout bounds each request/response call. The event stream
	// is exempt; its lifetime is controlled by context.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize caps response bodies to keep a misbehaving server
	// from exhausting memory.
	MaxResponseSize = 10 * 1024 * 1024

	// requestsPerSecond and requestBurst bound how fast the client hits
	// the server with request/response calls.
	requestsPerSecond = 20
	requestBurst      = 40

	userAgent = "codelink/0.1.0"
)

var (
	// sharedHTTPClient serves request/response calls with pooling.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		Timeout: DefaultTimeout,
	}

	// sharedStreamingClient serves the event stream. No timeout: the
	// stream is expected to stay open indefinitely.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotConfigured indicates no base URL has been set.
	ErrNotConfigured = errors.New("agent server not configured")

	// ErrInvalidServerURL indicates the server URL is missing or does not
	// use an http/https scheme.
	ErrInvalidServerURL = errors.New("invalid server URL")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates the server rejected the call for rate.
	ErrRateLimited = errors.New("rate limited")
)

// ServerError is a non-2xx response from the agent server.
type ServerError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server error (HTTP %d)", e.Status)
}

// Is maps common statuses onto sentinel errors.
func (e *ServerError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}

// apiErrorBody is the error envelope some endpoints return.
type apiErrorBody struct {
	Data struct {
		Message string `json:"message"`
	} `json:"data"`
	Message string `json:"message"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to one agent server. The base URL is single-owner state:
// Configure replaces it wholesale and Reset clears it, there is no partial
// mutation.
type Client struct {
	mu      sync.RWMutex
	baseURL string

	limiter *rate.Limiter
}

// NewClient creates an unconfigured client. Calls fail with
// ErrNotConfigured until Configure is invoked.
func NewClient() *Client {
	return &Client{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
	}
}

// ValidateServerURL checks that raw is an absolute http or https URL.
func ValidateServerURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidServerURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q (want http or https)", ErrInvalidServerURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidServerURL)
	}
	return nil
}

// Configure points the client at a server. The URL must already be
// validated by the caller.
func (c *Client) Configure(baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = strings.TrimSuffix(baseURL, "/")
}

// Reset clears the server configuration.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = ""
}

// Configured reports whether a base URL is set.
func (c *Client) Configured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL != ""
}

// BaseURL returns the configured server URL, or "" if unconfigured.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

func (c *Client) endpoint(path string) (string, error) {
	c.mu.RLock()
	base := c.baseURL
	c.mu.RUnlock()
	if base == "" {
		return "", ErrNotConfigured
	}
	return base + path, nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// do performs one rate-limited JSON request. body may be nil; out may be
// nil for calls whose response is discarded.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	endpoint, err := c.endpoint(path)
	if err != nil {
		return err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	log.Printf("transport: %s %s -> %d (%v)", method, path, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	raw, err := readResponse(resp)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, raw)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// readResponse reads a response body under the size cap.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// decodeError converts a non-2xx response into a ServerError, pulling the
// message out of the error envelope when one is present.
func decodeError(status int, body []byte) error {
	var envelope apiErrorBody
	msg := ""
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Data.Message != "" {
			msg = envelope.Data.Message
		} else {
			msg = envelope.Message
		}
	}
	if msg == "" && len(body) > 0 && len(body) < 512 {
		msg = strings.TrimSpace(string(body))
	}
	return &ServerError{Status: status, Message: msg}
}

// =============================================================================
// APP / CATALOG ENDPOINTS
// =============================================================================

// AppInfo fetches the server identity blob. Used as the liveness probe
// during connect.
func (c *Client) AppInfo(ctx context.Context) (protocol.AppInfo, error) {
	var info protocol.AppInfo
	err := c.do(ctx, http.MethodGet, "/app", nil, &info)
	return info, err
}

// Providers fetches the provider/model catalog and server defaults.
func (c *Client) Providers(ctx context.Context) (protocol.ProviderList, error) {
	var list protocol.ProviderList
	err := c.do(ctx, http.MethodGet, "/config/providers", nil, &list)
	return list, err
}

// Agents fetches the agent profiles the server can run.
func (c *Client) Agents(ctx context.Context) ([]protocol.Agent, error) {
	var agents []protocol.Agent
	err := c.do(ctx, http.MethodGet, "/agent", nil, &agents)
	return agents, err
}

// =============================================================================
// SESSION ENDPOINTS
// =============================================================================

// ListSessions fetches all sessions.
func (c *Client) ListSessions(ctx context.Context) ([]protocol.Session, error) {
	var sessions []protocol.Session
	err := c.do(ctx, http.MethodGet, "/session", nil, &sessions)
	return sessions, err
}

// CreateSession creates a session. Title may be empty; the server will
// title it from the first turn.
func (c *Client) CreateSession(ctx context.Context, title string) (protocol.Session, error) {
	var session protocol.Session
	body := map[string]string{}
	if title != "" {
		body["title"] = title
	}
	err := c.do(ctx, http.MethodPost, "/session", body, &session)
	return session, err
}

// DeleteSession deletes a session and all its messages.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/session/"+url.PathEscape(id), nil, nil)
}

// ShareSession publishes a session and returns its updated record, which
// carries the share URL.
func (c *Client) ShareSession(ctx context.Context, id string) (protocol.Session, error) {
	var session protocol.Session
	err := c.do(ctx, http.MethodPost, "/session/"+url.PathEscape(id)+"/share", nil, &session)
	return session, err
}

// UnshareSession revokes a session's share link.
func (c *Client) UnshareSession(ctx context.Context, id string) (protocol.Session, error) {
	var session protocol.Session
	err := c.do(ctx, http.MethodDelete, "/session/"+url.PathEscape(id)+"/share", nil, &session)
	return session, err
}

// =============================================================================
// MESSAGE ENDPOINTS
// =============================================================================

// ListMessages fetches all messages of a session with their known parts.
func (c *Client) ListMessages(ctx context.Context, sessionID string) ([]protocol.MessageWithParts, error) {
	var messages []protocol.MessageWithParts
	err := c.do(ctx, http.MethodGet, "/session/"+url.PathEscape(sessionID)+"/message", nil, &messages)
	return messages, err
}

// SendChat submits one user turn. The response content arrives over the
// event stream, not on this call; the server replies only once the turn
// has been accepted and processed.
func (c *Client) SendChat(ctx context.Context, sessionID string, input protocol.ChatInput) error {
	return c.do(ctx, http.MethodPost, "/session/"+url.PathEscape(sessionID)+"/message", input, nil)
}

// Abort cancels the server's in-flight work on a session.
func (c *Client) Abort(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, "/session/"+url.PathEscape(sessionID)+"/abort", nil, nil)
}
