// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport implements the HTTP client for the agent server.
//
// It covers two surfaces: plain request/response calls (session CRUD,
// catalog fetches, chat submission, abort) and one long-lived server-sent
// event stream carrying the server's state changes. Request/response calls
// go through a shared pooled client with a request rate limiter; the event
// stream uses a separate client with no timeout, lifetime controlled by
// context.
//
// The package maps HTTP failures onto a small error taxonomy (sentinel
// errors plus ServerError) and never interprets payloads beyond decoding;
// applying events to client state is internal/engine's job.
package transport
