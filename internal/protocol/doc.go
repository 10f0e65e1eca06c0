// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol defines the wire types exchanged with an agent server.
//
// The server speaks a small HTTP API plus one server-sent event stream.
// Sessions, messages, and message parts are the three entity kinds; parts
// arrive incrementally over the stream and mutate independently of their
// parent message. Events are a tagged union keyed by a "type" string with
// a "properties" payload whose shape depends on the tag.
//
// Types in this package mirror the server's JSON exactly and carry no
// behavior beyond decoding helpers. Client-side state lives in
// internal/state.
package protocol
