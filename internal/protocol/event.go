// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// SERVER EVENTS
// =============================================================================

// Event type tags pushed over the event stream.
const (
	EventMessageUpdated     = "message.updated"
	EventMessagePartUpdated = "message.part.updated"
	EventMessageRemoved     = "message.removed"
	EventSessionUpdated     = "session.updated"
	EventSessionDeleted     = "session.deleted"
	EventSessionError       = "session.error"
	EventSessionIdle        = "session.idle"
	EventServerConnected    = "server.connected"
)

// Event types the server emits that carry nothing the client renders.
// They must be tolerated, not treated as errors.
var ignorableEvents = map[string]bool{
	"storage.write":          true,
	"file.edited":            true,
	"file.watcher.updated":   true,
	"permission.updated":     true,
	"installation.updated":   true,
	"lsp.client.diagnostics": true,
}

// Ignorable reports whether an event type is known bookkeeping noise.
func Ignorable(eventType string) bool {
	return ignorableEvents[eventType]
}

// Event is one server-pushed event: a type tag plus a payload whose shape
// depends on the tag. Payload decoding is deferred so that an unknown tag
// costs nothing and a malformed payload poisons only itself.
type Event struct {
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties"`
}

// =============================================================================
// EVENT PAYLOADS
// =============================================================================

// MessageUpdated carries new header fields for a message.
type MessageUpdated struct {
	Info MessageInfo `json:"info"`
}

// MessagePartUpdated carries one created-or-mutated part.
type MessagePartUpdated struct {
	Part Part `json:"part"`
}

// MessageRemoved identifies a message deleted server-side.
type MessageRemoved struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
}

// SessionUpdated carries new session metadata.
type SessionUpdated struct {
	Info Session `json:"info"`
}

// SessionDeleted identifies a session deleted server-side.
type SessionDeleted struct {
	Info Session `json:"info"`
}

// SessionErrored carries a session-scoped error raised during a turn.
type SessionErrored struct {
	SessionID string       `json:"sessionID,omitempty"`
	Error     *ServerError `json:"error,omitempty"`
}

// SessionIdle signals the server finished working on a session, whether by
// normal completion or after an abort.
type SessionIdle struct {
	SessionID string `json:"sessionID"`
}

// Decode unmarshals the event payload into dst, which must be a pointer to
// the payload struct matching the event's type tag.
func (e *Event) Decode(dst any) error {
	if len(e.Properties) == 0 {
		return fmt.Errorf("event %q has no properties", e.Type)
	}
	if err := json.Unmarshal(e.Properties, dst); err != nil {
		return fmt.Errorf("decode %s event: %w", e.Type, err)
	}
	return nil
}
