// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

// =============================================================================
// SESSION TYPES
// =============================================================================

// Session is the server-side record of one conversation.
// The ID is server-assigned and immutable.
type Session struct {
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Version string     `json:"version,omitempty"`
	Share   *ShareInfo `json:"share,omitempty"`
	Time    TimeStamps `json:"time"`
}

// ShareInfo is present when a session has been shared publicly.
type ShareInfo struct {
	URL string `json:"url"`
}

// TimeStamps holds creation/update times as Unix milliseconds, the
// server's native representation.
type TimeStamps struct {
	Created int64 `json:"created"`
	Updated int64 `json:"updated"`
}

// Shared reports whether the session has an active share link.
func (s *Session) Shared() bool {
	return s.Share != nil && s.Share.URL != ""
}

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MessageInfo is the header of a message, excluding its parts.
// Parts stream in separately via message.part.updated events.
type MessageInfo struct {
	ID        string       `json:"id"`
	SessionID string       `json:"sessionID"`
	Role      string       `json:"role"`
	Time      MessageTime  `json:"time"`
	Error     *ServerError `json:"error,omitempty"`

	// Assistant-only metadata.
	ModelID    string `json:"modelID,omitempty"`
	ProviderID string `json:"providerID,omitempty"`
	Agent      string `json:"mode,omitempty"`
}

// MessageTime tracks a message's lifecycle. Completed is zero while the
// message is still streaming.
type MessageTime struct {
	Created   int64 `json:"created"`
	Completed int64 `json:"completed,omitempty"`
}

// Streaming reports whether the message has not yet completed.
func (m *MessageInfo) Streaming() bool {
	return m.Time.Completed == 0
}

// ServerError is an error payload attached to a message or session by the
// server.
type ServerError struct {
	Name string `json:"name,omitempty"`
	Data struct {
		Message string `json:"message,omitempty"`
	} `json:"data"`
}

// String returns the most descriptive text available.
func (e *ServerError) String() string {
	if e == nil {
		return ""
	}
	if e.Data.Message != "" {
		return e.Data.Message
	}
	return e.Name
}

// MessageWithParts is the shape returned by the message-list endpoint:
// one header plus the parts known so far.
type MessageWithParts struct {
	Info  MessageInfo `json:"info"`
	Parts []Part      `json:"parts"`
}
