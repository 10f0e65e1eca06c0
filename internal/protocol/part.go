// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

// =============================================================================
// PART TYPES
// =============================================================================

// Part type tags as they appear on the wire.
const (
	PartTypeText      = "text"
	PartTypeReasoning = "reasoning"
	PartTypeTool      = "tool"
	PartTypeFile      = "file"

	// Structural bookkeeping parts. They carry no renderable content and
	// the sync engine ignores them.
	PartTypeStepStart  = "step-start"
	PartTypeStepFinish = "step-finish"
	PartTypeSnapshot   = "snapshot"
	PartTypePatch      = "patch"
)

// Part is one fragment of a message: a text chunk, a reasoning trace, a
// tool invocation record, or a file reference. Which optional fields are
// populated depends on Type.
type Part struct {
	ID        string `json:"id"`
	MessageID string `json:"messageID"`
	SessionID string `json:"sessionID"`
	Type      string `json:"type"`

	// Text and reasoning parts.
	Text string `json:"text,omitempty"`

	// Tool parts.
	Tool   string     `json:"tool,omitempty"`
	CallID string     `json:"callID,omitempty"`
	State  *ToolState `json:"state,omitempty"`

	// File parts.
	MIME     string `json:"mime,omitempty"`
	Filename string `json:"filename,omitempty"`
	URL      string `json:"url,omitempty"`

	Time *TimeRange `json:"time,omitempty"`
}

// Renderable reports whether this part type carries displayable content.
// Step markers, snapshots, and unknown future types are skipped.
func (p *Part) Renderable() bool {
	switch p.Type {
	case PartTypeText, PartTypeReasoning, PartTypeTool, PartTypeFile:
		return true
	default:
		return false
	}
}

// TimeRange tracks when work on a part started and, once finished, ended.
type TimeRange struct {
	Start int64  `json:"start"`
	End   *int64 `json:"end,omitempty"`
}

// =============================================================================
// TOOL STATE
// =============================================================================

// Tool execution statuses. The lifecycle is pending -> running ->
// completed|error, and never moves backward.
const (
	ToolPending   = "pending"
	ToolRunning   = "running"
	ToolCompleted = "completed"
	ToolError     = "error"
)

// ToolState describes the execution of one tool call.
type ToolState struct {
	Status   string         `json:"status"`
	Input    map[string]any `json:"input,omitempty"`
	Output   string         `json:"output,omitempty"`
	Error    string         `json:"error,omitempty"`
	Title    string         `json:"title,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Time     *TimeRange     `json:"time,omitempty"`
}

// toolStatusRank orders statuses along the tool lifecycle. Unknown
// statuses rank below pending so they never win a monotonicity check.
var toolStatusRank = map[string]int{
	ToolPending:   1,
	ToolRunning:   2,
	ToolCompleted: 3,
	ToolError:     3,
}

// StatusRank returns the lifecycle rank of a tool status.
func StatusRank(status string) int {
	return toolStatusRank[status]
}

// Terminal reports whether the tool call has finished, successfully or not.
func (t *ToolState) Terminal() bool {
	if t == nil {
		return false
	}
	return t.Status == ToolCompleted || t.Status == ToolError
}

// Known tool kinds the client renders with dedicated formatting. Anything
// else is shown as an opaque invocation, never guessed at.
const (
	ToolKindBash     = "bash"
	ToolKindEdit     = "edit"
	ToolKindWrite    = "write"
	ToolKindRead     = "read"
	ToolKindGrep     = "grep"
	ToolKindGlob     = "glob"
	ToolKindList     = "list"
	ToolKindWebFetch = "webfetch"
	ToolKindTask     = "task"
	ToolKindTodo     = "todowrite"
)

// KnownToolKind reports whether the client has dedicated rendering for the
// given tool name.
func KnownToolKind(name string) bool {
	switch name {
	case ToolKindBash, ToolKindEdit, ToolKindWrite, ToolKindRead,
		ToolKindGrep, ToolKindGlob, ToolKindList, ToolKindWebFetch,
		ToolKindTask, ToolKindTodo:
		return true
	}
	return false
}
