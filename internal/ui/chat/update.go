// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/codelink-tui/internal/state"
	"github.com/jeranaias/codelink-tui/internal/ui/render"
	"github.com/jeranaias/codelink-tui/internal/ui/styles"
	"github.com/jeranaias/codelink-tui/internal/views"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.renderer.SetWidth(msg.Width - 2)
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - chromeHeight
		m.input.Width = msg.Width - 4
		if m.screen == ScreenChat {
			m.refreshViewport()
		}
		return m, nil

	case StoreChangedMsg:
		if m.screen == ScreenChat && touchesConversation(msg.Fields) {
			m.refreshViewport()
		}
		m.clampCursor()
		return m, m.bridge.wait()

	case SessionOpenedMsg:
		m.loadingHistory = false
		if msg.Err != nil {
			m.statusMsg = "load failed: " + msg.Err.Error()
			return m, nil
		}
		m.store.SetCurrentSession(msg.SessionID)
		m.screen = ScreenChat
		m.input.Focus()
		m.refreshViewport()
		m.viewport.GotoBottom()
		return m, nil

	case ActionDoneMsg:
		if msg.Err != nil {
			m.statusMsg = msg.Name + " failed: " + msg.Err.Error()
		}
		return m, nil

	case ShareResultMsg:
		switch {
		case msg.Err != nil:
			m.statusMsg = "share failed: " + msg.Err.Error()
		case msg.URL != "":
			m.statusMsg = "shared at " + msg.URL
		default:
			m.statusMsg = "sharing disabled"
		}
		return m, nil

	case ConfigChangedMsg:
		m.theme = styles.NewTheme(msg.UI.Theme)
		m.theme.SetSize(m.width, m.height)
		m.renderer = render.New(m.theme, m.width-2, renderOptions(msg.UI))
		m.input.PromptStyle = m.theme.InputPrompt
		if m.screen == ScreenChat {
			m.refreshViewport()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// handleKey routes keys to the active screen.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.statusMsg = ""

	if key.Matches(msg, m.keyMap.Quit) {
		return m, tea.Quit
	}

	if m.screen == ScreenSessions {
		return m.handleSessionKey(msg)
	}
	return m.handleChatKey(msg)
}

// =============================================================================
// SESSION PICKER KEYS
// =============================================================================

func (m Model) handleSessionKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sessions := views.SortedSessions(m.store.Sessions())

	switch {
	case key.Matches(msg, m.keyMap.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keyMap.Down):
		if m.cursor < len(sessions)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keyMap.Select):
		if m.cursor < len(sessions) {
			m.loadingHistory = true
			return m, openSessionCmd(m.acts, sessions[m.cursor].ID)
		}
	case key.Matches(msg, m.keyMap.NewSession):
		return m, newSessionCmd(m.acts)
	case key.Matches(msg, m.keyMap.Delete):
		if m.cursor < len(sessions) {
			return m, deleteSessionCmd(m.acts, sessions[m.cursor].ID)
		}
	case key.Matches(msg, m.keyMap.Share):
		if m.cursor < len(sessions) {
			s := sessions[m.cursor]
			return m, toggleShareCmd(m.acts, s.ID, s.Shared())
		}
	case key.Matches(msg, m.keyMap.Refresh):
		return m, refreshCmd(m.acts)
	}
	return m, nil
}

// =============================================================================
// CHAT KEYS
// =============================================================================

func (m Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sessionID := m.store.CurrentSession()

	switch {
	case key.Matches(msg, m.keyMap.Back):
		m.screen = ScreenSessions
		m.input.Blur()
		m.store.SetCurrentSession("")
		return m, nil

	case key.Matches(msg, m.keyMap.Abort):
		if sessionID != "" && m.store.Flags(sessionID).IsSending {
			return m, abortCmd(m.acts, sessionID)
		}
		return m, nil

	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keyMap.Select):
		text := strings.TrimSpace(m.input.Value())
		if text == "" || sessionID == "" {
			return m, nil
		}
		if m.store.Flags(sessionID).IsSending {
			m.statusMsg = "still waiting on the previous turn"
			return m, nil
		}
		m.input.Reset()
		return m, sendMessageCmd(m.acts, sessionID, text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// HELPERS
// =============================================================================

// chromeHeight is the rows consumed by header, input, and status bar.
const chromeHeight = 4

// touchesConversation reports whether any changed field affects the
// conversation view.
func touchesConversation(fields []state.Field) bool {
	for _, f := range fields {
		switch f {
		case state.FieldMessages, state.FieldFlags, state.FieldCurrent, state.FieldConnection:
			return true
		}
	}
	return false
}

func (m *Model) clampCursor() {
	n := len(m.store.Sessions())
	if n == 0 {
		m.cursor = 0
	} else if m.cursor >= n {
		m.cursor = n - 1
	}
}

func (m *Model) refreshViewport() {
	m.viewport.Width = m.width
	m.viewport.Height = m.height - chromeHeight
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderConversation())
	if atBottom {
		m.viewport.GotoBottom()
	}
}
