// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"

	"github.com/jeranaias/codelink-tui/internal/protocol"
	"github.com/jeranaias/codelink-tui/internal/state"
	"github.com/jeranaias/codelink-tui/internal/util"
	"github.com/jeranaias/codelink-tui/internal/views"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the active screen.
func (m Model) View() string {
	if m.width == 0 {
		return "loading..."
	}

	var body string
	if m.screen == ScreenSessions {
		body = m.viewSessions()
	} else {
		body = m.viewChat()
	}

	return strings.Join([]string{
		m.viewHeader(),
		body,
		m.viewStatusBar(),
	}, "\n")
}

// =============================================================================
// HEADER AND STATUS BAR
// =============================================================================

func (m Model) viewHeader() string {
	conn := m.store.Connection()

	title := m.theme.HeaderTitle.Render("codelink")
	var status string
	switch conn.Status {
	case state.Connected:
		status = m.theme.Connected.Render("* " + conn.ServerURL)
	case state.Connecting:
		status = m.theme.Connecting.Render(m.spinner.View() + " connecting")
	case state.ConnError:
		status = m.theme.Disconnected.Render("! reconnecting")
	default:
		status = m.theme.Disconnected.Render("o offline")
	}

	sel := views.ResolveSelection(m.store)
	selection := m.store.Selection()
	model := m.theme.MutedText.Render(
		views.DisplayName(sel.Model.Name, selection.ModelID) +
			" / " +
			views.DisplayName(sel.Agent.Name, selection.Agent))

	left := title + "  " + status
	gap := m.width - util.StringWidth(left) - util.StringWidth(model) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Render(left + strings.Repeat(" ", gap) + model)
}

func (m Model) viewStatusBar() string {
	if m.statusMsg != "" {
		return m.theme.StatusBar.Render(m.theme.ErrorText.Render(m.statusMsg))
	}

	var hints []string
	add := func(k, desc string) {
		hints = append(hints, m.theme.ShortcutKey.Render(k)+" "+m.theme.ShortcutDesc.Render(desc))
	}
	if m.screen == ScreenSessions {
		add("Enter", "open")
		add("C-t", "new")
		add("C-s", "share")
		add("C-x", "delete")
		add("C-r", "refresh")
	} else {
		add("Enter", "send")
		add("Esc", "back")
		add("C-g", "abort")
	}
	add("C-c", "quit")
	return m.theme.StatusBar.Render(strings.Join(hints, "  "))
}

// =============================================================================
// SESSION PICKER
// =============================================================================

func (m Model) viewSessions() string {
	sessions := views.SortedSessions(m.store.Sessions())
	if len(sessions) == 0 {
		empty := m.theme.MutedText.Render("No sessions yet. Press C-t to start one.")
		return padBody(empty, m.height-chromeHeight)
	}

	groups := views.GroupSessions(sessions, time.Now())

	var b strings.Builder
	idx := 0
	for _, g := range groups {
		b.WriteString(m.theme.GroupHeading.Render(g.Title))
		b.WriteString("\n")
		for _, s := range g.Sessions {
			row := m.sessionRow(s, idx == m.cursor)
			b.WriteString(row)
			b.WriteString("\n")
			idx++
		}
	}
	return padBody(strings.TrimRight(b.String(), "\n"), m.height-chromeHeight)
}

func (m Model) sessionRow(s protocol.Session, selected bool) string {
	title := s.Title
	if title == "" {
		title = "(untitled)"
	}
	title = util.TruncateWidth(title, m.width-12)

	badge := ""
	if s.Shared() {
		badge = " " + m.theme.SharedBadge.Render("[shared]")
	}
	sending := ""
	if m.store.Flags(s.ID).IsSending {
		sending = " " + m.spinner.View()
	}

	line := "  " + title + badge + sending
	if selected {
		return m.theme.SessionSelected.Render("> " + title + badge + sending)
	}
	return m.theme.SessionRow.Render(line)
}

// =============================================================================
// CONVERSATION
// =============================================================================

func (m Model) viewChat() string {
	sessionID := m.store.CurrentSession()
	flags := m.store.Flags(sessionID)

	inputLine := m.input.View()
	if flags.IsSending {
		inputLine = m.spinner.View() + " " + m.theme.MutedText.Render("working... (C-g to abort)")
	}
	if m.loadingHistory {
		inputLine = m.spinner.View() + " " + m.theme.MutedText.Render("loading history...")
	}

	return m.viewport.View() + "\n" + inputLine
}

// renderConversation builds the full scrollback for the open session.
func (m Model) renderConversation() string {
	msgs := views.CurrentMessages(m.store)
	if len(msgs) == 0 {
		return m.theme.MutedText.Render("No messages yet.")
	}

	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderMessage(msg))
	}

	sessionID := m.store.CurrentSession()
	if flags := m.store.Flags(sessionID); flags.Err != "" {
		b.WriteString("\n\n")
		b.WriteString(m.theme.ErrorText.Render("error: " + flags.Err))
	}
	return b.String()
}

func (m Model) renderMessage(msg state.Message) string {
	assistant := msg.Info.Role == protocol.RoleAssistant

	label := m.theme.UserLabel.Render("you")
	if assistant {
		label = m.theme.AssistantLabel.Render("agent")
	}

	var marks []string
	if msg.Pending {
		marks = append(marks, m.theme.PendingMark.Render("(sending)"))
	}
	if msg.SendFailed {
		marks = append(marks, m.theme.FailedMark.Render("(failed)"))
	}
	if created := msg.Info.Time.Created; created > 0 {
		ts := time.UnixMilli(created).Format("15:04")
		marks = append(marks, m.theme.MessageTime.Render(ts))
	}

	header := label
	if len(marks) > 0 {
		header += " " + strings.Join(marks, " ")
	}

	var b strings.Builder
	b.WriteString(header)
	for _, part := range msg.Parts {
		rendered := m.renderer.Part(part, assistant)
		if rendered == "" {
			continue
		}
		b.WriteString("\n")
		b.WriteString(rendered)
	}

	if assistant && msg.Info.Error != nil {
		b.WriteString("\n")
		b.WriteString(m.theme.ErrorText.Render(msg.Info.Error.String()))
	}
	if assistant && msg.Info.Streaming() && !msg.Pending {
		b.WriteString(" " + m.spinner.View())
	}
	return b.String()
}

// padBody pads content to the body height so the status bar stays pinned.
func padBody(content string, height int) string {
	lines := strings.Count(content, "\n") + 1
	if lines >= height {
		return content
	}
	return content + strings.Repeat("\n", height-lines)
}

