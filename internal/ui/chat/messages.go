// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/codelink-tui/internal/actions"
	"github.com/jeranaias/codelink-tui/internal/config"
	"github.com/jeranaias/codelink-tui/internal/state"
)

// =============================================================================
// MESSAGES
// =============================================================================

// StoreChangedMsg reports which store fields changed since the last render.
type StoreChangedMsg struct {
	Fields []state.Field
}

// ActionDoneMsg reports the outcome of a background action.
type ActionDoneMsg struct {
	Name string
	Err  error
}

// SessionOpenedMsg reports that a session's history finished loading.
type SessionOpenedMsg struct {
	SessionID string
	Err       error
}

// ShareResultMsg carries the share URL after a share toggle.
type ShareResultMsg struct {
	URL string
	Err error
}

// ConfigChangedMsg carries reloaded presentation settings from the
// config watcher.
type ConfigChangedMsg struct {
	UI config.UIConfig
}

// =============================================================================
// STORE BRIDGE
// =============================================================================

// storeBridge forwards store notifications into the Bubble Tea loop.
// Notifications are coalesced through a buffered channel so a burst of
// stream events costs one render, not one per event.
type storeBridge struct {
	ch    chan []state.Field
	unsub func()
}

func newStoreBridge(store *state.Store) *storeBridge {
	b := &storeBridge{ch: make(chan []state.Field, 16)}
	b.unsub = store.Subscribe(func(changed []state.Field) {
		select {
		case b.ch <- changed:
		default:
			// Channel full. A render is already queued and reads the
			// store directly, so dropping the notification loses nothing.
		}
	})
	return b
}

// wait returns a command that blocks until the next store change.
func (b *storeBridge) wait() tea.Cmd {
	return func() tea.Msg {
		fields, ok := <-b.ch
		if !ok {
			return nil
		}
		return StoreChangedMsg{Fields: fields}
	}
}

func (b *storeBridge) close() {
	b.unsub()
	close(b.ch)
}

// =============================================================================
// ACTION COMMANDS
// =============================================================================

func sendMessageCmd(acts *actions.Actions, sessionID, text string) tea.Cmd {
	return func() tea.Msg {
		err := acts.SendMessage(context.Background(), sessionID, text)
		return ActionDoneMsg{Name: "send", Err: err}
	}
}

func openSessionCmd(acts *actions.Actions, sessionID string) tea.Cmd {
	return func() tea.Msg {
		err := acts.LoadMessages(context.Background(), sessionID, false)
		return SessionOpenedMsg{SessionID: sessionID, Err: err}
	}
}

func newSessionCmd(acts *actions.Actions) tea.Cmd {
	return func() tea.Msg {
		sess, err := acts.CreateSession(context.Background(), "")
		if err != nil {
			return ActionDoneMsg{Name: "create", Err: err}
		}
		return SessionOpenedMsg{SessionID: sess.ID}
	}
}

func deleteSessionCmd(acts *actions.Actions, sessionID string) tea.Cmd {
	return func() tea.Msg {
		err := acts.DeleteSession(context.Background(), sessionID)
		return ActionDoneMsg{Name: "delete", Err: err}
	}
}

func toggleShareCmd(acts *actions.Actions, sessionID string, shared bool) tea.Cmd {
	return func() tea.Msg {
		if shared {
			err := acts.UnshareSession(context.Background(), sessionID)
			return ShareResultMsg{Err: err}
		}
		url, err := acts.ShareSession(context.Background(), sessionID)
		return ShareResultMsg{URL: url, Err: err}
	}
}

func refreshCmd(acts *actions.Actions) tea.Cmd {
	return func() tea.Msg {
		err := acts.LoadSessions(context.Background(), true)
		return ActionDoneMsg{Name: "refresh", Err: err}
	}
}

func abortCmd(acts *actions.Actions, sessionID string) tea.Cmd {
	return func() tea.Msg {
		err := acts.AbortSession(context.Background(), sessionID)
		return ActionDoneMsg{Name: "abort", Err: err}
	}
}
