// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/codelink-tui/internal/actions"
	"github.com/jeranaias/codelink-tui/internal/config"
	"github.com/jeranaias/codelink-tui/internal/state"
	"github.com/jeranaias/codelink-tui/internal/ui/render"
	"github.com/jeranaias/codelink-tui/internal/ui/styles"
)

// =============================================================================
// SCREENS
// =============================================================================

// Screen identifies which view the model is showing.
type Screen int

const (
	ScreenSessions Screen = iota // Session picker
	ScreenChat                   // Conversation view
)

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the whole interface.
type Model struct {
	screen Screen

	// Shared services
	store  *state.Store
	acts   *actions.Actions
	bridge *storeBridge

	// Styling and rendering
	theme    *styles.Theme
	renderer *render.Renderer

	// Dimensions
	width  int
	height int

	// Session picker state. cursor indexes the flattened session list.
	cursor int

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	keyMap KeyMap

	// Transient status line, cleared on the next keypress.
	statusMsg string

	// True while a history load for the open session is in flight.
	loadingHistory bool
}

// renderOptions maps presentation settings onto the renderer.
func renderOptions(ui config.UIConfig) render.Options {
	return render.Options{
		Markdown:      ui.Markdown,
		ShowReasoning: ui.ShowReasoning,
	}
}

// New builds the interface model around the shared store and actions,
// styled per the UI configuration.
func New(store *state.Store, acts *actions.Actions, ui config.UIConfig) Model {
	theme := styles.NewTheme(ui.Theme)

	ti := textinput.New()
	ti.Placeholder = "Ask anything..."
	ti.Prompt = "> "
	ti.PromptStyle = theme.InputPrompt
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(styles.Amber)

	return Model{
		screen:   ScreenSessions,
		store:    store,
		acts:     acts,
		bridge:   newStoreBridge(store),
		theme:    theme,
		renderer: render.New(theme, 80, renderOptions(ui)),
		viewport: viewport.New(80, 20),
		input:    ti,
		spinner:  sp,
		keyMap:   DefaultKeyMap(),
	}
}

// Init starts the store listener and the spinner tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.bridge.wait(), m.spinner.Tick)
}

// Close releases the store subscription.
func (m *Model) Close() {
	m.bridge.close()
}
