// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER AND STATUS BAR STYLES
	// ==========================================================================

	Header       lipgloss.Style
	HeaderTitle  lipgloss.Style
	StatusBar    lipgloss.Style
	Connected    lipgloss.Style
	Connecting   lipgloss.Style
	Disconnected lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	MessageTime    lipgloss.Style
	PendingMark    lipgloss.Style
	FailedMark     lipgloss.Style
	Reasoning      lipgloss.Style
	ToolRunning    lipgloss.Style
	ToolDone       lipgloss.Style
	ToolFailed     lipgloss.Style

	// ==========================================================================
	// SESSION LIST STYLES
	// ==========================================================================

	GroupHeading    lipgloss.Style
	SessionRow      lipgloss.Style
	SessionSelected lipgloss.Style
	SharedBadge     lipgloss.Style

	// ==========================================================================
	// INPUT AND ERROR STYLES
	// ==========================================================================

	InputPrompt lipgloss.Style
	ErrorText   lipgloss.Style
	MutedText   lipgloss.Style
}

// NewTheme builds a theme for the detected terminal profile. themeName
// is "dark", "light", or "auto"; dark and light override background
// detection so adaptive colors resolve accordingly.
func NewTheme(themeName string) *Theme {
	output := termenv.DefaultOutput()

	switch themeName {
	case "dark":
		lipgloss.SetHasDarkBackground(true)
	case "light":
		lipgloss.SetHasDarkBackground(false)
	}

	t := &Theme{
		IsDark:       lipgloss.HasDarkBackground(),
		ColorProfile: output.Profile,
	}

	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextMuted).
		Padding(0, 1)
	t.Connected = lipgloss.NewStyle().Foreground(Emerald)
	t.Connecting = lipgloss.NewStyle().Foreground(Amber)
	t.Disconnected = lipgloss.NewStyle().Foreground(Rose)
	t.ShortcutKey = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)

	t.UserLabel = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.AssistantLabel = lipgloss.NewStyle().Foreground(Purple).Bold(true)
	t.MessageTime = lipgloss.NewStyle().Foreground(TextFaint)
	t.PendingMark = lipgloss.NewStyle().Foreground(Amber)
	t.FailedMark = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.Reasoning = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)
	t.ToolRunning = lipgloss.NewStyle().Foreground(Amber)
	t.ToolDone = lipgloss.NewStyle().Foreground(Emerald)
	t.ToolFailed = lipgloss.NewStyle().Foreground(Rose)

	t.GroupHeading = lipgloss.NewStyle().
		Foreground(TextMuted).
		Bold(true).
		MarginTop(1)
	t.SessionRow = lipgloss.NewStyle().Foreground(Text)
	t.SessionSelected = lipgloss.NewStyle().
		Foreground(Text).
		Background(SurfaceBright).
		Bold(true)
	t.SharedBadge = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.InputPrompt = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.ErrorText = lipgloss.NewStyle().Foreground(Rose)
	t.MutedText = lipgloss.NewStyle().Foreground(TextMuted)

	return t
}

// SetSize updates the theme's layout dimensions.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
	t.Header = t.Header.Width(width)
	t.StatusBar = t.StatusBar.Width(width)
}
