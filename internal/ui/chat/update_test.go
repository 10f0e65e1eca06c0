// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"testing"

	"github.com/jeranaias/codelink-tui/internal/actions"
	"github.com/jeranaias/codelink-tui/internal/config"
	"github.com/jeranaias/codelink-tui/internal/protocol"
	"github.com/jeranaias/codelink-tui/internal/state"
)

func testModel(t *testing.T, ui config.UIConfig) Model {
	t.Helper()
	store := state.NewStore()
	m := New(store, actions.New(store, nil, nil, nil), ui)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestUpdate_ConfigChangeSwapsThemeAndRenderer(t *testing.T) {
	m := testModel(t, config.UIConfig{Theme: "dark", Markdown: true, ShowReasoning: true})
	m.width, m.height = 80, 24

	reasoning := protocol.Part{Type: protocol.PartTypeReasoning, Text: "thinking"}
	if out := m.renderer.Part(reasoning, true); out == "" {
		t.Fatal("reasoning hidden before the config change")
	}

	updated, _ := m.Update(ConfigChangedMsg{UI: config.UIConfig{
		Theme:         "light",
		Markdown:      false,
		ShowReasoning: false,
	}})
	m = updated.(Model)

	if m.theme.IsDark {
		t.Error("theme not rebuilt for the light background")
	}
	if out := m.renderer.Part(reasoning, true); out != "" {
		t.Errorf("reasoning still shown after the config change: %q", out)
	}

	raw := protocol.Part{Type: protocol.PartTypeText, Text: "# heading"}
	if out := m.renderer.Part(raw, true); out != "# heading" {
		t.Errorf("markdown still rendered after the config change: %q", out)
	}
}
