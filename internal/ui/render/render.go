// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns messages and parts into styled terminal text.
//
// Assistant text goes through a glamour markdown renderer, tool output
// through chroma syntax highlighting. Both degrade to plain text when
// the renderer cannot be built or the content defeats it.
package render

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/codelink-tui/internal/protocol"
	"github.com/jeranaias/codelink-tui/internal/ui/styles"
	"github.com/jeranaias/codelink-tui/internal/util"
)

// =============================================================================
// RENDERER
// =============================================================================

// maxToolOutputLines caps how many lines of tool output are shown inline.
const maxToolOutputLines = 12

// Options control what the renderer shows.
type Options struct {
	// Markdown renders assistant text through glamour. Off means raw text.
	Markdown bool

	// ShowReasoning displays reasoning parts. Off hides them entirely.
	ShowReasoning bool
}

// Renderer renders message parts for a given terminal width.
type Renderer struct {
	theme    *styles.Theme
	opts     Options
	width    int
	markdown *glamour.TermRenderer
}

// New creates a renderer for the given theme, wrap width, and options.
func New(theme *styles.Theme, width int, opts Options) *Renderer {
	r := &Renderer{theme: theme, opts: opts, width: width}
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err == nil {
		r.markdown = md
	}
	return r
}

// SetWidth rebuilds the markdown renderer for a new wrap width.
func (r *Renderer) SetWidth(width int) {
	if width == r.width {
		return
	}
	r.width = width
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err == nil {
		r.markdown = md
	}
}

// Markdown renders markdown content, falling back to the raw text.
// A renderer with markdown disabled passes the text through.
func (r *Renderer) Markdown(content string) string {
	if !r.opts.Markdown || r.markdown == nil {
		return content
	}
	out, err := r.markdown.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

// =============================================================================
// PART RENDERING
// =============================================================================

// Part renders a single message part. Parts that carry nothing visible
// return "".
func (r *Renderer) Part(part protocol.Part, assistant bool) string {
	switch part.Type {
	case protocol.PartTypeText:
		if part.Text == "" {
			return ""
		}
		if assistant {
			return r.Markdown(part.Text)
		}
		return part.Text
	case protocol.PartTypeReasoning:
		if !r.opts.ShowReasoning || part.Text == "" {
			return ""
		}
		return r.theme.Reasoning.Render(summarize(part.Text, r.width))
	case protocol.PartTypeTool:
		return r.toolPart(part)
	case protocol.PartTypeFile:
		return r.theme.MutedText.Render("[file] " + part.Filename)
	default:
		return ""
	}
}

// toolPart renders a tool invocation with its status and trimmed output.
func (r *Renderer) toolPart(part protocol.Part) string {
	name := part.Tool
	if name == "" {
		name = "tool"
	}

	var b strings.Builder
	switch {
	case part.State == nil, part.State.Status == protocol.ToolPending:
		b.WriteString(r.theme.ToolRunning.Render(fmt.Sprintf("` %s (queued)", name)))
	case part.State.Status == protocol.ToolRunning:
		b.WriteString(r.theme.ToolRunning.Render(fmt.Sprintf("` %s ...", name)))
	case part.State.Status == protocol.ToolError:
		b.WriteString(r.theme.ToolFailed.Render(fmt.Sprintf("x %s failed", name)))
		if part.State.Error != "" {
			b.WriteString("\n")
			b.WriteString(r.theme.ErrorText.Render(util.TruncateWidth(part.State.Error, r.width)))
		}
	default:
		b.WriteString(r.theme.ToolDone.Render(fmt.Sprintf("* %s", name)))
		if part.State.Output != "" {
			b.WriteString("\n")
			if protocol.KnownToolKind(name) {
				b.WriteString(r.ToolOutput(name, part.State.Output))
			} else {
				// Unknown tool: show the output plain, never guess at
				// its shape.
				b.WriteString(r.theme.MutedText.Render(trimLines(part.State.Output)))
			}
		}
	}
	return b.String()
}

// trimLines caps output at maxToolOutputLines without highlighting.
func trimLines(output string) string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if len(lines) <= maxToolOutputLines {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[:maxToolOutputLines], "\n") + "\n  ... output truncated"
}

// ToolOutput highlights tool output, trimmed to a handful of lines.
func (r *Renderer) ToolOutput(toolName, output string) string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	truncated := false
	if len(lines) > maxToolOutputLines {
		lines = lines[:maxToolOutputLines]
		truncated = true
	}
	text := highlight(strings.Join(lines, "\n"), languageForTool(toolName))
	if truncated {
		text += "\n" + r.theme.MutedText.Render("  ... output truncated")
	}
	return text
}

// languageForTool guesses a chroma lexer name from the tool kind.
func languageForTool(toolName string) string {
	switch toolName {
	case protocol.ToolKindBash:
		return "console"
	case protocol.ToolKindEdit, protocol.ToolKindWrite:
		return "diff"
	default:
		return ""
	}
}

// highlight applies chroma syntax highlighting, returning the input
// untouched on any failure.
func highlight(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		return code
	}

	style := chromaStyles.Get("catppuccin-mocha")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		return code
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var b strings.Builder
	if err := formatter.Format(&b, style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(b.String(), "\n")
}

// summarize collapses reasoning text to its last line, width-trimmed.
func summarize(text string, width int) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	last := lines[len(lines)-1]
	return util.TruncateWidth("~ "+last, width)
}
