// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli is the line-oriented interface used when stdout is not a
// terminal capable of running the full-screen UI, or when the user asks
// for it with --plain.
//
// Slash commands manage sessions and selection; anything else is sent to
// the agent as a chat message. The send call returns when the turn
// completes, so the reply is printed right after.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/codelink-tui/internal/actions"
	"github.com/jeranaias/codelink-tui/internal/config"
	"github.com/jeranaias/codelink-tui/internal/protocol"
	"github.com/jeranaias/codelink-tui/internal/state"
	"github.com/jeranaias/codelink-tui/internal/ui/render"
	"github.com/jeranaias/codelink-tui/internal/ui/styles"
	"github.com/jeranaias/codelink-tui/internal/util"
	"github.com/jeranaias/codelink-tui/internal/views"
)

// =============================================================================
// REPL
// =============================================================================

var replCommands = []string{
	"/sessions", "/open", "/new", "/delete", "/share", "/unshare",
	"/models", "/model", "/agents", "/agent", "/abort", "/status",
	"/help", "/quit",
}

// REPL is the interactive line-mode client.
type REPL struct {
	store       *state.Store
	acts        *actions.Actions
	renderer    *render.Renderer
	line        *liner.State
	historyFile string
}

// New creates a REPL bound to the shared store and actions, styled per
// the UI configuration.
func New(store *state.Store, acts *actions.Actions, ui config.UIConfig) *REPL {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) []string {
		var out []string
		for _, cmd := range replCommands {
			if strings.HasPrefix(cmd, prefix) {
				out = append(out, cmd)
			}
		}
		return out
	})

	dir, err := config.Dir()
	if err != nil {
		dir = os.TempDir()
	}
	historyFile := filepath.Join(dir, "repl_history")
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	return &REPL{
		store: store,
		acts:  acts,
		renderer: render.New(styles.NewTheme(ui.Theme), 100, render.Options{
			Markdown:      ui.Markdown,
			ShowReasoning: ui.ShowReasoning,
		}),
		line:        line,
		historyFile: historyFile,
	}
}

// Close saves input history and restores the terminal.
func (r *REPL) Close() {
	if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
		r.line.WriteHistory(f)
		f.Close()
	}
	r.line.Close()
}

// Run drives the prompt loop until /quit, Ctrl-D, or a canceled context.
func (r *REPL) Run(ctx context.Context) error {
	fmt.Println("codelink - type /help for commands")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		input, err := r.line.Prompt(r.prompt())
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			// io.EOF on Ctrl-D
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if quit := r.dispatch(ctx, input); quit {
				return nil
			}
			continue
		}

		r.send(ctx, input)
	}
}

// prompt shows the open session's title, or just the brand when none.
func (r *REPL) prompt() string {
	id := r.store.CurrentSession()
	if id == "" {
		return "codelink> "
	}
	if sess, ok := r.store.Session(id); ok && sess.Title != "" {
		return util.TruncateRunes(sess.Title, 24) + "> "
	}
	return "session> "
}

// =============================================================================
// COMMANDS
// =============================================================================

// dispatch handles a slash command. Returns true when the loop should end.
func (r *REPL) dispatch(ctx context.Context, input string) bool {
	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		r.printHelp()
	case "/status":
		r.printStatus()
	case "/sessions":
		r.printSessions(ctx)
	case "/open":
		r.openSession(ctx, arg)
	case "/new":
		r.newSession(ctx, arg)
	case "/delete":
		r.withSession(arg, func(id string) {
			report(r.acts.DeleteSession(ctx, id))
		})
	case "/share":
		r.withSession(arg, func(id string) {
			url, err := r.acts.ShareSession(ctx, id)
			if err != nil {
				report(err)
				return
			}
			fmt.Println("shared at", url)
		})
	case "/unshare":
		r.withSession(arg, func(id string) {
			report(r.acts.UnshareSession(ctx, id))
		})
	case "/abort":
		r.withSession(arg, func(id string) {
			report(r.acts.AbortSession(ctx, id))
		})
	case "/models":
		r.printModels()
	case "/model":
		r.selectModel(arg)
	case "/agents":
		r.printAgents()
	case "/agent":
		report(r.acts.SelectAgent(arg))
	default:
		fmt.Println("unknown command; /help lists them")
	}
	return false
}

func (r *REPL) printHelp() {
	fmt.Println(`  /sessions            list sessions
  /open <n|id>         open a session by list number or id
  /new [title]         start a new session
  /delete [n|id]       delete a session (default: current)
  /share, /unshare     toggle the share link
  /models              list available models
  /model <prov/model>  select a model
  /agents              list agents
  /agent <name>        select an agent
  /abort               stop the current turn
  /status              connection and selection
  /quit                exit`)
}

func (r *REPL) printStatus() {
	conn := r.store.Connection()
	fmt.Printf("connection: %s", conn.Status)
	if conn.ServerURL != "" {
		fmt.Printf(" (%s)", conn.ServerURL)
	}
	fmt.Println()

	sel := r.store.Selection()
	fmt.Printf("model: %s/%s  agent: %s\n", sel.ProviderID, sel.ModelID, sel.Agent)
}

func (r *REPL) printSessions(ctx context.Context) {
	if err := r.acts.LoadSessions(ctx, false); err != nil {
		report(err)
	}
	sessions := views.SortedSessions(r.store.Sessions())
	if len(sessions) == 0 {
		fmt.Println("no sessions")
		return
	}
	for i, s := range sessions {
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}
		badge := ""
		if s.Shared() {
			badge = "[shared]"
		}
		age := time.Since(time.UnixMilli(s.Time.Updated)).Round(time.Minute)
		fmt.Printf("%3d. %s %-8s %s ago\n",
			i+1, util.PadRight(util.TruncateWidth(title, 40), 40), badge, age)
	}
}

// resolveSession turns a list number or id prefix into a session id.
func (r *REPL) resolveSession(arg string) (string, bool) {
	sessions := views.SortedSessions(r.store.Sessions())
	if n, err := parseIndex(arg); err == nil {
		if n < 1 || n > len(sessions) {
			fmt.Println("no such session number")
			return "", false
		}
		return sessions[n-1].ID, true
	}
	for _, s := range sessions {
		if s.ID == arg || strings.HasPrefix(s.ID, arg) {
			return s.ID, true
		}
	}
	fmt.Println("no session matches", arg)
	return "", false
}

// withSession runs fn against the argument session, defaulting to the
// current one when arg is empty.
func (r *REPL) withSession(arg string, fn func(id string)) {
	if arg == "" {
		id := r.store.CurrentSession()
		if id == "" {
			fmt.Println("no session open")
			return
		}
		fn(id)
		return
	}
	if id, ok := r.resolveSession(arg); ok {
		fn(id)
	}
}

func (r *REPL) openSession(ctx context.Context, arg string) {
	if arg == "" {
		fmt.Println("usage: /open <n|id>")
		return
	}
	id, ok := r.resolveSession(arg)
	if !ok {
		return
	}
	if err := r.acts.LoadMessages(ctx, id, false); err != nil {
		report(err)
		return
	}
	r.store.SetCurrentSession(id)
	r.printHistory(id)
}

func (r *REPL) newSession(ctx context.Context, title string) {
	sess, err := r.acts.CreateSession(ctx, title)
	if err != nil {
		report(err)
		return
	}
	fmt.Println("session", sess.ID)
}

// printHistory replays the session's messages.
func (r *REPL) printHistory(sessionID string) {
	msgs := views.SortedMessages(r.store.Messages(sessionID))
	for _, msg := range msgs {
		r.printMessage(msg)
	}
}

func (r *REPL) printMessage(msg state.Message) {
	assistant := msg.Info.Role == protocol.RoleAssistant
	label := "you"
	if assistant {
		label = "agent"
	}
	fmt.Printf("--- %s ---\n", label)
	for _, part := range msg.Parts {
		if out := r.renderer.Part(part, assistant); out != "" {
			fmt.Println(out)
		}
	}
}

// =============================================================================
// CATALOGS
// =============================================================================

func (r *REPL) printModels() {
	list := r.store.Providers()
	if len(list.Providers) == 0 {
		fmt.Println("no providers loaded")
		return
	}
	providers := append([]protocol.Provider(nil), list.Providers...)
	sort.Slice(providers, func(i, j int) bool { return providers[i].ID < providers[j].ID })

	sel := r.store.Selection()
	for _, prov := range providers {
		ids := make([]string, 0, len(prov.Models))
		for id := range prov.Models {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			mark := " "
			if prov.ID == sel.ProviderID && id == sel.ModelID {
				mark = "*"
			}
			fmt.Printf("%s %s/%s\n", mark, prov.ID, id)
		}
	}
}

func (r *REPL) selectModel(arg string) {
	providerID, modelID, ok := strings.Cut(arg, "/")
	if !ok {
		fmt.Println("usage: /model <provider/model>")
		return
	}
	report(r.acts.SelectModel(providerID, modelID))
}

func (r *REPL) printAgents() {
	agents := r.store.Agents()
	if len(agents) == 0 {
		fmt.Println("no agents loaded")
		return
	}
	sel := r.store.Selection()
	for _, a := range agents {
		mark := " "
		if a.Name == sel.Agent {
			mark = "*"
		}
		fmt.Printf("%s %s\n", mark, a.Name)
	}
}

// =============================================================================
// CHAT
// =============================================================================

// send delivers a chat message and prints whatever the turn produced.
func (r *REPL) send(ctx context.Context, text string) {
	sessionID := r.store.CurrentSession()
	if sessionID == "" {
		sess, err := r.acts.CreateSession(ctx, "")
		if err != nil {
			report(err)
			return
		}
		sessionID = sess.ID
	}

	before := len(r.store.Messages(sessionID))
	if err := r.acts.SendMessage(ctx, sessionID, text); err != nil {
		report(err)
		return
	}

	// The send returns once the turn completes; everything past the
	// user's own message is new output.
	msgs := views.SortedMessages(r.store.Messages(sessionID))
	for i, msg := range msgs {
		if i < before || msg.Info.Role != protocol.RoleAssistant {
			continue
		}
		r.printMessage(msg)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func parseIndex(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

func report(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
}
