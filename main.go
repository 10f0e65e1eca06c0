// codelink - A terminal client for opencode-compatible agent servers.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/jeranaias/codelink-tui/internal/actions"
	"github.com/jeranaias/codelink-tui/internal/cli"
	"github.com/jeranaias/codelink-tui/internal/config"
	"github.com/jeranaias/codelink-tui/internal/engine"
	"github.com/jeranaias/codelink-tui/internal/prefs"
	"github.com/jeranaias/codelink-tui/internal/state"
	"github.com/jeranaias/codelink-tui/internal/transport"
	"github.com/jeranaias/codelink-tui/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	var (
		serverFlag  = flag.String("server", "", "agent server URL (overrides config)")
		plainFlag   = flag.Bool("plain", false, "line-mode interface instead of the full-screen UI")
		versionFlag = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *versionFlag {
		fmt.Printf("codelink %s (%s, %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if err := run(*serverFlag, *plainFlag); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(serverOverride string, plain bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	prefsPath, err := prefs.DefaultPath()
	if err != nil {
		return err
	}
	store := state.NewStore()
	pf, err := prefs.Open(prefsPath)
	if err != nil {
		// Preferences are a convenience. Run without them.
		log.Printf("prefs unavailable: %v", err)
		pf = nil
	} else {
		defer pf.Close()
		if cached := pf.CachedSessions(); len(cached) > 0 {
			store.SetSessions(cached)
		}
		if sel := pf.Selection(); sel.ModelID != "" {
			store.SetSelection(state.Selection{
				ProviderID: sel.ProviderID,
				ModelID:    sel.ModelID,
				Agent:      sel.Agent,
			})
		}
	}

	client := transport.NewClient()
	eng := engine.New(store, client)
	var acts *actions.Actions
	if pf != nil {
		acts = actions.New(store, client, eng, pf)
	} else {
		acts = actions.New(store, client, eng, nil)
	}

	serverURL := resolveServerURL(serverOverride, cfg, pf)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
	if err := acts.Connect(connectCtx, serverURL); err != nil {
		connectCancel()
		return fmt.Errorf("connect to %s: %w", serverURL, err)
	}
	connectCancel()
	defer acts.Disconnect()

	// Keep the cached session list current for the next startup.
	var unsub func()
	if pf != nil {
		unsub = store.Subscribe(func(changed []state.Field) {
			for _, f := range changed {
				if f == state.FieldSessions {
					if err := pf.SetCachedSessions(store.Sessions()); err != nil {
						log.Printf("cache sessions: %v", err)
					}
					return
				}
			}
		})
		defer unsub()
	}

	ui := cfg.UI
	ui.Theme = resolveTheme(cfg, pf)
	persistTheme(pf, ui.Theme)

	if plain || !term.IsTerminal(int(os.Stdout.Fd())) {
		repl := cli.New(store, acts, ui)
		defer repl.Close()
		if watcher, werr := newConfigWatcher(serverURL, nil); werr == nil {
			defer watcher.Close()
		}
		return repl.Run(ctx)
	}

	model := chat.New(store, acts, ui)
	defer model.Close()
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	// Edits to config.toml while running restyle the interface in place.
	watcher, werr := newConfigWatcher(serverURL, func(newUI config.UIConfig) {
		persistTheme(pf, newUI.Theme)
		p.Send(chat.ConfigChangedMsg{UI: newUI})
	})
	if werr == nil {
		defer watcher.Close()
	}

	_, err = p.Run()
	return err
}

// persistTheme records the applied theme for the next startup.
func persistTheme(pf *prefs.Store, theme string) {
	if pf == nil {
		return
	}
	if err := pf.SetTheme(theme); err != nil {
		log.Printf("persist theme: %v", err)
	}
}

// resolveTheme picks the theme name: an explicit environment override
// wins, then the last applied theme, then the config file.
func resolveTheme(cfg *config.Config, pf *prefs.Store) string {
	if os.Getenv("CODELINK_THEME") != "" {
		return cfg.UI.Theme
	}
	if pf != nil {
		if theme := pf.Theme(); theme != "" {
			return theme
		}
	}
	return cfg.UI.Theme
}

// resolveServerURL picks the server, preferring the flag, then the last
// successfully used URL, then the config file.
func resolveServerURL(override string, cfg *config.Config, pf *prefs.Store) string {
	if override != "" {
		return override
	}
	if pf != nil {
		if url := pf.ServerURL(); url != "" {
			return url
		}
	}
	return cfg.Server
}

// newConfigWatcher starts the live-reload watcher. UI settings are
// handed to applyUI when present; a changed server URL needs a
// reconnect, so it only gets a log line.
func newConfigWatcher(activeServer string, applyUI func(config.UIConfig)) (*config.Watcher, error) {
	path, err := config.Path()
	if err != nil {
		return nil, err
	}
	w, err := config.NewWatcher(path, func(cfg *config.Config) {
		if cfg.Server != activeServer {
			log.Printf("config now points at %s, restart to reconnect", cfg.Server)
		}
		if applyUI != nil {
			applyUI(cfg.UI)
		}
	})
	if err != nil {
		return nil, err
	}
	if err := w.Watch(); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}
