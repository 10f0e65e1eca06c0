// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package actions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/codelink-tui/internal/protocol"
	"github.com/jeranaias/codelink-tui/internal/state"
	"github.com/jeranaias/codelink-tui/internal/transport"
)

// =============================================================================
// CACHE TTLS
// =============================================================================

// How long each cached collection stays fresh before a load goes back to
// the network.
const (
	SessionsTTL  = 5 * time.Minute
	ProvidersTTL = 10 * time.Minute
	AgentsTTL    = 10 * time.Minute
	MessagesTTL  = 2 * time.Minute
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrConnectInProgress rejects a connect while one is already running.
	ErrConnectInProgress = errors.New("connect already in progress")

	// ErrNotConnected rejects operations that need a live connection.
	ErrNotConnected = errors.New("not connected to an agent server")

	// ErrNoModelSelected rejects a send before a model and provider are
	// chosen.
	ErrNoModelSelected = errors.New("no model selected")

	// ErrNoAgentSelected rejects a send before an agent is chosen.
	ErrNoAgentSelected = errors.New("no agent selected")

	// ErrUnknownModel rejects selecting a model absent from the catalog.
	ErrUnknownModel = errors.New("unknown model")

	// ErrUnknownAgent rejects selecting an agent absent from the catalog.
	ErrUnknownAgent = errors.New("unknown agent")
)

// =============================================================================
// COLLABORATOR CONTRACTS
// =============================================================================

// Client is the transport surface the action layer depends on.
// *transport.Client satisfies it; tests substitute fakes.
type Client interface {
	Configure(baseURL string)
	Reset()

	AppInfo(ctx context.Context) (protocol.AppInfo, error)
	Providers(ctx context.Context) (protocol.ProviderList, error)
	Agents(ctx context.Context) ([]protocol.Agent, error)

	ListSessions(ctx context.Context) ([]protocol.Session, error)
	CreateSession(ctx context.Context, title string) (protocol.Session, error)
	DeleteSession(ctx context.Context, id string) error
	ShareSession(ctx context.Context, id string) (protocol.Session, error)
	UnshareSession(ctx context.Context, id string) (protocol.Session, error)

	ListMessages(ctx context.Context, sessionID string) ([]protocol.MessageWithParts, error)
	SendChat(ctx context.Context, sessionID string, input protocol.ChatInput) error
	Abort(ctx context.Context, sessionID string) error
}

// SyncEngine is the stream lifecycle the action layer starts and stops.
type SyncEngine interface {
	Start()
	Stop()
}

// Prefs persists the handful of values that survive restarts. May be nil.
type Prefs interface {
	SetServerURL(url string) error
	SetSelection(providerID, modelID, agent string) error
}

// =============================================================================
// ACTIONS
// =============================================================================

// Actions wires the store, transport client, and sync engine together.
type Actions struct {
	store  *state.Store
	client Client
	engine SyncEngine
	prefs  Prefs

	// now is swapped out by TTL tests.
	now func() time.Time

	// connectMu serializes the connect guard check across goroutines.
	connectMu sync.Mutex

	// abortMu serializes the abort guard check across goroutines.
	abortMu sync.Mutex
}

// New creates the action layer. prefs may be nil when persistence is
// unavailable; failures to persist are logged by callers, never fatal.
func New(store *state.Store, client Client, engine SyncEngine, prefs Prefs) *Actions {
	return &Actions{
		store:  store,
		client: client,
		engine: engine,
		prefs:  prefs,
		now:    time.Now,
	}
}

// =============================================================================
// CONNECT / DISCONNECT
// =============================================================================

// Connect validates the URL, configures the transport client, probes the
// server, loads the three catalogs concurrently, and starts the sync
// engine. Catalog failures are scoped to their resource and do not fail
// the connect; URL validation and the liveness probe are fatal.
func (a *Actions) Connect(ctx context.Context, serverURL string) error {
	a.connectMu.Lock()
	if a.store.Connection().Status == state.Connecting {
		a.connectMu.Unlock()
		return ErrConnectInProgress
	}

	if err := transport.ValidateServerURL(serverURL); err != nil {
		a.store.SetConnection(func(c *state.Connection) {
			c.Status = state.ConnError
			c.Err = err.Error()
		})
		a.connectMu.Unlock()
		return err
	}

	a.store.SetConnection(func(c *state.Connection) {
		c.Status = state.Connecting
		c.ServerURL = serverURL
		c.Err = ""
	})
	a.connectMu.Unlock()

	a.client.Configure(serverURL)

	if _, err := a.client.AppInfo(ctx); err != nil {
		a.store.SetConnection(func(c *state.Connection) {
			c.Status = state.ConnError
			c.Err = err.Error()
		})
		return fmt.Errorf("liveness check failed: %w", err)
	}

	// Three independent catalog loads. One failing must not abort the
	// other two or the connect; each surfaces its error on its resource.
	var wg sync.WaitGroup
	for _, load := range []func(context.Context, bool) error{
		a.LoadAgents,
		a.LoadProviders,
		a.LoadSessions,
	} {
		wg.Add(1)
		go func(fn func(context.Context, bool) error) {
			defer wg.Done()
			_ = fn(ctx, true)
		}(load)
	}
	wg.Wait()

	a.store.SetConnection(func(c *state.Connection) {
		c.Status = state.Connected
		c.Err = ""
		c.LastConnected = a.now()
	})

	if a.prefs != nil {
		_ = a.prefs.SetServerURL(serverURL)
	}

	a.engine.Start()
	return nil
}

// Disconnect tears everything down. Idempotent.
func (a *Actions) Disconnect() {
	a.engine.Stop()
	a.client.Reset()
	a.store.Batch(func(tx *state.Tx) {
		tx.SetConnection(func(c *state.Connection) {
			*c = state.Connection{}
		})
		tx.ClearCatalogs()
	})
}

// =============================================================================
// RESOURCE LOADS (TTL CACHED)
// =============================================================================

// fresh reports whether a fetch stamped at t is still inside ttl.
func (a *Actions) fresh(t time.Time, ttl time.Duration) bool {
	return !t.IsZero() && a.now().Sub(t) < ttl
}

// LoadSessions fetches the session list unless the cached copy is fresh.
func (a *Actions) LoadSessions(ctx context.Context, forceRefresh bool) error {
	st := a.store.Resource(state.ResourceSessions)
	if !forceRefresh && len(a.store.Sessions()) > 0 && a.fresh(st.LastFetched, SessionsTTL) {
		return nil
	}

	a.store.SetResource(state.ResourceSessions, func(r *state.ResourceStatus) {
		r.Loading = true
		r.Err = ""
	})
	defer a.store.SetResource(state.ResourceSessions, func(r *state.ResourceStatus) {
		r.Loading = false
	})

	sessions, err := a.client.ListSessions(ctx)
	if err != nil {
		a.store.SetResource(state.ResourceSessions, func(r *state.ResourceStatus) {
			r.Err = err.Error()
		})
		return fmt.Errorf("load sessions: %w", err)
	}

	a.store.SetSessions(sessions)
	a.store.SetResource(state.ResourceSessions, func(r *state.ResourceStatus) {
		r.LastFetched = a.now()
	})
	return nil
}

// LoadProviders fetches the provider/model catalog unless fresh. When the
// store has no selection yet, the server's defaults seed one.
func (a *Actions) LoadProviders(ctx context.Context, forceRefresh bool) error {
	st := a.store.Resource(state.ResourceProviders)
	if !forceRefresh && len(a.store.Providers().Providers) > 0 && a.fresh(st.LastFetched, ProvidersTTL) {
		return nil
	}

	a.store.SetResource(state.ResourceProviders, func(r *state.ResourceStatus) {
		r.Loading = true
		r.Err = ""
	})
	defer a.store.SetResource(state.ResourceProviders, func(r *state.ResourceStatus) {
		r.Loading = false
	})

	list, err := a.client.Providers(ctx)
	if err != nil {
		a.store.SetResource(state.ResourceProviders, func(r *state.ResourceStatus) {
			r.Err = err.Error()
		})
		return fmt.Errorf("load providers: %w", err)
	}

	a.store.SetProviders(list)
	a.store.SetResource(state.ResourceProviders, func(r *state.ResourceStatus) {
		r.LastFetched = a.now()
	})

	if sel := a.store.Selection(); sel.ModelID == "" {
		a.seedDefaultSelection(list)
	}
	return nil
}

// seedDefaultSelection picks the server's default model when nothing is
// selected yet.
func (a *Actions) seedDefaultSelection(list protocol.ProviderList) {
	for providerID, modelID := range list.Default {
		if _, _, ok := list.FindModel(providerID, modelID); ok {
			sel := a.store.Selection()
			sel.ProviderID = providerID
			sel.ModelID = modelID
			a.store.SetSelection(sel)
			return
		}
	}
}

// LoadAgents fetches the agent catalog unless fresh.
func (a *Actions) LoadAgents(ctx context.Context, forceRefresh bool) error {
	st := a.store.Resource(state.ResourceAgents)
	if !forceRefresh && len(a.store.Agents()) > 0 && a.fresh(st.LastFetched, AgentsTTL) {
		return nil
	}

	a.store.SetResource(state.ResourceAgents, func(r *state.ResourceStatus) {
		r.Loading = true
		r.Err = ""
	})
	defer a.store.SetResource(state.ResourceAgents, func(r *state.ResourceStatus) {
		r.Loading = false
	})

	agents, err := a.client.Agents(ctx)
	if err != nil {
		a.store.SetResource(state.ResourceAgents, func(r *state.ResourceStatus) {
			r.Err = err.Error()
		})
		return fmt.Errorf("load agents: %w", err)
	}

	a.store.SetAgents(agents)
	a.store.SetResource(state.ResourceAgents, func(r *state.ResourceStatus) {
		r.LastFetched = a.now()
	})

	if sel := a.store.Selection(); sel.Agent == "" && len(agents) > 0 {
		sel.Agent = agents[0].Name
		a.store.SetSelection(sel)
	}
	return nil
}

// LoadMessages hydrates one session's messages unless its cached copy is
// fresh. Each session id has its own TTL clock.
func (a *Actions) LoadMessages(ctx context.Context, sessionID string, forceRefresh bool) error {
	fetched := a.store.MessagesFetchedAt(sessionID)
	if !forceRefresh && len(a.store.Messages(sessionID)) > 0 && a.fresh(fetched, MessagesTTL) {
		return nil
	}

	res := state.MessagesResource(sessionID)
	a.store.SetResource(res, func(r *state.ResourceStatus) {
		r.Loading = true
		r.Err = ""
	})
	defer a.store.SetResource(res, func(r *state.ResourceStatus) {
		r.Loading = false
	})

	raw, err := a.client.ListMessages(ctx, sessionID)
	if err != nil {
		a.store.SetResource(res, func(r *state.ResourceStatus) {
			r.Err = err.Error()
		})
		return fmt.Errorf("load messages for %s: %w", sessionID, err)
	}

	msgs := make([]state.Message, 0, len(raw))
	for _, m := range raw {
		msg := state.Message{Info: m.Info}
		for _, p := range m.Parts {
			if p.Renderable() {
				msg.Parts = append(msg.Parts, p)
			}
		}
		msgs = append(msgs, msg)
	}
	a.store.SetMessages(sessionID, msgs, a.now())
	a.store.SetResource(res, func(r *state.ResourceStatus) {
		r.LastFetched = a.now()
	})
	return nil
}

// =============================================================================
// SELECTION
// =============================================================================

// SelectModel commits a model choice after validating it against the
// provider catalog. An unknown provider/model pair is rejected, never
// stored.
func (a *Actions) SelectModel(providerID, modelID string) error {
	list := a.store.Providers()
	if _, _, ok := list.FindModel(providerID, modelID); !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownModel, providerID, modelID)
	}

	sel := a.store.Selection()
	sel.ProviderID = providerID
	sel.ModelID = modelID
	a.store.SetSelection(sel)
	a.persistSelection(sel)
	return nil
}

// SelectAgent commits an agent choice after validating it against the
// agent catalog.
func (a *Actions) SelectAgent(name string) error {
	found := false
	for _, agent := range a.store.Agents() {
		if agent.Name == name {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}

	sel := a.store.Selection()
	sel.Agent = name
	a.store.SetSelection(sel)
	a.persistSelection(sel)
	return nil
}

func (a *Actions) persistSelection(sel state.Selection) {
	if a.prefs != nil {
		_ = a.prefs.SetSelection(sel.ProviderID, sel.ModelID, sel.Agent)
	}
}

// =============================================================================
// SEND / ABORT
// =============================================================================

// SendMessage submits one user turn. Preconditions (connected, model and
// provider and agent selected) fail fast before any network call. The
// assistant's reply arrives over the event stream, never on this call.
//
// isSending is raised before the request and cleared on every path out;
// the session.idle event clears it too, and both paths are idempotent.
func (a *Actions) SendMessage(ctx context.Context, sessionID, text string) error {
	if a.store.Connection().Status != state.Connected {
		return ErrNotConnected
	}
	sel := a.store.Selection()
	if sel.ModelID == "" || sel.ProviderID == "" {
		return fmt.Errorf("%w: pick a model before sending", ErrNoModelSelected)
	}
	if sel.Agent == "" {
		return fmt.Errorf("%w: pick an agent before sending", ErrNoAgentSelected)
	}

	a.store.Batch(func(tx *state.Tx) {
		tx.SetFlags(sessionID, func(f *state.SessionFlags) {
			f.IsSending = true
			f.Err = ""
		})
	})
	defer a.store.SetFlags(sessionID, func(f *state.SessionFlags) {
		f.IsSending = false
	})

	// Optimistic local record under a client-generated id. The server
	// assigns its own id; the confirmed message retires this one.
	localID := "local-" + uuid.NewString()
	a.store.AddPendingMessage(state.Message{
		Info: protocol.MessageInfo{
			ID:        localID,
			SessionID: sessionID,
			Role:      protocol.RoleUser,
			Time:      protocol.MessageTime{Created: a.now().UnixMilli()},
		},
		Parts: []protocol.Part{{
			ID:        localID + "-text",
			MessageID: localID,
			SessionID: sessionID,
			Type:      protocol.PartTypeText,
			Text:      text,
		}},
	})

	input := protocol.TextInput(sel.ProviderID, sel.ModelID, sel.Agent, text)
	if err := a.client.SendChat(ctx, sessionID, input); err != nil {
		a.store.Batch(func(tx *state.Tx) {
			tx.SetFlags(sessionID, func(f *state.SessionFlags) {
				f.Err = err.Error()
			})
		})
		a.store.MarkSendFailed(sessionID, localID)
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// AbortSession cancels the server's in-flight work on a session. A second
// call while one is in flight is a no-op; exactly one abort request goes
// out. isAborting is cleared on every path, redundantly with the
// session.idle event.
func (a *Actions) AbortSession(ctx context.Context, sessionID string) error {
	a.abortMu.Lock()
	if a.store.Flags(sessionID).IsAborting {
		a.abortMu.Unlock()
		return nil
	}
	a.store.SetFlags(sessionID, func(f *state.SessionFlags) {
		f.IsAborting = true
	})
	a.abortMu.Unlock()

	defer a.store.SetFlags(sessionID, func(f *state.SessionFlags) {
		f.IsAborting = false
	})

	if err := a.client.Abort(ctx, sessionID); err != nil {
		return fmt.Errorf("abort session: %w", err)
	}

	a.store.SetFlags(sessionID, func(f *state.SessionFlags) {
		f.IsSending = false
	})
	return nil
}

// =============================================================================
// SESSION CRUD / SHARE
// =============================================================================

// CreateSession creates a session on the server and focuses it.
func (a *Actions) CreateSession(ctx context.Context, title string) (protocol.Session, error) {
	session, err := a.client.CreateSession(ctx, title)
	if err != nil {
		return protocol.Session{}, fmt.Errorf("create session: %w", err)
	}
	a.store.UpsertSession(session)
	a.store.SetCurrentSession(session.ID)
	return session, nil
}

// DeleteSession removes a session optimistically and reconciles by
// reloading the list if the server refuses.
func (a *Actions) DeleteSession(ctx context.Context, id string) error {
	a.store.RemoveSession(id)
	if err := a.client.DeleteSession(ctx, id); err != nil {
		_ = a.LoadSessions(ctx, true)
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ShareSession publishes a session and records its share URL.
func (a *Actions) ShareSession(ctx context.Context, id string) (string, error) {
	session, err := a.client.ShareSession(ctx, id)
	if err != nil {
		return "", fmt.Errorf("share session: %w", err)
	}
	a.store.UpsertSession(session)
	if session.Share != nil {
		return session.Share.URL, nil
	}
	return "", nil
}

// UnshareSession revokes a session's share link.
func (a *Actions) UnshareSession(ctx context.Context, id string) error {
	session, err := a.client.UnshareSession(ctx, id)
	if err != nil {
		return fmt.Errorf("unshare session: %w", err)
	}
	a.store.UpsertSession(session)
	return nil
}
