// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/jeranaias/codelink-tui/internal/protocol"
	"github.com/jeranaias/codelink-tui/internal/state"
	"github.com/jeranaias/codelink-tui/internal/transport"
)

// =============================================================================
// STREAM SOURCE
// =============================================================================

// EventStream is one live event feed. transport.EventStream satisfies it;
// tests substitute fakes.
type EventStream interface {
	// Next blocks for the next event. transport.ErrMalformedEvent marks a
	// single bad event on a healthy stream; any other error is terminal.
	Next() (*protocol.Event, error)

	// Close tears the stream down.
	Close() error
}

// StreamSource opens event streams.
type StreamSource interface {
	OpenEventStream(ctx context.Context) (*transport.EventStream, error)
}

// streamOpener is the internal seam the engine actually runs against, so
// tests can hand it arbitrary EventStream implementations.
type streamOpener func(ctx context.Context) (EventStream, error)

// =============================================================================
// ENGINE
// =============================================================================

// Phase is the engine's lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseStreaming
	PhaseReconnecting
)

// String returns the lowercase phase name.
func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseStreaming:
		return "streaming"
	case PhaseReconnecting:
		return "reconnecting"
	default:
		return "idle"
	}
}

// Engine drives one event stream and applies its events to the store.
type Engine struct {
	store *state.Store
	open  streamOpener

	mu     sync.Mutex
	phase  Phase
	gen    uint64
	cancel context.CancelFunc

	backoff *Backoff

	// sleep is swapped out by tests to observe delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an engine reading from source and writing to store.
func New(store *state.Store, source StreamSource) *Engine {
	return newEngine(store, func(ctx context.Context) (EventStream, error) {
		return source.OpenEventStream(ctx)
	})
}

func newEngine(store *state.Store, open streamOpener) *Engine {
	return &Engine{
		store:   store,
		open:    open,
		backoff: NewBackoff(),
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Phase returns the engine's current lifecycle phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Start begins streaming. A start request while the engine is already
// connecting or streaming is a no-op; only one stream may be active.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.phase != PhaseIdle {
		e.mu.Unlock()
		return
	}
	e.phase = PhaseConnecting
	e.gen++
	gen := e.gen
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.mu.Unlock()

	go e.run(ctx, gen)
}

// Stop tears the stream down. Idempotent. After Stop returns, no event
// from the abandoned stream will mutate the store: the run loop re-checks
// its generation after every blocking read, before applying.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.phase == PhaseIdle {
		e.mu.Unlock()
		return
	}
	e.phase = PhaseIdle
	e.gen++
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// stale reports whether gen is no longer the live generation.
func (e *Engine) stale(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen != gen
}

func (e *Engine) setPhase(gen uint64, p Phase) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		return false
	}
	e.phase = p
	return true
}

// =============================================================================
// RUN LOOP
// =============================================================================

// run owns the stream for one generation: connect, drain, reconnect.
// It exits only when the generation is retired by Stop.
func (e *Engine) run(ctx context.Context, gen uint64) {
	for {
		if !e.setPhase(gen, PhaseConnecting) {
			return
		}

		stream, err := e.open(ctx)
		if e.stale(gen) {
			if err == nil {
				stream.Close()
			}
			return
		}
		if err != nil {
			e.streamFailed(err)
			if !e.setPhase(gen, PhaseReconnecting) {
				return
			}
			if e.sleep(ctx, e.backoff.Next()) != nil {
				return
			}
			continue
		}

		e.backoff.Reset()
		if !e.setPhase(gen, PhaseStreaming) {
			stream.Close()
			return
		}

		err = e.drain(stream, gen)
		stream.Close()
		if e.stale(gen) {
			return
		}

		e.streamFailed(err)
		if !e.setPhase(gen, PhaseReconnecting) {
			return
		}
		if e.sleep(ctx, e.backoff.Next()) != nil {
			return
		}
	}
}

// drain reads events until the stream dies. Returns the terminal error.
func (e *Engine) drain(stream EventStream, gen uint64) error {
	for {
		ev, err := stream.Next()

		// Stop may have been requested while blocked in Next. Nothing
		// from a retired generation may touch the store.
		if e.stale(gen) {
			return nil
		}

		if err != nil {
			if errors.Is(err, transport.ErrMalformedEvent) {
				log.Printf("engine: dropping malformed event: %v", err)
				continue
			}
			return err
		}

		e.Apply(ev)
	}
}

// streamFailed records a stream-health failure on the connection state.
// The engine is the only writer of Error/Connected transitions that
// originate from stream health.
func (e *Engine) streamFailed(err error) {
	msg := "event stream closed"
	if err != nil {
		msg = err.Error()
	}
	log.Printf("engine: stream failed, reconnecting: %s", msg)
	e.store.SetConnection(func(c *state.Connection) {
		c.Status = state.ConnError
		c.Err = msg
	})
}

// =============================================================================
// EVENT DISPATCH
// =============================================================================

// Apply routes one event to its store mutation. Unrecognized types are
// ignored; they are expected protocol noise, not errors.
func (e *Engine) Apply(ev *protocol.Event) {
	switch ev.Type {
	case protocol.EventMessageUpdated:
		var payload protocol.MessageUpdated
		if err := ev.Decode(&payload); err != nil {
			log.Printf("engine: %v", err)
			return
		}
		e.store.UpsertMessage(payload.Info)

	case protocol.EventMessagePartUpdated:
		var payload protocol.MessagePartUpdated
		if err := ev.Decode(&payload); err != nil {
			log.Printf("engine: %v", err)
			return
		}
		if !payload.Part.Renderable() {
			return
		}
		if err := e.store.UpsertPart(payload.Part); err != nil {
			// Orphan part: the owning message never reached us. Dropping
			// is the only move that cannot corrupt state.
			log.Printf("engine: dropping part %s for unknown message %s",
				payload.Part.ID, payload.Part.MessageID)
		}

	case protocol.EventMessageRemoved:
		var payload protocol.MessageRemoved
		if err := ev.Decode(&payload); err != nil {
			log.Printf("engine: %v", err)
			return
		}
		e.store.RemoveMessage(payload.SessionID, payload.MessageID)

	case protocol.EventSessionUpdated:
		var payload protocol.SessionUpdated
		if err := ev.Decode(&payload); err != nil {
			log.Printf("engine: %v", err)
			return
		}
		e.store.UpsertSession(payload.Info)

	case protocol.EventSessionDeleted:
		var payload protocol.SessionDeleted
		if err := ev.Decode(&payload); err != nil {
			log.Printf("engine: %v", err)
			return
		}
		e.store.RemoveSession(payload.Info.ID)

	case protocol.EventSessionError:
		var payload protocol.SessionErrored
		if err := ev.Decode(&payload); err != nil {
			log.Printf("engine: %v", err)
			return
		}
		e.store.Batch(func(tx *state.Tx) {
			tx.SetFlags(payload.SessionID, func(f *state.SessionFlags) {
				f.Err = payload.Error.String()
				f.IsSending = false
				f.IsAborting = false
			})
		})

	case protocol.EventSessionIdle:
		var payload protocol.SessionIdle
		if err := ev.Decode(&payload); err != nil {
			log.Printf("engine: %v", err)
			return
		}
		// Idle fires after normal completion and after abort alike;
		// clearing both flags is correct either way.
		e.store.Batch(func(tx *state.Tx) {
			tx.SetFlags(payload.SessionID, func(f *state.SessionFlags) {
				f.IsSending = false
				f.IsAborting = false
			})
		})

	case protocol.EventServerConnected:
		e.store.SetConnection(func(c *state.Connection) {
			c.Status = state.Connected
			c.Err = ""
			c.LastConnected = time.Now()
		})

	default:
		// storage.write, file.edited, permission.updated and friends:
		// nothing to apply.
		if !protocol.Ignorable(ev.Type) {
			log.Printf("engine: ignoring unknown event type %q", ev.Type)
		}
	}
}
