// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jeranaias/codelink-tui/internal/protocol"
)

// =============================================================================
// STATE TYPES
// =============================================================================

// ConnStatus is the client's view of the server connection.
type ConnStatus int

const (
	Disconnected ConnStatus = iota
	Connecting
	Connected
	ConnError
)

// String returns the lowercase status name.
func (s ConnStatus) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case ConnError:
		return "error"
	default:
		return "disconnected"
	}
}

// Connection holds connection lifecycle state. Status transitions are
// driven only by the action layer (connect/disconnect) and the sync
// engine (stream health).
type Connection struct {
	Status        ConnStatus
	ServerURL     string
	Err           string
	LastConnected time.Time
}

// Message is one message in a session: the server header plus the parts
// received so far. Pending marks an optimistic local record, keyed by a
// client-generated id, that a server-confirmed message will replace.
type Message struct {
	Info       protocol.MessageInfo
	Parts      []protocol.Part
	Pending    bool
	SendFailed bool
}

// SessionFlags is transient per-session UI state.
type SessionFlags struct {
	IsSending  bool
	IsAborting bool
	Err        string
}

// Selection is the currently chosen model, provider, and agent.
type Selection struct {
	ProviderID string
	ModelID    string
	Agent      string
}

// Resource identifies one loadable collection for cache bookkeeping.
type Resource string

const (
	ResourceSessions  Resource = "sessions"
	ResourceProviders Resource = "providers"
	ResourceAgents    Resource = "agents"
)

// MessagesResource identifies one session's message hydration. Each
// session gets its own status entry.
func MessagesResource(sessionID string) Resource {
	return Resource("messages:" + sessionID)
}

// ResourceStatus tracks load state and cache freshness of a resource.
type ResourceStatus struct {
	Loading     bool
	Err         string
	LastFetched time.Time
}

// Field identifies a region of the store for change notification.
type Field string

const (
	FieldConnection Field = "connection"
	FieldSessions   Field = "sessions"
	FieldMessages   Field = "messages"
	FieldCatalogs   Field = "catalogs"
	FieldSelection  Field = "selection"
	FieldFlags      Field = "flags"
	FieldCurrent    Field = "current"
	FieldResources  Field = "resources"
)

// ErrOrphanPart indicates a part update arrived for a message the store
// does not know. The store stays unchanged; callers log and drop.
var ErrOrphanPart = errors.New("part update for unknown message")

// =============================================================================
// STORE
// =============================================================================

// Store is the process-wide state tree. Construct one per process (or per
// test) with NewStore; there is no package-level instance.
type Store struct {
	mu sync.Mutex

	conn      Connection
	sessions  []protocol.Session
	messages  map[string][]*Message
	flags     map[string]SessionFlags
	providers protocol.ProviderList
	agents    []protocol.Agent
	selection Selection
	current   string

	resources       map[Resource]ResourceStatus
	messagesFetched map[string]time.Time

	dirty map[Field]bool

	subMu   sync.Mutex
	subs    map[int]func([]Field)
	nextSub int
}

// NewStore creates an empty store in the Disconnected state.
func NewStore() *Store {
	return &Store{
		messages:        make(map[string][]*Message),
		flags:           make(map[string]SessionFlags),
		resources:       make(map[Resource]ResourceStatus),
		messagesFetched: make(map[string]time.Time),
		dirty:           make(map[Field]bool),
		subs:            make(map[int]func([]Field)),
	}
}

// =============================================================================
// SUBSCRIPTION
// =============================================================================

// Subscribe registers fn to be called with the set of changed fields after
// every mutation. Notification is synchronous: it completes before the
// mutating call returns. The returned function unsubscribes.
func (s *Store) Subscribe(fn func(changed []Field)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(changed []Field) {
	if len(changed) == 0 {
		return
	}
	s.subMu.Lock()
	fns := make([]func([]Field), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(changed)
	}
}

func (s *Store) markLocked(f Field) {
	s.dirty[f] = true
}

func (s *Store) takeDirtyLocked() []Field {
	if len(s.dirty) == 0 {
		return nil
	}
	changed := make([]Field, 0, len(s.dirty))
	for f := range s.dirty {
		changed = append(changed, f)
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i] < changed[j] })
	s.dirty = make(map[Field]bool)
	return changed
}

// =============================================================================
// BATCH
// =============================================================================

// Tx exposes the store's mutators inside one atomic batch. All writes made
// through a Tx coalesce into a single notification round, so dependent
// flags (for example isSending and isAborting) change together with no
// intermediate state observable.
type Tx struct {
	s *Store
}

// Batch runs fn as one atomic multi-field update.
func (s *Store) Batch(fn func(tx *Tx)) {
	s.mu.Lock()
	fn(&Tx{s: s})
	changed := s.takeDirtyLocked()
	s.mu.Unlock()
	s.notify(changed)
}

// mutate wraps a single locked mutation with the notify round.
func (s *Store) mutate(fn func()) {
	s.mu.Lock()
	fn()
	changed := s.takeDirtyLocked()
	s.mu.Unlock()
	s.notify(changed)
}

// =============================================================================
// CONNECTION
// =============================================================================

// Connection returns a snapshot of the connection state.
func (s *Store) Connection() Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// SetConnection applies a functional update to the connection state.
func (s *Store) SetConnection(fn func(*Connection)) {
	s.mutate(func() { s.setConnectionLocked(fn) })
}

// SetConnection is the Tx form.
func (tx *Tx) SetConnection(fn func(*Connection)) {
	tx.s.setConnectionLocked(fn)
}

func (s *Store) setConnectionLocked(fn func(*Connection)) {
	fn(&s.conn)
	s.markLocked(FieldConnection)
}

// =============================================================================
// SESSIONS
// =============================================================================

// Sessions returns the session list, sorted by update time descending.
func (s *Store) Sessions() []protocol.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// Session returns the session with the given id.
func (s *Store) Session(id string) (protocol.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess, true
		}
	}
	return protocol.Session{}, false
}

// SetSessions replaces the whole session list.
func (s *Store) SetSessions(sessions []protocol.Session) {
	s.mutate(func() { s.setSessionsLocked(sessions) })
}

func (s *Store) setSessionsLocked(sessions []protocol.Session) {
	s.sessions = make([]protocol.Session, len(sessions))
	copy(s.sessions, sessions)
	s.sortSessionsLocked()
	s.markLocked(FieldSessions)
}

// UpsertSession inserts or replaces one session by id. Applying the same
// update twice is a no-op the second time; the list never holds two
// entries with the same id.
func (s *Store) UpsertSession(sess protocol.Session) {
	s.mutate(func() { s.upsertSessionLocked(sess) })
}

// UpsertSession is the Tx form.
func (tx *Tx) UpsertSession(sess protocol.Session) {
	tx.s.upsertSessionLocked(sess)
}

func (s *Store) upsertSessionLocked(sess protocol.Session) {
	for i := range s.sessions {
		if s.sessions[i].ID == sess.ID {
			s.sessions[i] = sess
			s.sortSessionsLocked()
			s.markLocked(FieldSessions)
			return
		}
	}
	s.sessions = append(s.sessions, sess)
	s.sortSessionsLocked()
	s.markLocked(FieldSessions)
}

// RemoveSession drops a session and everything scoped to it.
func (s *Store) RemoveSession(id string) {
	s.mutate(func() { s.removeSessionLocked(id) })
}

func (s *Store) removeSessionLocked(id string) {
	kept := s.sessions[:0]
	for _, sess := range s.sessions {
		if sess.ID != id {
			kept = append(kept, sess)
		}
	}
	s.sessions = kept
	delete(s.messages, id)
	delete(s.flags, id)
	delete(s.messagesFetched, id)
	delete(s.resources, MessagesResource(id))
	if s.current == id {
		s.current = ""
		s.markLocked(FieldCurrent)
	}
	s.markLocked(FieldSessions)
	s.markLocked(FieldMessages)
	s.markLocked(FieldFlags)
}

func (s *Store) sortSessionsLocked() {
	sort.SliceStable(s.sessions, func(i, j int) bool {
		return s.sessions[i].Time.Updated > s.sessions[j].Time.Updated
	})
}

// =============================================================================
// MESSAGES
// =============================================================================

// Messages returns a snapshot of a session's messages in arrival order.
func (s *Store) Messages(sessionID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[sessionID]
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		cp := *m
		cp.Parts = make([]protocol.Part, len(m.Parts))
		copy(cp.Parts, m.Parts)
		out = append(out, cp)
	}
	return out
}

// SetMessages replaces a session's message collection (hydration from the
// message-list endpoint) and stamps its fetch time.
func (s *Store) SetMessages(sessionID string, msgs []Message, fetchedAt time.Time) {
	s.mutate(func() {
		list := make([]*Message, 0, len(msgs))
		for i := range msgs {
			m := msgs[i]
			list = append(list, &m)
		}
		s.messages[sessionID] = list
		s.messagesFetched[sessionID] = fetchedAt
		s.markLocked(FieldMessages)
	})
}

// MessagesFetchedAt returns when a session's messages were last hydrated.
func (s *Store) MessagesFetchedAt(sessionID string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messagesFetched[sessionID]
}

// UpsertMessage inserts or updates a message's header fields, never its
// parts. A shell message is created when the id is new. When a confirmed
// user message arrives, any optimistic pending record in the same session
// is retired; the client-generated id is never assumed to match the
// server's.
func (s *Store) UpsertMessage(info protocol.MessageInfo) {
	s.mutate(func() { s.upsertMessageLocked(info) })
}

// UpsertMessage is the Tx form.
func (tx *Tx) UpsertMessage(info protocol.MessageInfo) {
	tx.s.upsertMessageLocked(info)
}

func (s *Store) upsertMessageLocked(info protocol.MessageInfo) {
	msgs := s.messages[info.SessionID]
	for _, m := range msgs {
		if m.Info.ID == info.ID {
			m.Info = info
			s.markLocked(FieldMessages)
			return
		}
	}

	// A confirmed user message supersedes the oldest pending local record.
	if info.Role == protocol.RoleUser {
		for i, m := range msgs {
			if m.Pending && !m.SendFailed {
				msgs = append(msgs[:i], msgs[i+1:]...)
				break
			}
		}
	}

	s.messages[info.SessionID] = append(msgs, &Message{Info: info})
	s.markLocked(FieldMessages)
}

// RemoveMessage drops one message from a session.
func (s *Store) RemoveMessage(sessionID, messageID string) {
	s.mutate(func() {
		msgs := s.messages[sessionID]
		for i, m := range msgs {
			if m.Info.ID == messageID {
				s.messages[sessionID] = append(msgs[:i], msgs[i+1:]...)
				s.markLocked(FieldMessages)
				return
			}
		}
	})
}

// AddPendingMessage inserts an optimistic local user message.
func (s *Store) AddPendingMessage(msg Message) {
	s.mutate(func() {
		msg.Pending = true
		s.messages[msg.Info.SessionID] = append(s.messages[msg.Info.SessionID], &msg)
		s.markLocked(FieldMessages)
	})
}

// MarkSendFailed flags an optimistic message whose submission failed. The
// record stays visible so the user can see what did not go through.
func (s *Store) MarkSendFailed(sessionID, messageID string) {
	s.mutate(func() {
		for _, m := range s.messages[sessionID] {
			if m.Info.ID == messageID {
				m.SendFailed = true
				s.markLocked(FieldMessages)
				return
			}
		}
	})
}

// =============================================================================
// PARTS
// =============================================================================

// UpsertPart inserts or replaces a part inside its owning message, keyed
// by part id. Returns ErrOrphanPart, leaving the store unchanged, when the
// owning message is unknown; fabricating a malformed shell would be worse
// than dropping the part.
//
// Repeated updates for the same part id apply last-write-wins, except that
// a tool part's status never moves backward through its lifecycle: a stale
// update ranking below the recorded status is dropped whole.
func (s *Store) UpsertPart(part protocol.Part) error {
	var err error
	s.mutate(func() { err = s.upsertPartLocked(part) })
	return err
}

// UpsertPart is the Tx form.
func (tx *Tx) UpsertPart(part protocol.Part) error {
	return tx.s.upsertPartLocked(part)
}

func (s *Store) upsertPartLocked(part protocol.Part) error {
	var owner *Message
	for _, m := range s.messages[part.SessionID] {
		if m.Info.ID == part.MessageID {
			owner = m
			break
		}
	}
	if owner == nil {
		return ErrOrphanPart
	}

	for i := range owner.Parts {
		if owner.Parts[i].ID != part.ID {
			continue
		}
		if staleToolUpdate(&owner.Parts[i], &part) {
			return nil
		}
		owner.Parts[i] = part
		s.markLocked(FieldMessages)
		return nil
	}

	owner.Parts = append(owner.Parts, part)
	s.markLocked(FieldMessages)
	return nil
}

// staleToolUpdate reports whether incoming would regress a tool part's
// status machine (pending -> running -> completed|error is monotonic).
func staleToolUpdate(existing, incoming *protocol.Part) bool {
	if existing.Type != protocol.PartTypeTool || incoming.Type != protocol.PartTypeTool {
		return false
	}
	if existing.State == nil || incoming.State == nil {
		return false
	}
	return protocol.StatusRank(incoming.State.Status) < protocol.StatusRank(existing.State.Status)
}

// =============================================================================
// FLAGS
// =============================================================================

// Flags returns a session's transient flags.
func (s *Store) Flags(sessionID string) SessionFlags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags[sessionID]
}

// SetFlags applies a functional update to a session's flags.
func (s *Store) SetFlags(sessionID string, fn func(*SessionFlags)) {
	s.mutate(func() { s.setFlagsLocked(sessionID, fn) })
}

// SetFlags is the Tx form.
func (tx *Tx) SetFlags(sessionID string, fn func(*SessionFlags)) {
	tx.s.setFlagsLocked(sessionID, fn)
}

func (s *Store) setFlagsLocked(sessionID string, fn func(*SessionFlags)) {
	f := s.flags[sessionID]
	fn(&f)
	s.flags[sessionID] = f
	s.markLocked(FieldFlags)
}

// =============================================================================
// CATALOGS AND SELECTION
// =============================================================================

// Providers returns the provider catalog.
func (s *Store) Providers() protocol.ProviderList {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.providers
}

// SetProviders replaces the provider catalog.
func (s *Store) SetProviders(list protocol.ProviderList) {
	s.mutate(func() {
		s.providers = list
		s.markLocked(FieldCatalogs)
	})
}

// Agents returns the agent catalog.
func (s *Store) Agents() []protocol.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Agent, len(s.agents))
	copy(out, s.agents)
	return out
}

// SetAgents replaces the agent catalog.
func (s *Store) SetAgents(agents []protocol.Agent) {
	s.mutate(func() {
		s.agents = agents
		s.markLocked(FieldCatalogs)
	})
}

// ClearCatalogs drops both catalogs, used on disconnect.
func (s *Store) ClearCatalogs() {
	s.mutate(func() {
		s.providers = protocol.ProviderList{}
		s.agents = nil
		s.markLocked(FieldCatalogs)
	})
}

// ClearCatalogs is the Tx form.
func (tx *Tx) ClearCatalogs() {
	tx.s.providers = protocol.ProviderList{}
	tx.s.agents = nil
	tx.s.markLocked(FieldCatalogs)
}

// Selection returns the current model/provider/agent choice.
func (s *Store) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// SetSelection replaces the selection. Validation against the catalogs is
// the action layer's job; the store does not reject.
func (s *Store) SetSelection(sel Selection) {
	s.mutate(func() {
		s.selection = sel
		s.markLocked(FieldSelection)
	})
}

// =============================================================================
// CURRENT SESSION
// =============================================================================

// CurrentSession returns the id of the session the UI is focused on.
func (s *Store) CurrentSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SetCurrentSession changes the focused session.
func (s *Store) SetCurrentSession(id string) {
	s.mutate(func() {
		s.current = id
		s.markLocked(FieldCurrent)
	})
}

// =============================================================================
// RESOURCE STATUS
// =============================================================================

// Resource returns a resource's load/cache status.
func (s *Store) Resource(r Resource) ResourceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resources[r]
}

// SetResource applies a functional update to a resource's status.
func (s *Store) SetResource(r Resource, fn func(*ResourceStatus)) {
	s.mutate(func() {
		st := s.resources[r]
		fn(&st)
		s.resources[r] = st
		s.markLocked(FieldResources)
	})
}
