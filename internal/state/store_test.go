// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import (
	"errors"
	"testing"
	"time"

	"github.com/jeranaias/codelink-tui/internal/protocol"
)

func sessionAt(id string, updated int64) protocol.Session {
	return protocol.Session{
		ID:   id,
		Time: protocol.TimeStamps{Created: updated, Updated: updated},
	}
}

// =============================================================================
// SESSION TESTS
// =============================================================================

func TestUpsertSession_Idempotent(t *testing.T) {
	s := NewStore()
	sess := sessionAt("s1", 100)

	s.UpsertSession(sess)
	s.UpsertSession(sess)

	got := s.Sessions()
	if len(got) != 1 {
		t.Fatalf("expected 1 session, got %d", len(got))
	}
	if got[0].ID != "s1" {
		t.Errorf("wrong session: %q", got[0].ID)
	}
}

func TestUpsertSession_SortsByUpdateTime(t *testing.T) {
	s := NewStore()
	s.UpsertSession(sessionAt("old", 100))
	s.UpsertSession(sessionAt("new", 300))
	s.UpsertSession(sessionAt("mid", 200))

	got := s.Sessions()
	want := []string{"new", "mid", "old"}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: got %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestRemoveSession_Cascades(t *testing.T) {
	s := NewStore()
	s.UpsertSession(sessionAt("s1", 100))
	s.UpsertMessage(protocol.MessageInfo{ID: "m1", SessionID: "s1", Role: protocol.RoleUser})
	s.SetFlags("s1", func(f *SessionFlags) { f.IsSending = true })
	s.SetCurrentSession("s1")

	s.RemoveSession("s1")

	if len(s.Sessions()) != 0 {
		t.Error("session not removed")
	}
	if len(s.Messages("s1")) != 0 {
		t.Error("messages not removed")
	}
	if s.Flags("s1").IsSending {
		t.Error("flags not removed")
	}
	if s.CurrentSession() != "" {
		t.Error("current session not cleared")
	}
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestUpsertMessage_HeaderOnlyUpdate(t *testing.T) {
	s := NewStore()
	info := protocol.MessageInfo{ID: "m1", SessionID: "s1", Role: protocol.RoleAssistant}
	s.UpsertMessage(info)
	if err := s.UpsertPart(protocol.Part{ID: "p1", MessageID: "m1", SessionID: "s1", Type: protocol.PartTypeText, Text: "hi"}); err != nil {
		t.Fatalf("UpsertPart: %v", err)
	}

	// A later header update must not disturb the parts.
	info.Time.Completed = 500
	s.UpsertMessage(info)

	msgs := s.Messages("s1")
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Info.Time.Completed != 500 {
		t.Error("header not updated")
	}
	if len(msgs[0].Parts) != 1 || msgs[0].Parts[0].Text != "hi" {
		t.Error("parts lost on header update")
	}
}

func TestUpsertMessage_RetiresPendingRecord(t *testing.T) {
	s := NewStore()
	s.AddPendingMessage(Message{
		Info: protocol.MessageInfo{ID: "local-1", SessionID: "s1", Role: protocol.RoleUser},
	})

	// Confirmed user message from the server carries a different id.
	s.UpsertMessage(protocol.MessageInfo{ID: "srv-1", SessionID: "s1", Role: protocol.RoleUser})

	msgs := s.Messages("s1")
	if len(msgs) != 1 {
		t.Fatalf("expected pending record replaced, got %d messages", len(msgs))
	}
	if msgs[0].Info.ID != "srv-1" {
		t.Errorf("surviving message is %q, want srv-1", msgs[0].Info.ID)
	}
}

func TestUpsertMessage_KeepsFailedRecord(t *testing.T) {
	s := NewStore()
	s.AddPendingMessage(Message{
		Info: protocol.MessageInfo{ID: "local-1", SessionID: "s1", Role: protocol.RoleUser},
	})
	s.MarkSendFailed("s1", "local-1")

	s.UpsertMessage(protocol.MessageInfo{ID: "srv-1", SessionID: "s1", Role: protocol.RoleUser})

	msgs := s.Messages("s1")
	if len(msgs) != 2 {
		t.Fatalf("failed record must stay visible, got %d messages", len(msgs))
	}
}

func TestMessages_SnapshotIsIsolated(t *testing.T) {
	s := NewStore()
	s.UpsertMessage(protocol.MessageInfo{ID: "m1", SessionID: "s1"})
	s.UpsertPart(protocol.Part{ID: "p1", MessageID: "m1", SessionID: "s1", Type: protocol.PartTypeText, Text: "a"})

	snap := s.Messages("s1")
	snap[0].Parts[0].Text = "mutated"

	if got := s.Messages("s1")[0].Parts[0].Text; got != "a" {
		t.Errorf("store observed caller mutation: %q", got)
	}
}

// =============================================================================
// PART TESTS
// =============================================================================

func TestUpsertPart_OrphanReturnsError(t *testing.T) {
	s := NewStore()
	err := s.UpsertPart(protocol.Part{ID: "p1", MessageID: "missing", SessionID: "s1", Type: protocol.PartTypeText})
	if !errors.Is(err, ErrOrphanPart) {
		t.Fatalf("expected ErrOrphanPart, got %v", err)
	}
	if len(s.Messages("s1")) != 0 {
		t.Error("orphan part mutated the store")
	}
}

func TestUpsertPart_LastWriteWins(t *testing.T) {
	s := NewStore()
	s.UpsertMessage(protocol.MessageInfo{ID: "m1", SessionID: "s1"})

	p := protocol.Part{ID: "p1", MessageID: "m1", SessionID: "s1", Type: protocol.PartTypeText, Text: "first"}
	s.UpsertPart(p)
	p.Text = "second"
	s.UpsertPart(p)

	parts := s.Messages("s1")[0].Parts
	if len(parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(parts))
	}
	if parts[0].Text != "second" {
		t.Errorf("got %q, want second", parts[0].Text)
	}
}

func TestUpsertPart_DropsStaleToolStatus(t *testing.T) {
	s := NewStore()
	s.UpsertMessage(protocol.MessageInfo{ID: "m1", SessionID: "s1"})

	tool := protocol.Part{
		ID: "p1", MessageID: "m1", SessionID: "s1", Type: protocol.PartTypeTool,
		Tool:  "bash",
		State: &protocol.ToolState{Status: protocol.ToolCompleted, Output: "done"},
	}
	s.UpsertPart(tool)

	// A delayed running update must not regress the completed state.
	stale := tool
	stale.State = &protocol.ToolState{Status: protocol.ToolRunning}
	s.UpsertPart(stale)

	got := s.Messages("s1")[0].Parts[0]
	if got.State.Status != protocol.ToolCompleted {
		t.Errorf("status regressed to %q", got.State.Status)
	}
	if got.State.Output != "done" {
		t.Error("stale update partially applied")
	}
}

func TestUpsertPart_AppendsInArrivalOrder(t *testing.T) {
	s := NewStore()
	s.UpsertMessage(protocol.MessageInfo{ID: "m1", SessionID: "s1"})
	for _, id := range []string{"p1", "p2", "p3"} {
		s.UpsertPart(protocol.Part{ID: id, MessageID: "m1", SessionID: "s1", Type: protocol.PartTypeText})
	}

	parts := s.Messages("s1")[0].Parts
	for i, id := range []string{"p1", "p2", "p3"} {
		if parts[i].ID != id {
			t.Errorf("position %d: got %q, want %q", i, parts[i].ID, id)
		}
	}
}

// =============================================================================
// NOTIFICATION TESTS
// =============================================================================

func TestSubscribe_NotifiedSynchronously(t *testing.T) {
	s := NewStore()
	var got [][]Field
	unsub := s.Subscribe(func(changed []Field) {
		got = append(got, changed)
	})
	defer unsub()

	s.UpsertSession(sessionAt("s1", 100))

	if len(got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(got))
	}
	if len(got[0]) != 1 || got[0][0] != FieldSessions {
		t.Errorf("unexpected changed set: %v", got[0])
	}
}

func TestBatch_CoalescesToOneNotification(t *testing.T) {
	s := NewStore()
	count := 0
	unsub := s.Subscribe(func(changed []Field) { count++ })
	defer unsub()

	s.Batch(func(tx *Tx) {
		tx.SetFlags("s1", func(f *SessionFlags) { f.IsSending = false })
		tx.SetFlags("s1", func(f *SessionFlags) { f.IsAborting = false })
		tx.SetConnection(func(c *Connection) { c.Status = Connected })
	})

	if count != 1 {
		t.Errorf("expected 1 notification for the batch, got %d", count)
	}
}

func TestBatch_IntermediateStateNotObservable(t *testing.T) {
	s := NewStore()
	s.SetFlags("s1", func(f *SessionFlags) {
		f.IsSending = true
		f.IsAborting = true
	})

	unsub := s.Subscribe(func(changed []Field) {
		f := s.Flags("s1")
		if f.IsSending != f.IsAborting {
			t.Error("observed half-applied batch")
		}
	})
	defer unsub()

	s.Batch(func(tx *Tx) {
		tx.SetFlags("s1", func(f *SessionFlags) { f.IsSending = false })
		tx.SetFlags("s1", func(f *SessionFlags) { f.IsAborting = false })
	})
}

func TestUnsubscribe_StopsNotifications(t *testing.T) {
	s := NewStore()
	count := 0
	unsub := s.Subscribe(func([]Field) { count++ })

	s.SetCurrentSession("s1")
	unsub()
	s.SetCurrentSession("s2")

	if count != 1 {
		t.Errorf("expected 1 notification, got %d", count)
	}
}

// =============================================================================
// RESOURCE STATUS TESTS
// =============================================================================

func TestSetResource_TracksFreshness(t *testing.T) {
	s := NewStore()
	stamp := time.Now()
	s.SetResource(ResourceSessions, func(st *ResourceStatus) {
		st.LastFetched = stamp
	})

	if got := s.Resource(ResourceSessions).LastFetched; !got.Equal(stamp) {
		t.Errorf("LastFetched = %v, want %v", got, stamp)
	}
	if s.Resource(ResourceProviders).LastFetched != (time.Time{}) {
		t.Error("untouched resource has a fetch time")
	}
}
