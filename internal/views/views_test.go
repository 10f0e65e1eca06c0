// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package views

import (
	"testing"
	"time"

	"github.com/jeranaias/codelink-tui/internal/protocol"
	"github.com/jeranaias/codelink-tui/internal/state"
)

// =============================================================================
// MESSAGE ORDERING TESTS
// =============================================================================

func TestSortedMessages_ByCreationTime(t *testing.T) {
	msgs := []state.Message{
		{Info: protocol.MessageInfo{ID: "b", Time: protocol.MessageTime{Created: 200}}},
		{Info: protocol.MessageInfo{ID: "a", Time: protocol.MessageTime{Created: 100}}},
		{Info: protocol.MessageInfo{ID: "c", Time: protocol.MessageTime{Created: 300}}},
	}

	got := SortedMessages(msgs)
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if got[i].Info.ID != id {
			t.Errorf("position %d: got %q, want %q", i, got[i].Info.ID, id)
		}
	}
}

func TestSortedMessages_ZeroCreatedSortsLast(t *testing.T) {
	// A pending local record before the server stamps it.
	msgs := []state.Message{
		{Info: protocol.MessageInfo{ID: "pending"}},
		{Info: protocol.MessageInfo{ID: "old", Time: protocol.MessageTime{Created: 100}}},
	}

	got := SortedMessages(msgs)
	if got[len(got)-1].Info.ID != "pending" {
		t.Errorf("pending message not last: %v", got)
	}
}

// =============================================================================
// SESSION GROUPING TESTS
// =============================================================================

func sessionUpdatedAt(id string, at time.Time) protocol.Session {
	return protocol.Session{
		ID:   id,
		Time: protocol.TimeStamps{Updated: at.UnixMilli()},
	}
}

func TestGroupSessions_RecencyBuckets(t *testing.T) {
	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

	sessions := []protocol.Session{
		sessionUpdatedAt("today", now.Add(-1*time.Hour)),
		sessionUpdatedAt("yesterday", now.Add(-26*time.Hour)),
		sessionUpdatedAt("week", now.AddDate(0, 0, -4)),
		sessionUpdatedAt("month", now.AddDate(0, 0, -20)),
		sessionUpdatedAt("march", time.Date(2025, time.March, 2, 10, 0, 0, 0, time.UTC)),
		sessionUpdatedAt("lastyear", time.Date(2023, time.August, 2, 10, 0, 0, 0, time.UTC)),
	}

	groups := GroupSessions(sessions, now)

	wantTitles := []string{"Today", "Yesterday", "Last 7 Days", "Last 30 Days", "March", "2023"}
	if len(groups) != len(wantTitles) {
		t.Fatalf("got %d groups, want %d: %+v", len(groups), len(wantTitles), groups)
	}
	for i, title := range wantTitles {
		if groups[i].Title != title {
			t.Errorf("group %d: got %q, want %q", i, groups[i].Title, title)
		}
		if len(groups[i].Sessions) != 1 {
			t.Errorf("group %q: %d sessions", title, len(groups[i].Sessions))
		}
	}
}

func TestGroupSessions_EmptyBucketsOmitted(t *testing.T) {
	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	sessions := []protocol.Session{
		sessionUpdatedAt("only", now.Add(-1*time.Hour)),
	}

	groups := GroupSessions(sessions, now)
	if len(groups) != 1 || groups[0].Title != "Today" {
		t.Fatalf("unexpected groups: %+v", groups)
	}
}

func TestGroupSessions_OrderedWithinBucket(t *testing.T) {
	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	sessions := []protocol.Session{
		sessionUpdatedAt("older", now.Add(-3*time.Hour)),
		sessionUpdatedAt("newer", now.Add(-1*time.Hour)),
	}

	groups := GroupSessions(sessions, now)
	if groups[0].Sessions[0].ID != "newer" {
		t.Error("sessions inside a bucket not sorted by recency")
	}
}

// =============================================================================
// SELECTION RESOLUTION TESTS
// =============================================================================

func TestResolveSelection_Complete(t *testing.T) {
	s := state.NewStore()
	s.SetProviders(protocol.ProviderList{
		Providers: []protocol.Provider{{
			ID:     "anthropic",
			Models: map[string]protocol.Model{"claude": {ID: "claude", Name: "Claude"}},
		}},
	})
	s.SetAgents([]protocol.Agent{{Name: "build"}})
	s.SetSelection(state.Selection{ProviderID: "anthropic", ModelID: "claude", Agent: "build"})

	got := ResolveSelection(s)
	if !got.Complete {
		t.Fatal("selection should resolve")
	}
	if got.Model.Name != "Claude" {
		t.Errorf("model = %+v", got.Model)
	}
}

func TestResolveSelection_StaleModelIncomplete(t *testing.T) {
	s := state.NewStore()
	s.SetProviders(protocol.ProviderList{
		Providers: []protocol.Provider{{ID: "anthropic", Models: map[string]protocol.Model{}}},
	})
	s.SetSelection(state.Selection{ProviderID: "anthropic", ModelID: "gone", Agent: "build"})

	if got := ResolveSelection(s); got.Complete {
		t.Error("stale selection resolved as complete")
	}
}

func TestDisplayName_Fallback(t *testing.T) {
	if got := DisplayName("Claude Sonnet", "claude-sonnet"); got != "Claude Sonnet" {
		t.Errorf("got %q", got)
	}
	if got := DisplayName("", "build"); got != "Build" {
		t.Errorf("got %q", got)
	}
}
