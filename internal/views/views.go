// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package views

import (
	"sort"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jeranaias/codelink-tui/internal/protocol"
	"github.com/jeranaias/codelink-tui/internal/state"
)

// =============================================================================
// MESSAGE PROJECTIONS
// =============================================================================

// SortedMessages orders a session's messages by creation time ascending.
// Messages with a placeholder (zero) creation time are still streaming in
// and sort after everything with a real timestamp.
func SortedMessages(msgs []state.Message) []state.Message {
	out := make([]state.Message, len(msgs))
	copy(out, msgs)
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := out[i].Info.Time.Created, out[j].Info.Time.Created
		if ci == 0 {
			return false
		}
		if cj == 0 {
			return true
		}
		return ci < cj
	})
	return out
}

// CurrentMessages returns the focused session's messages, display-sorted.
func CurrentMessages(s *state.Store) []state.Message {
	id := s.CurrentSession()
	if id == "" {
		return nil
	}
	return SortedMessages(s.Messages(id))
}

// =============================================================================
// SESSION PROJECTIONS
// =============================================================================

// SortedSessions orders sessions by update time descending.
func SortedSessions(sessions []protocol.Session) []protocol.Session {
	out := make([]protocol.Session, len(sessions))
	copy(out, sessions)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Updated > out[j].Time.Updated
	})
	return out
}

// SessionGroup is one recency bucket of sessions.
type SessionGroup struct {
	Title    string
	Sessions []protocol.Session
}

// Recency bucket titles with fixed ordering, most recent first. Month and
// year buckets follow these.
const (
	bucketToday     = "Today"
	bucketYesterday = "Yesterday"
	bucketWeek      = "Last 7 Days"
	bucketMonth     = "Last 30 Days"
)

// GroupSessions buckets sessions by recency relative to now: Today,
// Yesterday, Last 7 Days, Last 30 Days, then one bucket per month of the
// current year and one per earlier year. Bucket order and titles are
// deterministic; sessions inside each bucket stay sorted by update time
// descending.
func GroupSessions(sessions []protocol.Session, now time.Time) []SessionGroup {
	sorted := SortedSessions(sessions)

	startToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startYesterday := startToday.AddDate(0, 0, -1)
	startWeek := startToday.AddDate(0, 0, -7)
	startMonth := startToday.AddDate(0, 0, -30)

	var order []string
	buckets := make(map[string][]protocol.Session)
	add := func(title string, sess protocol.Session) {
		if _, ok := buckets[title]; !ok {
			order = append(order, title)
		}
		buckets[title] = append(buckets[title], sess)
	}

	for _, sess := range sorted {
		updated := time.UnixMilli(sess.Time.Updated).In(now.Location())
		switch {
		case !updated.Before(startToday):
			add(bucketToday, sess)
		case !updated.Before(startYesterday):
			add(bucketYesterday, sess)
		case !updated.Before(startWeek):
			add(bucketWeek, sess)
		case !updated.Before(startMonth):
			add(bucketMonth, sess)
		case updated.Year() == now.Year():
			add(updated.Month().String(), sess)
		default:
			add(updated.Format("2006"), sess)
		}
	}

	groups := make([]SessionGroup, 0, len(order))
	for _, title := range order {
		groups = append(groups, SessionGroup{Title: title, Sessions: buckets[title]})
	}
	return groups
}

// =============================================================================
// SELECTION RESOLUTION
// =============================================================================

// ResolvedSelection is the current selection joined against the catalogs.
type ResolvedSelection struct {
	Provider protocol.Provider
	Model    protocol.Model
	Agent    protocol.Agent
	Complete bool
}

// ResolveSelection joins the store's selection against the last-fetched
// catalogs. Complete is false when any piece is unset or no longer in its
// catalog.
func ResolveSelection(s *state.Store) ResolvedSelection {
	sel := s.Selection()
	var out ResolvedSelection

	providers := s.Providers()
	provider, model, ok := providers.FindModel(sel.ProviderID, sel.ModelID)
	if !ok {
		return out
	}
	out.Provider = provider
	out.Model = model

	for _, agent := range s.Agents() {
		if agent.Name == sel.Agent {
			out.Agent = agent
			out.Complete = true
			return out
		}
	}
	return out
}

var titleCaser = cases.Title(language.English)

// DisplayName returns a human-facing name for a provider or agent,
// falling back to a title-cased id when the catalog has no display name.
func DisplayName(name, id string) string {
	if name != "" {
		return name
	}
	return titleCaser.String(id)
}
