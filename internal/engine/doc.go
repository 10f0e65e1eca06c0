// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine keeps the local store synchronized with the agent server.
//
// The Engine owns the event-stream lifecycle: it opens the server's SSE
// feed, decodes each event, and applies it to the store through a fixed
// dispatch table. When the stream drops it reconnects with capped
// exponential backoff; nothing that happens on the stream is ever fatal
// to the process. A malformed event is logged and skipped, a dead
// connection is retried, and an unknown event type is ignored.
//
// Only one stream is ever active. Start while running is a no-op, and
// Stop guarantees that no event from the abandoned stream mutates the
// store afterward.
package engine
