// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the Bubble Tea interface for codelink.
//
// The program has two screens: a session picker grouped by recency, and
// the conversation view for the selected session. All server state is
// read from the shared store; the model subscribes to store changes and
// re-renders when notified, so events arriving over the stream show up
// without any polling.
package chat
