// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package actions implements the imperative operations the UI invokes.
//
// Each action mutates the store optimistically, calls the transport
// client, and reconciles on the outcome. Status flags (isLoading,
// isSending, isAborting) are cleared through deferred cleanup no matter
// how the call ends, and every failure is returned to the caller; nothing
// is swallowed. Resource loads go through a TTL read cache so switching
// screens does not refetch data that is still fresh.
//
// Preconditions are checked before any network call: sending with no
// model selected, or connecting while a connect is in flight, fails fast
// with a descriptive error.
package actions
