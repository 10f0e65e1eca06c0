// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package state holds the client's single source of truth.
//
// The Store is an observable state tree: connection status, the session
// list, per-session message collections, catalog data, selection, and
// transient per-session flags. All mutation goes through Store methods
// (or a Batch transaction), each of which runs as one atomic critical
// section and then notifies subscribers synchronously, outside the lock,
// before the mutating call returns. View code never mutates the store
// directly; only internal/actions and internal/engine do.
//
// The store performs no I/O. It is pure state plus notification.
package state
