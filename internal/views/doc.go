// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package views computes UI-ready projections of the store.
//
// Everything here is a pure function over snapshots: no store mutation,
// no I/O, recomputed on read. The UI calls these after every store
// notification and renders the result.
package views
