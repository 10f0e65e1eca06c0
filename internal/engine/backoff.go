// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import "time"

// =============================================================================
// RECONNECT BACKOFF
// =============================================================================

// Backoff defaults: 1s, 2s, 4s, 8s, 16s, then 16s forever.
const (
	DefaultBackoffBase = 1 * time.Second
	DefaultBackoffCap  = 16 * time.Second

	// DefaultMaxAttempt is where the attempt counter saturates so the
	// delay stops growing. Reconnection itself never gives up.
	DefaultMaxAttempt = 5
)

// Backoff computes reconnect delays: min(base * 2^attempt, cap), with the
// attempt counter saturating at MaxAttempt and resetting to zero on every
// successful connection. Not safe for concurrent use; the engine calls it
// from its run loop only.
type Backoff struct {
	Base       time.Duration
	Cap        time.Duration
	MaxAttempt int

	attempt int
}

// NewBackoff returns a backoff with the default policy.
func NewBackoff() *Backoff {
	return &Backoff{
		Base:       DefaultBackoffBase,
		Cap:        DefaultBackoffCap,
		MaxAttempt: DefaultMaxAttempt,
	}
}

// Next returns the delay to wait before the next attempt and advances the
// attempt counter.
func (b *Backoff) Next() time.Duration {
	delay := b.Base << uint(b.attempt)
	if delay > b.Cap || delay <= 0 {
		delay = b.Cap
	}
	if b.attempt < b.MaxAttempt {
		b.attempt++
	}
	return delay
}

// Reset zeroes the attempt counter after a successful connection.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt returns the current attempt counter.
func (b *Backoff) Attempt() int {
	return b.attempt
}
