// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"testing"
	"time"
)

func TestBackoff_DelaySequence(t *testing.T) {
	b := NewBackoff()
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		16 * time.Second, // saturated
		16 * time.Second,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("attempt %d: got %v, want %v", i, got, w)
		}
	}
}

func TestBackoff_ResetRestartsSequence(t *testing.T) {
	b := NewBackoff()
	for i := 0; i < 4; i++ {
		b.Next()
	}
	b.Reset()
	if got := b.Next(); got != 1*time.Second {
		t.Errorf("after reset: got %v, want 1s", got)
	}
}
