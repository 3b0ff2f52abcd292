// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"sync"
	"testing"
	"time"
)

func fired(ch <-chan time.Time) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestFakeClock_NowAndSince(t *testing.T) {
	t.Parallel()

	if got := NewFakeClock(time.Time{}).Now(); !got.Equal(epoch) {
		t.Errorf("zero initial time: Now() = %v, want %v", got, epoch)
	}

	initial := time.Date(2023, 6, 15, 12, 0, 0, 0, time.UTC)
	c := NewFakeClock(initial)
	past := initial.Add(-30 * time.Minute)
	if got := c.Since(past); got != 30*time.Minute {
		t.Errorf("Since() = %v, want 30m", got)
	}
	c.Advance(15 * time.Minute)
	if got := c.Since(past); got != 45*time.Minute {
		t.Errorf("Since() after Advance = %v, want 45m", got)
	}
	later := time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)
	c.Set(later)
	if got := c.Now(); !got.Equal(later) {
		t.Errorf("Now() after Set = %v, want %v", got, later)
	}
}

func TestFakeClock_After(t *testing.T) {
	t.Parallel()

	c := NewFakeClock(time.Time{})
	if !fired(c.After(0)) || !fired(c.After(-time.Second)) {
		t.Error("non-positive durations should fire immediately")
	}

	grace := c.After(5 * time.Minute)
	long := c.After(15 * time.Minute)
	if c.Waiters() != 2 {
		t.Fatalf("Waiters() = %d, want 2", c.Waiters())
	}

	c.Advance(7 * time.Minute)
	if !fired(grace) {
		t.Error("5m timer should fire at 7m")
	}
	if fired(long) {
		t.Error("15m timer fired early")
	}
	if c.Waiters() != 1 {
		t.Errorf("Waiters() = %d, want 1", c.Waiters())
	}

	c.Set(c.Now().Add(time.Hour))
	if !fired(long) {
		t.Error("15m timer should fire after Set past its target")
	}
}

func TestFakeClock_Concurrent(t *testing.T) {
	t.Parallel()

	c := NewFakeClock(time.Time{})
	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for range 100 {
				<-c.After(0)
				_ = c.Now()
			}
		})
	}
	wg.Go(func() {
		for range 50 {
			c.Advance(time.Millisecond)
		}
	})
	wg.Wait()
}
