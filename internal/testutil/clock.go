// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"sync"
	"time"
)

// epoch is the default FakeClock time, fixed for reproducible output.
var epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

type (
	// FakeClock is a manually advanced clock. It satisfies the Clock
	// interfaces of the packages under test (Now, Since, After).
	FakeClock struct {
		mu      sync.Mutex
		current time.Time
		waiters []waiter
	}

	waiter struct {
		target time.Time
		ch     chan time.Time
	}
)

// NewFakeClock returns a FakeClock set to initial, or to 2020-01-01 UTC when
// initial is zero.
func NewFakeClock(initial time.Time) *FakeClock {
	if initial.IsZero() {
		initial = epoch
	}
	return &FakeClock{current: initial}
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Since returns the fake time elapsed since t.
func (c *FakeClock) Since(t time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Sub(t)
}

// After returns a channel that fires once Advance or Set reaches d from now.
// Non-positive durations fire immediately.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.current
		return ch
	}
	c.waiters = append(c.waiters, waiter{target: c.current.Add(d), ch: ch})
	return ch
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	c.notify()
}

// Set moves the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
	c.notify()
}

// Waiters returns the number of pending After calls. Tests poll it to know
// the code under test has armed its timer before advancing.
func (c *FakeClock) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// notify fires due waiters. mu must be held.
func (c *FakeClock) notify() {
	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if c.current.Before(w.target) {
			remaining = append(remaining, w)
			continue
		}
		w.ch <- c.current
	}
	c.waiters = remaining
}
