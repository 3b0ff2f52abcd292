// SPDX-License-Identifier: MPL-2.0

package runtime

import "time"

type (
	// Clock abstracts the time source used for phase timing and transient
	// resource disposal.
	Clock interface {
		Now() time.Time
		Since(t time.Time) time.Duration
		After(d time.Duration) <-chan time.Time
	}

	// RealClock implements Clock using the system time.
	RealClock struct{}
)

// Now returns the current system time.
func (RealClock) Now() time.Time { return time.Now() }

// Since returns the time elapsed since t.
func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

// After returns a channel that receives the time after duration d.
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
