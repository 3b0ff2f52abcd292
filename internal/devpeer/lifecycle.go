// SPDX-License-Identifier: MPL-2.0

package devpeer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

const (
	// StateCreated is a server that was never started.
	StateCreated State = iota
	// StateStarting is a server binding its listener.
	StateStarting
	// StateRunning is a server answering requests.
	StateRunning
	// StateStopping is a server draining connections.
	StateStopping
	// StateStopped is terminal.
	StateStopped
	// StateFailed is terminal: startup or the serve loop failed.
	StateFailed
)

type (
	// State is the lifecycle state of a Server.
	State int32

	// lifecycle is the single-use state machine behind Server. Reads of the
	// state are lock-free; transitions that carry data take mu.
	lifecycle struct {
		state atomic.Int32

		mu      sync.Mutex
		lastErr error

		wg      sync.WaitGroup
		readyCh chan struct{}
		errCh   chan error
	}
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition can happen.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}

func newLifecycle() lifecycle {
	return lifecycle{
		readyCh: make(chan struct{}),
		errCh:   make(chan error, 1),
	}
}

// State returns the current state.
func (l *lifecycle) State() State { return State(l.state.Load()) }

// Err reports a failure of the serve loop. At most one error is delivered.
func (l *lifecycle) Err() <-chan error { return l.errCh }

// LastError returns the error that failed the server, or nil.
func (l *lifecycle) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// begin moves Created to Starting. A cancelled ctx fails the server first so
// the serve goroutine never observes Running for a start that was abandoned.
func (l *lifecycle) begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		l.fail(fmt.Errorf("context cancelled before start: %w", err))
		return l.LastError()
	}
	if !l.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		if State(l.state.Load()) == StateRunning {
			return ErrAlreadyStarted
		}
		return fmt.Errorf("%w: server is %s", ErrAlreadyStarted, l.State())
	}
	return nil
}

func (l *lifecycle) running() {
	if l.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(l.readyCh)
	}
}

func (l *lifecycle) fail(err error) {
	l.mu.Lock()
	l.lastErr = err
	l.mu.Unlock()
	l.state.Store(int32(StateFailed))
	select {
	case l.errCh <- err:
	default:
	}
}

// stopping reports whether the caller owns the shutdown. A server that never
// started goes straight to Stopped.
func (l *lifecycle) stopping() bool {
	for {
		switch cur := State(l.state.Load()); cur {
		case StateCreated:
			if l.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				return false
			}
		case StateStarting, StateRunning:
			if l.state.CompareAndSwap(int32(cur), int32(StateStopping)) {
				return true
			}
		default:
			return false
		}
	}
}

func (l *lifecycle) stopped() {
	if State(l.state.Load()) != StateFailed {
		l.state.Store(int32(StateStopped))
	}
}

// WaitReady blocks until the server runs or ctx is done.
func (l *lifecycle) WaitReady(ctx context.Context) error {
	select {
	case <-l.readyCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for dev peer: %w", ctx.Err())
	}
}
