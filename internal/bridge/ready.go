package bridge

import (
	"context"
	"sync"
	"time"
)

// readyTimeout bounds how long AwaitReady waits for the first discovery
// cycle before forcing the gate open.
const readyTimeout = 30 * time.Second

// Gate is the one-shot readiness signal released after the first
// discovery cycle completes (successfully or not).
//
// Host-triggered command handlers await the gate before touching device
// state, so commands that arrive during startup wait for discovery
// instead of failing on an empty handler map. The timeout fallback
// guarantees no caller blocks forever: if the first cycle is stuck
// (say, the cloud is down and login is retrying), the gate forces open
// and the caller gets ErrReadyTimeout to distinguish forced readiness
// from the real thing.
type Gate struct {
	once    sync.Once
	ready   chan struct{}
	timeout time.Duration

	mu     sync.Mutex
	forced bool
}

// NewGate creates a closed gate with the default timeout.
func NewGate() *Gate {
	return &Gate{
		ready:   make(chan struct{}),
		timeout: readyTimeout,
	}
}

// MarkReady opens the gate. Safe to call multiple times; only the first
// call has effect.
func (g *Gate) MarkReady() {
	g.once.Do(func() { close(g.ready) })
}

// IsReady reports whether the gate is open, without blocking.
func (g *Gate) IsReady() bool {
	select {
	case <-g.ready:
		return true
	default:
		return false
	}
}

// Forced reports whether the gate was opened by timeout rather than by
// a completed cycle.
func (g *Gate) Forced() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.forced
}

// AwaitReady blocks until the gate opens, the timeout elapses, or ctx
// is cancelled.
//
// On timeout the gate is forced open — subsequent awaiters return
// immediately — and ErrReadyTimeout is returned to this caller so it
// can tell forced readiness from earned readiness.
func (g *Gate) AwaitReady(ctx context.Context) error {
	select {
	case <-g.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t := time.NewTimer(g.timeout)
	defer t.Stop()

	select {
	case <-g.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		g.mu.Lock()
		g.forced = true
		g.mu.Unlock()
		g.MarkReady()
		return ErrReadyTimeout
	}
}
