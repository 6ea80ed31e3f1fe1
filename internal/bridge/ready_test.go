package bridge

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGateOpensOnMarkReady(t *testing.T) {
	g := NewGate()
	if g.IsReady() {
		t.Fatal("new gate reports ready")
	}

	done := make(chan error, 1)
	go func() {
		done <- g.AwaitReady(context.Background())
	}()

	g.MarkReady()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("AwaitReady() = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("AwaitReady did not return after MarkReady")
	}

	if !g.IsReady() {
		t.Error("IsReady() = false after MarkReady")
	}
	if g.Forced() {
		t.Error("Forced() = true for an earned MarkReady")
	}
}

func TestGateTimeoutForcesReady(t *testing.T) {
	g := NewGate()
	g.timeout = 50 * time.Millisecond

	err := g.AwaitReady(context.Background())
	if !errors.Is(err, ErrReadyTimeout) {
		t.Fatalf("AwaitReady() = %v, want ErrReadyTimeout", err)
	}

	if !g.IsReady() {
		t.Error("gate not forced open after timeout")
	}
	if !g.Forced() {
		t.Error("Forced() = false after timeout")
	}

	// Later awaiters see an open gate, not the timeout error.
	if err := g.AwaitReady(context.Background()); err != nil {
		t.Errorf("second AwaitReady() = %v, want nil", err)
	}
}

func TestGateAwaitAfterReady(t *testing.T) {
	g := NewGate()
	g.MarkReady()

	start := time.Now()
	if err := g.AwaitReady(context.Background()); err != nil {
		t.Errorf("AwaitReady() = %v, want nil", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("AwaitReady on open gate took %v", elapsed)
	}
}

func TestGateAwaitCancelled(t *testing.T) {
	g := NewGate()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := g.AwaitReady(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("AwaitReady(cancelled) = %v, want context.Canceled", err)
	}
	if g.Forced() {
		t.Error("cancellation must not force the gate")
	}
}

func TestGateMarkReadyIdempotent(t *testing.T) {
	g := NewGate()
	g.MarkReady()
	g.MarkReady() // must not panic on double close
	if !g.IsReady() {
		t.Error("IsReady() = false")
	}
}
