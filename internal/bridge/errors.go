package bridge

import "errors"

// Sentinel errors for bridge operations.
var (
	// ErrReadyTimeout indicates AwaitReady gave up waiting for the first
	// discovery cycle. The gate is forced open so callers are never
	// blocked forever, but the caller is told readiness was not earned.
	ErrReadyTimeout = errors.New("bridge: initialization timed out")

	// ErrCycleInFlight indicates a discovery cycle was requested while a
	// previous one is still running. The request is dropped, not queued.
	ErrCycleInFlight = errors.New("bridge: discovery cycle already in flight")

	// ErrMissingCredentials indicates the controller was constructed
	// without account credentials. This is the one terminal failure:
	// nothing can be retried into existence without them.
	ErrMissingCredentials = errors.New("bridge: missing credentials")
)
