package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/marktheknife/vesync-bridge/internal/device"
	"github.com/marktheknife/vesync-bridge/internal/retry"
	"github.com/marktheknife/vesync-bridge/internal/vesync"
)

// Per-operation backoff bases. Both share the bridge-wide ceiling.
const (
	// fetchBackoffBase paces bulk snapshot retries.
	fetchBackoffBase = 10 * time.Second

	// syncBackoffBase paces per-device sync retries. Shorter than the
	// fetch base: a single device failing is usually transient device
	// flakiness, not an outage.
	syncBackoffBase = 5 * time.Second
)

// syncAll drives state sync for every handler from this cycle's
// reconciliation.
//
// Each device gets an independent retry loop running in its own
// goroutine: one device stuck in backoff never blocks progress on its
// siblings. The call returns when every device has synced or the
// context is cancelled.
func (c *Controller) syncAll(ctx context.Context, handlers []device.Handler) {
	policy := retry.Policy{Base: syncBackoffBase, Ceiling: backoffCeiling}

	var wg sync.WaitGroup
	for _, h := range handlers {
		wg.Add(1)
		go func(h device.Handler) {
			defer wg.Done()

			err := retry.Do(ctx, policy, c.revalidateSession, func(ctx context.Context) error {
				serr := h.SyncState(ctx)
				if serr != nil {
					c.metrics.observeSyncFailure()
					c.logger.Warn("device sync failed, will retry",
						"uuid", h.UUID(), "error", serr)
				}
				return serr
			})
			if err != nil {
				// Only cancellation escapes the retry loop.
				c.logger.Debug("device sync abandoned", "uuid", h.UUID(), "error", err)
			}
		}(h)
	}
	wg.Wait()
}

// revalidateSession repairs the session between retry attempts. A
// failure that looks like session expiry clamps the login backoff
// short; anything else just confirms the session is still valid (a
// no-op when it is).
func (c *Controller) revalidateSession(ctx context.Context, cause error) error {
	if vesync.IsSessionExpired(cause) {
		c.session.NoteExpired()
	}
	return c.session.EnsureLogin(ctx, false)
}

// fetchSnapshot retries the bulk device fetch until it succeeds,
// re-validating the session between attempts since a fetch failure may
// itself mean the session expired.
func (c *Controller) fetchSnapshot(ctx context.Context) (*vesync.Snapshot, error) {
	policy := retry.Policy{Base: fetchBackoffBase, Ceiling: backoffCeiling}

	var snap *vesync.Snapshot
	err := retry.Do(ctx, policy, c.revalidateSession, func(ctx context.Context) error {
		var ferr error
		snap, ferr = c.api.Update(ctx)
		if ferr != nil {
			c.logger.Warn("device snapshot fetch failed, will retry", "error", ferr)
		}
		return ferr
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}
