package retry

import (
	"context"
	"time"
)

// Op is a single retryable operation.
//
// Returning nil stops the retry loop. Any error schedules another
// attempt after the policy's backoff delay.
type Op func(ctx context.Context) error

// Revalidate runs between a failed attempt and the next one, after the
// backoff delay has elapsed. It is used to restore preconditions the
// failure may have invalidated (typically: re-establishing a session).
// A revalidation error counts as a failed attempt and extends the
// backoff like any other failure.
type Revalidate func(ctx context.Context, cause error) error

// sleep is swappable in tests to verify backoff sequences without
// real waiting.
var sleep = sleepCtx

// Do runs op until it succeeds or ctx is cancelled.
//
// After each failure Do waits the policy delay for the current attempt
// number, runs revalidate (if non-nil), then retries. There is no
// attempt limit: transient upstream failures are expected to clear
// eventually, and callers bound the loop with the context.
//
// Parameters:
//   - ctx: Cancels the loop; Do returns ctx.Err() once cancelled
//   - policy: Backoff schedule applied between attempts
//   - revalidate: Optional precondition repair, may be nil
//   - op: The operation to run
//
// Returns:
//   - error: nil on success, ctx.Err() on cancellation
func Do(ctx context.Context, policy Policy, revalidate Revalidate, op Op) error {
	attempt := 0
	backoff := func() error {
		err := sleep(ctx, policy.Delay(attempt))
		attempt++
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		if berr := backoff(); berr != nil {
			return berr
		}

		if revalidate == nil {
			continue
		}

		// The operation does not run again until preconditions hold.
		for {
			rerr := revalidate(ctx, err)
			if rerr == nil {
				break
			}
			if berr := backoff(); berr != nil {
				return berr
			}
		}
	}
}

// sleepCtx blocks for d or until ctx is cancelled, whichever is first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
