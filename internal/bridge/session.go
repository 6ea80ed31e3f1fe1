package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/marktheknife/vesync-bridge/internal/vesync"
)

// Login backoff tuning.
const (
	// loginBackoffBase is the first retry delay after a failed login.
	loginBackoffBase = 10 * time.Second

	// backoffCeiling caps every backoff in the bridge.
	backoffCeiling = 300 * time.Second

	// expiredBackoff is the clamped delay used when a failure indicates
	// a stale session rather than a real outage. Re-login is cheap and
	// likely to succeed, so waiting longer only adds latency.
	expiredBackoff = 5 * time.Second
)

// loginAPI is the slice of the cloud client the session manager uses.
type loginAPI interface {
	Login(ctx context.Context) error
}

// Logger defines the logging interface used by bridge components.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Session owns login state and inter-attempt pacing for the cloud
// account.
//
// EnsureLogin never gives up: it retries with exponential backoff for
// the life of the process, on the principle that cloud outages are
// temporary and the bridge's job is to be there when they end. Only
// context cancellation stops the loop.
//
// Thread Safety:
//   - EnsureLogin serialises callers; concurrent callers block until
//     the in-flight login resolves and then observe its result.
type Session struct {
	api     loginAPI
	logger  Logger
	metrics *Metrics

	mu          sync.Mutex
	loggedIn    bool
	lastAttempt time.Time
	backoff     time.Duration

	// now and sleep are swappable in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSession creates a session manager for the given cloud client.
func NewSession(api loginAPI, logger Logger) *Session {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Session{
		api:     api,
		logger:  logger,
		backoff: loginBackoffBase,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// LoggedIn reports whether the last login attempt succeeded.
func (s *Session) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn
}

// NoteExpired records that a data operation failed with a stale-session
// error. The session is marked invalid and the next login attempt is
// clamped to the short expired backoff instead of whatever the current
// schedule had grown to.
func (s *Session) NoteExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedIn = false
	if s.backoff > expiredBackoff {
		s.backoff = expiredBackoff
	}
}

// EnsureLogin guarantees a valid session before returning.
//
// If the session is already valid and force is false, it returns
// immediately. Otherwise it loops: honor the inter-attempt spacing,
// attempt login, and on failure grow the backoff — doubled and capped
// for rejections and transport errors, clamped short for stale-session
// errors. On success the backoff resets to its base.
//
// Parameters:
//   - ctx: Cancels the retry loop; the only way this returns non-nil
//   - force: Re-login even if the session looks valid
//
// Returns:
//   - error: nil once logged in, ctx.Err() on cancellation
func (s *Session) EnsureLogin(ctx context.Context, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loggedIn && !force {
		return nil
	}
	s.loggedIn = false

	// Honor spacing from a previous attempt, possibly made during an
	// earlier call. Keeps rapid EnsureLogin callers from hammering the
	// login endpoint.
	if !s.lastAttempt.IsZero() {
		if wait := s.backoff - s.now().Sub(s.lastAttempt); wait > 0 {
			if err := s.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.lastAttempt = s.now()
		err := s.api.Login(ctx)
		s.metrics.observeLogin(err == nil)
		if err == nil {
			s.loggedIn = true
			s.backoff = loginBackoffBase
			s.logger.Info("logged in to cloud")
			return nil
		}

		if vesync.IsSessionExpired(err) {
			// Stale token, not an outage: retry on the short clamp.
			s.backoff = expiredBackoff
			s.logger.Warn("login found stale session, retrying shortly", "error", err)
			if serr := s.sleep(ctx, s.backoff); serr != nil {
				return serr
			}
			continue
		}

		s.logger.Warn("login failed, backing off",
			"error", err, "backoff", s.backoff)
		if serr := s.sleep(ctx, s.backoff); serr != nil {
			return serr
		}

		s.backoff *= 2
		if s.backoff > backoffCeiling {
			s.backoff = backoffCeiling
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
