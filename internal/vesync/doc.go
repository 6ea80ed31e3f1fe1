// Package vesync implements the VeSync cloud API client.
//
// The bridge talks to the vendor cloud, never to devices directly:
// login yields an account token, the bulk device list is the source of
// truth for discovery, and device commands tunnel through the bypass
// endpoint.
//
// The client layer is deliberately thin. It performs one HTTP exchange
// per call and reports failures as errors; all retry, backoff, and
// session-recovery policy lives with the callers in the bridge package.
// Two failure shapes matter to callers:
//
//   - *APIError: the cloud answered and said no (non-zero result code)
//   - anything else: transport-level failure
//
// IsSessionExpired picks out the stale-token case from either shape so
// callers can re-login instead of backing off hard.
package vesync
