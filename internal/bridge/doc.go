// Package bridge implements the discovery, session, and
// synchronization controller — the stateful heart of the bridge.
//
// One discovery cycle runs: session validation, bulk snapshot fetch,
// accessory reconciliation, per-device state sync — always in that
// order, never overlapping (cycles are single-flight; a poll tick that
// fires mid-cycle is dropped). The first cycle releases a one-shot
// readiness gate that host-command handling awaits, with a timeout
// fallback so no caller blocks forever.
//
// The failure philosophy is retry-forever: cloud outages are routine,
// so login, fetch, and per-device sync all back off exponentially (to
// a shared ceiling) and keep trying until they succeed or the process
// shuts down. A failure that looks like session expiry is treated as
// cheap to repair — the login backoff clamps short and a re-login is
// attempted promptly. The only terminal error is construction without
// credentials.
package bridge
