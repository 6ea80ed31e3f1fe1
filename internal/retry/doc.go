// Package retry implements the bridge's retry-forever loop with
// exponential backoff.
//
// Cloud outages are routine and self-healing, so failed operations are
// never abandoned: they back off exponentially up to a ceiling and keep
// trying until they succeed or their context is cancelled. Callers that
// need a bound impose one through the context.
//
// Policy captures the schedule (base delay, doubling, ceiling); Do runs
// an operation under a policy with an optional revalidation hook for
// repairing preconditions such as an expired session.
package retry
