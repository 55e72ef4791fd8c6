// Package refresh collapses concurrent refresh demand into a single call.
//
// Many requests can fail authorization at once; every one of them wants a new
// access token, and the backend must see exactly one POST /auth/refresh per
// wave. The [Coordinator] owns the refreshing flag and the waiter queue, and
// is the single entry point to both: no other component reads or mutates that
// state.
//
// # Ordering
//
// Waiters settle in arrival order, after the leader. Arrival means the order
// in which callers invoked Refresh, not the order their original requests
// were sent.
//
// # What this package must NOT do
//
//   - Perform the refresh itself (the injected func owns token I/O).
//   - Retry: exactly one attempt is made per triggering wave.
//   - Import goSession, jwt, or store (no upward imports).
package refresh
