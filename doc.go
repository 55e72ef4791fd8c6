// Package goSession manages the token lifecycle of one backend session: it
// stores the access and refresh token pair, keeps requests authenticated, and
// recovers from expiry through a shared single-flight refresh.
//
// The package is designed for concurrent client workloads. Controller methods
// are safe to call from multiple goroutines after construction through
// [Builder.Build], and any number of requests may share the controller's
// [AuthenticatedClient].
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Controller], [Builder],
// [Config], [AuthenticatedClient], and value types (Session, Credentials,
// MetricsSnapshot). Endpoint wiring, refresh coordination, and event dispatch
// live under internal/ and are never exported. Token storage backends live in
// the store sub-package so callers can inject their own.
//
// # What this package must NOT do
//
//   - Verify token signatures. Tokens are decoded structurally for claims
//     and expiry only; the backend is the sole authority on validity.
//   - Issue more than one concurrent refresh call per controller.
//   - Replay a request more than once after a 401.
//
// # Recovery contract
//
// A 401 on an authenticated request triggers at most one refresh and one
// replay. Refresh failure clears stored credentials and ends the session;
// every waiter on the in-flight refresh observes the same outcome.
package goSession
