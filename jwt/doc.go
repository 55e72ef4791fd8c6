// Package jwt implements structural decoding of access tokens into client-side
// claims and determines token expiry.
//
// Decoding is unverified: the client never holds the server's signing key, and
// the decoded claims drive routing and display only. The trust boundary stays
// on the server, which re-validates every request.
//
// # Architecture boundaries
//
// This package owns the [Claims] model and the [Codec]. It does NOT touch
// storage, issue network calls, or decide session state. Those
// responsibilities belong to the store and the Controller.
//
// # What this package must NOT do
//
//   - Verify signatures or pretend to (no key material enters this package).
//   - Import goSession, store, or internal packages (no upward imports).
//   - Cache or persist decoded claims.
package jwt
