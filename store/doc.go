// Package store persists the access/refresh token pair in a chosen durability
// scope and is the session layer's sole storage touchpoint.
//
// A store manages two scopes: durable (survives process end) and ephemeral
// (lost with the process). The scope is fixed at login and a pair is always
// written and replaced as a unit; the two scopes are never merged
// field-by-field.
//
// Three implementations ship with the package: [MemoryStore] for tests and
// ephemeral-only use, [FileStore] for a durable scope on disk, and
// [RedisStore] for a durable scope shared by several processes with
// cross-process clear propagation over pub/sub.
//
// # Architecture boundaries
//
// This package owns token persistence and the clear-notification fan-out. It
// does NOT interpret token contents, refresh tokens, or decide session state.
//
// # What this package must NOT do
//
//   - Decode tokens or inspect expiry (that belongs to jwt).
//   - Issue HTTP calls.
//   - Import goSession or internal packages (no upward imports).
package store
