// Package api wraps the backend's authentication endpoints:
// POST /auth/login and POST /auth/refresh.
//
// The package speaks plain JSON over the injected HTTP client and reports
// non-2xx responses as [*Error] values carrying the status code and the
// server-provided message when one is present.
//
// # What this package must NOT do
//
//   - Persist tokens or decide session state.
//   - Attach bearer credentials (both endpoints are unauthenticated).
//   - Retry (refresh retry policy lives above this package).
package api
