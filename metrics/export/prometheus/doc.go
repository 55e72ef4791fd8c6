// Package prometheus renders goSession metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] accepts a [goSession.Controller] and exposes an
// [net/http.Handler] that renders all counters and histograms. Counter names
// are prefixed gosession_*_total; the single histogram is
// gosession_refresh_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the
//     Handler.
//   - Mutate controller state.
package prometheus
