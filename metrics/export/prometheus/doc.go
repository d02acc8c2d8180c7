// Package prometheus provides Prometheus collectors for routegate metrics.
//
// [NewPrometheusExporter] accepts a [routegate.Engine] and exposes an [http.Handler]
// that renders all routegate counters and histograms in Prometheus text exposition
// format. Counter names are prefixed routegate_*_total; the single histogram is
// routegate_authorize_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
