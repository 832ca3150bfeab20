// Package prometheus exposes engine metrics through client_golang.
//
// [Exporter] implements prometheus.Collector over [authcore.Engine] snapshots
// and is registered in its own registry. Counters are named authcore_*_total;
// login and authorize latency are histograms in seconds.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry. Callers mount [Exporter.Handler]
//     or gather [Exporter.Registry] themselves.
//   - Mutate engine state.
package prometheus
