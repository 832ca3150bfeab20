// Package otel publishes engine metrics as OpenTelemetry observable instruments.
//
// Related counters share one instrument and differ by attribute, for example
// authcore.logins{outcome=locked}. Each latency histogram is one gauge with
// an le attribute holding cumulative counts. A single callback reads
// [authcore.Engine.MetricsSnapshot] once per collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
