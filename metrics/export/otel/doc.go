// Package otel publishes authcache metrics through an OpenTelemetry Meter.
//
// [NewExporter] registers one Int64ObservableCounter per counter family,
// with the family label carried as an attribute, and a Float64ObservableGauge
// per derived ratio. Authenticate latency is reported as gauges named
// *_bucket, *_count and *_sum, keyed by outcome (and le for buckets).
// A single callback reads one snapshot per collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
