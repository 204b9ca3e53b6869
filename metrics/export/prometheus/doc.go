// Package prometheus renders authcache metrics in the Prometheus text
// exposition format.
//
// Related counters share one family and differ by a label, for example
// authcache_cache_lookups_total{result="hit"}. Hit, contention and rejection
// ratios are rendered as gauges once their denominator is non-zero. The
// authcache_authenticate_latency_seconds histogram is split by outcome.
//
// # What this package must NOT do
//
//   - Register metrics in a global registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
