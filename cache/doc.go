// Package cache implements the look-aside cache that shields the relational
// store: a stampede-resistant cache-or-compute primitive ([GetOrCompute]) plus
// plain get/put/invalidate helpers, all over a [kv.Store].
//
// # Stampede protection
//
// Two layers coalesce concurrent misses on one key. Inside a process a
// singleflight group admits one caller per store key. Across processes the
// first caller to win SET NX on the derived lock key runs the producer; losers
// poll the cache every RetryDelay for at most MaxAttempts rounds and then run
// the producer themselves.
//
// # Failure policy
//
// The cache is an optimisation. Store failures are logged and never returned:
// a failed GET, SET NX or SET makes the call bypass the cache and invoke the
// producer directly. Only producer failures (wrapped in [ErrSourceUnavailable])
// and context cancellation reach the caller. Empty producer results are never
// cached.
//
// # What this package must NOT do
//
//   - Know about principals, tokens or any other domain type.
//   - Retry producers. A producer is invoked at most once per call.
package cache
