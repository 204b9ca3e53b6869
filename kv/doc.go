// Package kv defines the key/value store contract shared by the cache,
// the session store and the OTP replay guard, plus its Redis implementation.
//
// # Architecture boundaries
//
// kv owns connectivity and error normalisation only. Key layout belongs to the
// callers (cache, session); serialisation is always raw bytes here.
//
// # What this package must NOT do
//
//   - Encode or decode values.
//   - Retry failed commands; degradation policy is decided by callers.
//   - Hold module-level client singletons. Clients are constructed and injected.
package kv
