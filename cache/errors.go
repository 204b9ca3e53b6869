package cache

import "errors"

var (
	// ErrCacheUnavailable marks a store failure observed by the cache. It is
	// logged and never returned by the cache-or-compute path.
	ErrCacheUnavailable = errors.New("cache: store unavailable")
	// ErrLockTimeout marks a caller that waited MaxAttempts rounds for another
	// holder's fill. The caller then computes directly.
	ErrLockTimeout = errors.New("cache: lock wait exhausted")
	// ErrSourceUnavailable wraps producer failures.
	ErrSourceUnavailable = errors.New("cache: source unavailable")
)
