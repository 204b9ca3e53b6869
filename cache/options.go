package cache

import "time"

type options struct {
	prefix string
	ttl    time.Duration
	spread time.Duration
}

// Option adjusts a single cache call.
type Option func(*options)

// WithPrefix places the entry under prefix instead of [DefaultPrefix].
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithTTL overrides the base TTL of entries written by the call.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithSpread overrides the jitter window added to the base TTL.
func WithSpread(spread time.Duration) Option {
	return func(o *options) {
		if spread > 0 {
			o.spread = spread
		}
	}
}
