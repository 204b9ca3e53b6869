package cache

import (
	"math/rand/v2"
	"time"
)

// DefaultSpread is the jitter window used when a caller passes spread <= 0.
const DefaultSpread = 60 * time.Second

// JitteredTTL returns base plus a uniformly distributed offset in [0, spread).
// Offsets are whole seconds when spread is at least one second. Entries
// populated at the same moment therefore expire at different moments.
func JitteredTTL(base, spread time.Duration) time.Duration {
	if spread <= 0 {
		spread = DefaultSpread
	}
	if secs := int64(spread / time.Second); secs > 0 {
		return base + time.Duration(rand.Int64N(secs))*time.Second
	}
	return base + time.Duration(rand.Int64N(int64(spread)))
}
