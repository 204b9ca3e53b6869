package internaldefs

import (
	"strconv"
	"time"

	"github.com/MrEthical07/authcache"
)

// Series is one labelled member of a Family. Value is empty for families
// without a label.
type Series struct {
	ID    authcache.MetricID
	Value string
}

// Family groups the engine counters that share one exported name and differ
// by a single label.
type Family struct {
	Name   string
	Help   string
	Label  string
	Series []Series
}

// CounterFamilies lists every exported counter family in render order.
var CounterFamilies = []Family{
	{
		Name: "authcache_cache_lookups_total", Help: "Principal cache lookups by result.", Label: "result",
		Series: []Series{
			{authcache.MetricCacheHit, "hit"},
			{authcache.MetricCacheMiss, "miss"},
		},
	},
	{
		Name: "authcache_cache_lock_events_total", Help: "Fill lock waits by event.", Label: "event",
		Series: []Series{
			{authcache.MetricCacheLockContended, "contended"},
			{authcache.MetricCacheLockTimeout, "timeout"},
		},
	},
	{
		Name: "authcache_cache_degraded_total", Help: "Cache operations bypassed because the store failed.",
		Series: []Series{{ID: authcache.MetricCacheDegraded}},
	},
	{
		Name: "authcache_authenticate_total", Help: "Access token checks by outcome.", Label: "outcome",
		Series: []Series{
			{authcache.MetricAuthenticateSuccess, "accepted"},
			{authcache.MetricAuthenticateFailure, "rejected"},
		},
	},
	{
		Name: "authcache_denylist_hits_total", Help: "Access tokens rejected because they were logged out or rotated.",
		Series: []Series{{ID: authcache.MetricDenylistHit}},
	},
	{
		Name: "authcache_session_events_total", Help: "Session invalidation events.", Label: "event",
		Series: []Series{
			{authcache.MetricLogout, "logout"},
			{authcache.MetricRefreshSuccess, "refresh"},
			{authcache.MetricRefreshFailure, "refresh_rejected"},
		},
	},
	{
		Name: "authcache_account_events_total", Help: "Signup and login attempts by result.", Label: "event",
		Series: []Series{
			{authcache.MetricSignupSuccess, "signup"},
			{authcache.MetricSignupDuplicate, "signup_duplicate"},
			{authcache.MetricLoginSuccess, "login"},
			{authcache.MetricLoginFailure, "login_rejected"},
		},
	},
	{
		Name: "authcache_password_reset_total", Help: "Password reset requests and completions.", Label: "stage",
		Series: []Series{
			{authcache.MetricPasswordResetRequest, "requested"},
			{authcache.MetricPasswordResetSuccess, "completed"},
			{authcache.MetricPasswordResetFailure, "rejected"},
		},
	},
	{
		Name: "authcache_otp_verifications_total", Help: "One-time code checks by outcome.", Label: "outcome",
		Series: []Series{
			{authcache.MetricOTPSuccess, "accepted"},
			{authcache.MetricOTPFailure, "rejected"},
			{authcache.MetricOTPReplay, "replayed"},
		},
	},
}

// Ratio is a gauge derived from counters: the sum of Numerator over the sum
// of Denominator.
type Ratio struct {
	Name        string
	Help        string
	Numerator   []authcache.MetricID
	Denominator []authcache.MetricID
}

// Ratios lists the derived gauges.
var Ratios = []Ratio{
	{
		Name:        "authcache_cache_hit_ratio",
		Help:        "Share of principal lookups served from the cache.",
		Numerator:   []authcache.MetricID{authcache.MetricCacheHit},
		Denominator: []authcache.MetricID{authcache.MetricCacheHit, authcache.MetricCacheMiss},
	},
	{
		Name:        "authcache_cache_lock_contention_ratio",
		Help:        "Lock waits per cache miss. Values above 1 mean callers retried.",
		Numerator:   []authcache.MetricID{authcache.MetricCacheLockContended},
		Denominator: []authcache.MetricID{authcache.MetricCacheMiss},
	},
	{
		Name:        "authcache_authenticate_rejection_ratio",
		Help:        "Share of access token checks that were rejected.",
		Numerator:   []authcache.MetricID{authcache.MetricAuthenticateFailure},
		Denominator: []authcache.MetricID{authcache.MetricAuthenticateSuccess, authcache.MetricAuthenticateFailure},
	},
}

// Value computes the ratio over counters. ok is false while the denominator
// is zero.
func (r Ratio) Value(counters map[authcache.MetricID]uint64) (v float64, ok bool) {
	var num, den uint64
	for _, id := range r.Numerator {
		num += counters[id]
	}
	for _, id := range r.Denominator {
		den += counters[id]
	}
	if den == 0 {
		return 0, false
	}
	return float64(num) / float64(den), true
}

// LatencyHistogram is the exported authenticate latency family.
var LatencyHistogram = Family{
	Name:  "authcache_authenticate_latency_seconds",
	Help:  "Authenticate latency by outcome.",
	Label: "outcome",
	Series: []Series{
		{authcache.MetricAuthenticateLatencyAccepted, "accepted"},
		{authcache.MetricAuthenticateLatencyRejected, "rejected"},
	},
}

// BucketBounds are the upper bounds of the engine's latency buckets. The last
// bucket is unbounded.
var BucketBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const bucketCount = len(BucketBounds) + 1

// BucketLabel spells bucket i as a Prometheus le value.
func BucketLabel(i int) string {
	if i >= len(BucketBounds) {
		return "+Inf"
	}
	return strconv.FormatFloat(BucketBounds[i].Seconds(), 'g', -1, 64)
}

// CumulativeBuckets pads or truncates raw per-bucket counts to the bucket
// count and returns running totals. The last element is the sample count.
func CumulativeBuckets(raw []uint64) [bucketCount]uint64 {
	var out [bucketCount]uint64
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
