package authcache

import (
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authcache/cache"
)

// MetricID names one engine counter.
type MetricID uint16

const (
	MetricCacheHit MetricID = iota
	MetricCacheMiss
	MetricCacheLockContended
	MetricCacheLockTimeout
	MetricCacheDegraded
	MetricAuthenticateSuccess
	MetricAuthenticateFailure
	MetricDenylistHit
	MetricLogout
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricSignupSuccess
	MetricSignupDuplicate
	MetricLoginSuccess
	MetricLoginFailure
	MetricPasswordResetRequest
	MetricPasswordResetSuccess
	MetricPasswordResetFailure
	MetricOTPSuccess
	MetricOTPFailure
	MetricOTPReplay
	// Histograms start here. Authenticate latency is split by outcome so a
	// slow rejection path (denylist or source outage) is visible on its own.
	MetricAuthenticateLatencyAccepted
	MetricAuthenticateLatencyRejected
	metricIDCount
)

const firstHistogramID = MetricAuthenticateLatencyAccepted

func isHistogram(id MetricID) bool {
	return id >= firstHistogramID && id < metricIDCount
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets  [histBucketCount]uint64
	sumNanos uint64
}

// One counter per cache line; the cache counters are hit from every request.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters. A nil or disabled Metrics ignores updates.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters. Histograms hold
// per-bucket (non-cumulative) counts; HistogramSums the total observed time.
type MetricsSnapshot struct {
	Counters      map[MetricID]uint64
	Histograms    map[MetricID][]uint64
	HistogramSums map[MetricID]time.Duration
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= firstHistogramID {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the latency histogram of id. Counter ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || !isHistogram(id) {
		return
	}
	if d < 0 {
		d = 0
	}
	h := &m.histograms[id]
	atomic.AddUint64(&h.buckets[bucketIndex(d)], 1)
	atomic.AddUint64(&h.sumNanos, uint64(d))
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:      map[MetricID]uint64{},
		Histograms:    map[MetricID][]uint64{},
		HistogramSums: map[MetricID]time.Duration{},
	}
	if m == nil || !m.enabled {
		return s
	}

	for id := MetricID(0); id < firstHistogramID; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	if m.enableLatency {
		for id := firstHistogramID; id < metricIDCount; id++ {
			h := &m.histograms[id]
			buckets := make([]uint64, histBucketCount)
			for i := range buckets {
				buckets[i] = atomic.LoadUint64(&h.buckets[i])
			}
			s.Histograms[id] = buckets
			s.HistogramSums[id] = time.Duration(atomic.LoadUint64(&h.sumNanos))
		}
	}
	return s
}

// observeCache maps cache events onto counters.
func (m *Metrics) observeCache(e cache.Event) {
	switch e {
	case cache.EventHit:
		m.Inc(MetricCacheHit)
	case cache.EventMiss:
		m.Inc(MetricCacheMiss)
	case cache.EventLockContended:
		m.Inc(MetricCacheLockContended)
	case cache.EventLockTimeout:
		m.Inc(MetricCacheLockTimeout)
	case cache.EventDegraded:
		m.Inc(MetricCacheDegraded)
	}
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
