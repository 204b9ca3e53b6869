package authcache

import (
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcache/cache"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %v", snap.Counters)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricCacheHit)
			}
		}()
	}
	wg.Wait()

	if got, want := m.Value(MetricCacheHit), uint64(goroutines*perG); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	var total time.Duration
	for _, d := range []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	} {
		m.Observe(MetricAuthenticateLatencyAccepted, d)
		total += d
	}
	// Counters carry no histogram.
	m.Observe(MetricLogout, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricAuthenticateLatencyAccepted]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
	if got := snap.HistogramSums[MetricAuthenticateLatencyAccepted]; got != total {
		t.Fatalf("expected sum %v, got %v", total, got)
	}
	if _, ok := snap.Counters[MetricAuthenticateLatencyAccepted]; ok {
		t.Fatal("histogram ids must not appear among counters")
	}
}

func TestMetricsLatencyOutcomesAreSeparate(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricAuthenticateLatencyAccepted, 2*time.Millisecond)
	m.Observe(MetricAuthenticateLatencyRejected, 300*time.Millisecond)
	m.Observe(MetricAuthenticateLatencyRejected, 400*time.Millisecond)

	snap := m.Snapshot()
	if got := snap.Histograms[MetricAuthenticateLatencyAccepted][0]; got != 1 {
		t.Fatalf("accepted fast bucket = %d", got)
	}
	if got := snap.Histograms[MetricAuthenticateLatencyRejected][6]; got != 2 {
		t.Fatalf("rejected <=500ms bucket = %d", got)
	}
	if got := snap.HistogramSums[MetricAuthenticateLatencyRejected]; got != 700*time.Millisecond {
		t.Fatalf("rejected sum = %v", got)
	}
}

func TestMetricsIncIgnoresHistogramIDs(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Inc(MetricAuthenticateLatencyRejected)
	if got := m.Snapshot().Histograms[MetricAuthenticateLatencyRejected]; got[0] != 0 {
		t.Fatalf("Inc must not touch histograms, got %v", got)
	}
}

func TestMetricsObserveCache(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	for _, e := range []cache.Event{cache.EventHit, cache.EventHit, cache.EventMiss, cache.EventLockContended, cache.EventLockTimeout, cache.EventDegraded} {
		m.observeCache(e)
	}
	want := map[MetricID]uint64{
		MetricCacheHit:           2,
		MetricCacheMiss:          1,
		MetricCacheLockContended: 1,
		MetricCacheLockTimeout:   1,
		MetricCacheDegraded:      1,
	}
	for id, v := range want {
		if got := m.Value(id); got != v {
			t.Fatalf("metric %d: expected %d, got %d", id, v, got)
		}
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLogout)
	m.Observe(MetricAuthenticateLatencyAccepted, time.Second)
	if m.Enabled() || m.Value(MetricLogout) != 0 {
		t.Fatal("nil metrics must be inert")
	}
}
