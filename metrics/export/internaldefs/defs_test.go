package internaldefs

import (
	"strings"
	"testing"

	"github.com/MrEthical07/authcache"
)

func TestCounterFamiliesCoverEveryCounter(t *testing.T) {
	seen := map[authcache.MetricID]bool{}
	names := map[string]bool{}
	for _, f := range CounterFamilies {
		if names[f.Name] {
			t.Fatalf("duplicate family %s", f.Name)
		}
		names[f.Name] = true
		if !strings.HasPrefix(f.Name, "authcache_") || !strings.HasSuffix(f.Name, "_total") {
			t.Fatalf("bad counter name %s", f.Name)
		}
		if (f.Label == "") != (len(f.Series) == 1 && f.Series[0].Value == "") {
			t.Fatalf("%s: label and series values disagree", f.Name)
		}
		values := map[string]bool{}
		for _, s := range f.Series {
			if seen[s.ID] {
				t.Fatalf("metric %d exported twice", s.ID)
			}
			if values[s.Value] {
				t.Fatalf("%s: duplicate label value %q", f.Name, s.Value)
			}
			seen[s.ID] = true
			values[s.Value] = true
		}
	}

	m := authcache.NewMetrics(authcache.MetricsConfig{Enabled: true})
	for id := range m.Snapshot().Counters {
		if !seen[id] {
			t.Fatalf("counter %d has no exported family", id)
		}
	}
}

func TestLatencyHistogramCoversEveryHistogram(t *testing.T) {
	m := authcache.NewMetrics(authcache.MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	exported := map[authcache.MetricID]bool{}
	for _, s := range LatencyHistogram.Series {
		exported[s.ID] = true
	}
	for id, buckets := range m.Snapshot().Histograms {
		if !exported[id] {
			t.Fatalf("histogram %d is not exported", id)
		}
		if len(buckets) != bucketCount {
			t.Fatalf("histogram %d has %d buckets, bounds describe %d", id, len(buckets), bucketCount)
		}
	}
}

func TestRatioValue(t *testing.T) {
	hit := Ratios[0]
	if _, ok := hit.Value(map[authcache.MetricID]uint64{}); ok {
		t.Fatal("expected no value while nothing was looked up")
	}
	v, ok := hit.Value(map[authcache.MetricID]uint64{
		authcache.MetricCacheHit:  3,
		authcache.MetricCacheMiss: 1,
	})
	if !ok || v != 0.75 {
		t.Fatalf("hit ratio = %v, %v", v, ok)
	}
}

func TestBucketHelpers(t *testing.T) {
	c := CumulativeBuckets([]uint64{1, 2, 3})
	if c[0] != 1 || c[2] != 6 || c[bucketCount-1] != 6 {
		t.Fatalf("CumulativeBuckets = %v", c)
	}
	for i, want := range []string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"} {
		if got := BucketLabel(i); got != want {
			t.Fatalf("BucketLabel(%d) = %q, want %q", i, got, want)
		}
	}
}
