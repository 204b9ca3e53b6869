package main

import (
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	cases := map[int]time.Duration{0: 1, 50: 5, 99: 9, 100: 10}
	for p, want := range cases {
		if got := percentile(samples, p); got != want {
			t.Errorf("percentile(%d) = %d, want %d", p, got, want)
		}
	}
	if percentile(nil, 50) != 0 {
		t.Fatal("empty samples must yield 0")
	}
}

func TestComputeStats(t *testing.T) {
	s := computeStats(time.Second, []time.Duration{3, 1, 2}, 1)
	if s.ops != 3 || s.failures != 1 || s.p50 != 2 || s.opsPerS != 3 {
		t.Fatalf("stats = %+v", s)
	}
	if empty := computeStats(time.Second, nil, 0); empty.ops != 0 {
		t.Fatalf("empty stats = %+v", empty)
	}
}
