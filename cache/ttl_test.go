package cache

import (
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	cases := []struct {
		entity, prefix, want string
	}{
		{"users:7", "", "cache:users:7"},
		{"7", "users", "users:7"},
		{"k", LockPrefix, "lock:k"},
	}
	for _, tc := range cases {
		if got := Key(tc.entity, tc.prefix); got != tc.want {
			t.Fatalf("Key(%q, %q) = %q, want %q", tc.entity, tc.prefix, got, tc.want)
		}
	}
}

func TestJitteredTTLBounds(t *testing.T) {
	base, spread := 60*time.Second, 10*time.Second
	seen := map[time.Duration]bool{}
	for i := 0; i < 1000; i++ {
		got := JitteredTTL(base, spread)
		if got < base || got >= base+spread {
			t.Fatalf("JitteredTTL out of range: %v", got)
		}
		if got%time.Second != 0 {
			t.Fatalf("expected whole seconds, got %v", got)
		}
		seen[got] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected jitter to vary, saw %d distinct values", len(seen))
	}
}

func TestJitteredTTLDefaultSpread(t *testing.T) {
	for i := 0; i < 200; i++ {
		got := JitteredTTL(time.Hour, 0)
		if got < time.Hour || got >= time.Hour+DefaultSpread {
			t.Fatalf("JitteredTTL with default spread out of range: %v", got)
		}
	}
}

func TestJitteredTTLSubSecondSpread(t *testing.T) {
	for i := 0; i < 200; i++ {
		got := JitteredTTL(time.Second, 500*time.Millisecond)
		if got < time.Second || got >= 1500*time.Millisecond {
			t.Fatalf("JitteredTTL sub-second spread out of range: %v", got)
		}
	}
}
