package authcache

import (
	"testing"
	"time"

	"github.com/MrEthical07/authcache/kv"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected test config to be valid: %v", err)
	}

	cases := map[string]func(*Config){
		"missing access key": func(c *Config) { c.JWT.AccessKey.Private = nil },
		"shared secrets":     func(c *Config) { c.JWT.RefreshKey.Private = c.JWT.AccessKey.Private },
		"refresh <= access":  func(c *Config) { c.JWT.RefreshTTL = c.JWT.AccessTTL },
		"bad method":         func(c *Config) { c.JWT.SigningMethod = "rs512" },
		"zero principal ttl": func(c *Config) { c.Cache.PrincipalTTL = 0 },
		"zero attempts":      func(c *Config) { c.Cache.MaxAttempts = 0 },
		"unbounded wait":     func(c *Config) { c.Cache.RetryDelay = time.Second; c.Cache.MaxAttempts = 1000 },
		"zero auth timeout":  func(c *Config) { c.AuthTimeout = 0 },
		"histograms only":    func(c *Config) { c.Metrics.Enabled = false; c.Metrics.EnableLatencyHistograms = true },
	}
	for name, mutate := range cases {
		cfg := testConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestConfigIsCopiedAtBuild(t *testing.T) {
	cfg := testConfig()
	b := New().WithConfig(cfg)
	cfg.JWT.AccessKey.Private[0] = 'X'
	if b.config.JWT.AccessKey.Private[0] == 'X' {
		t.Fatal("expected WithConfig to copy key material")
	}
}

func TestBuildRequiresDependencies(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	store := kv.NewRedisStore(rdb, nil)

	if _, err := New().WithConfig(testConfig()).WithUserSource(newMemUsers()).Build(); err == nil {
		t.Fatal("expected missing store to fail")
	}
	if _, err := New().WithConfig(testConfig()).WithStore(store).Build(); err == nil {
		t.Fatal("expected missing user source to fail")
	}

	b := New().WithConfig(testConfig()).WithStore(store).WithUserSource(newMemUsers())
	if _, err := b.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected builder reuse to fail")
	}
}

func TestListOptionsImmutable(t *testing.T) {
	base := DefaultListOptions()
	next := base.WithPage(3).WithPageSize(500).WithOrderBy("password_hash")
	if base.Page() != 1 || base.PageSize() != 20 {
		t.Fatalf("base options mutated: %+v", base)
	}
	if next.Page() != 3 || next.PageSize() != 100 || next.OrderBy() != "id" {
		t.Fatalf("unexpected derived options: page=%d size=%d order=%s", next.Page(), next.PageSize(), next.OrderBy())
	}
	if next.Offset() != 200 {
		t.Fatalf("unexpected offset %d", next.Offset())
	}
}

func TestLookupVariants(t *testing.T) {
	if id, ok := LookupByID(7).ID(); !ok || id != 7 {
		t.Fatal("LookupByID")
	}
	if _, ok := LookupByID(7).Email(); ok {
		t.Fatal("id lookup must not report an email")
	}
	if email, ok := LookupByEmail("a@b").Email(); !ok || email != "a@b" {
		t.Fatal("LookupByEmail")
	}
	if (Lookup{}).String() != "invalid" {
		t.Fatal("zero Lookup must be invalid")
	}
}
