// Command authcache-loadtest drives Authenticate and Refresh concurrently
// against a real Redis (or an embedded miniredis) and reports latency
// percentiles together with how often the user source was actually read.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authcache"
	"github.com/MrEthical07/authcache/kv"
	"github.com/MrEthical07/authcache/userdb"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type userState struct {
	id   int64
	pair authcache.TokenPair
	mu   sync.Mutex
}

// countingSource counts reads that reach the user source.
type countingSource struct {
	*userdb.Memory
	finds atomic.Int64
}

func (c *countingSource) FindUser(ctx context.Context, lookup authcache.Lookup) (*authcache.Principal, error) {
	c.finds.Add(1)
	return c.Memory.FindUser(ctx, lookup)
}

func main() {
	var (
		users       = flag.Int("users", 1000, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (authenticate, refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt", "session key prefix")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := authcache.DefaultConfig()
	cfg.JWT.AccessKey.Private = []byte("loadtest-access-secret-0123456789")
	cfg.JWT.RefreshKey.Private = []byte("loadtest-refresh-secret-012345678")
	cfg.JWT.ResetKey.Private = []byte("loadtest-reset-secret-0123456789a")
	cfg.Session.KeyPrefix = *prefix
	// Seeding hashes every password; keep argon2 cheap here.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	source := &countingSource{Memory: userdb.NewMemory()}
	engine, err := authcache.New().
		WithConfig(cfg).
		WithStore(kv.NewRedisStore(client, nil)).
		WithUserSource(source).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}

	states := make([]userState, *users)
	fmt.Printf("seeding %d users...\n", *users)
	startSeed := time.Now()
	for i := 0; i < *users; i++ {
		res, err := engine.Signup(ctx, authcache.SignupInput{
			Name:     fmt.Sprintf("user %d", i),
			Email:    fmt.Sprintf("user-%d@loadtest.invalid", i),
			Password: "loadtest-password",
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "signup failed: %v\n", err)
			os.Exit(1)
		}
		states[i] = userState{id: res.User.ID, pair: res.TokenPair}
		// Start cold so the first phase exercises the fill lock.
		engine.InvalidateUser(ctx, res.User.ID)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))
	source.finds.Store(0)

	authStats := runAuthenticatePhase(ctx, engine, states, *ops, *concurrency)
	authFinds := source.finds.Load()
	refreshStats := runRefreshPhase(ctx, engine, states, *ops, *concurrency)

	snap := engine.MetricsSnapshot()
	fmt.Println("---- results ----")
	printStats("authenticate", authStats)
	printStats("refresh", refreshStats)
	fmt.Printf("source reads during authenticate: %d (users=%d)\n", authFinds, *users)
	fmt.Printf("cache: hit=%d miss=%d contended=%d lock_timeout=%d degraded=%d\n",
		snap.Counters[authcache.MetricCacheHit],
		snap.Counters[authcache.MetricCacheMiss],
		snap.Counters[authcache.MetricCacheLockContended],
		snap.Counters[authcache.MetricCacheLockTimeout],
		snap.Counters[authcache.MetricCacheDegraded],
	)
}

func runAuthenticatePhase(ctx context.Context, engine *authcache.Engine, states []userState, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.IntN(len(states))]
				state.mu.Lock()
				token := state.pair.AccessToken
				state.mu.Unlock()

				t0 := time.Now()
				_, err := engine.Authenticate(ctx, token)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func runRefreshPhase(ctx context.Context, engine *authcache.Engine, states []userState, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.IntN(len(states))]

				state.mu.Lock()
				t0 := time.Now()
				next, err := engine.Refresh(ctx, state.pair.RefreshToken, state.pair.AccessToken)
				d := time.Since(t0)
				if err == nil {
					state.pair = next
				} else {
					atomic.AddInt64(&failures, 1)
				}
				state.mu.Unlock()

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
