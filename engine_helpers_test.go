package authcache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/authcache/kv"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// memUsers is an in-memory UserSource that counts lookups.
type memUsers struct {
	mu     sync.Mutex
	byID   map[int64]Principal
	nextID int64
	err    error

	finds atomic.Int32
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[int64]Principal{}}
}

func (m *memUsers) fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *memUsers) FindUser(_ context.Context, l Lookup) (*Principal, error) {
	m.finds.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if id, ok := l.ID(); ok {
		p, found := m.byID[id]
		if !found {
			return nil, nil
		}
		return &p, nil
	}
	if email, ok := l.Email(); ok {
		for _, p := range m.byID {
			if p.Email == email {
				return &p, nil
			}
		}
	}
	return nil, nil
}

func (m *memUsers) CreateUser(_ context.Context, u NewUser) (*Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.byID {
		if p.Email == u.Email {
			return nil, ErrAccountExists
		}
	}
	m.nextID++
	now := time.Unix(1_700_000_000, 0).UTC()
	p := Principal{
		ID:           m.nextID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		PasswordSalt: u.PasswordSalt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.byID[p.ID] = p
	return &p, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id int64, hash, salt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.byID[id]
	p.PasswordHash, p.PasswordSalt = hash, salt
	m.byID[id] = p
	return m.err
}

func (m *memUsers) SetOTPSecret(_ context.Context, id int64, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.byID[id]
	p.OTPSecret = secret
	m.byID[id] = p
	return m.err
}

func (m *memUsers) ListUsers(_ context.Context, opts ListOptions) ([]Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]Principal, 0, len(m.byID))
	for _, p := range m.byID {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	start := opts.Offset()
	if start >= len(all) {
		return nil, nil
	}
	end := start + opts.PageSize()
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessKey.Private = []byte("access-secret-for-tests")
	cfg.JWT.RefreshKey.Private = []byte("refresh-secret-for-tests")
	cfg.JWT.ResetKey.Private = []byte("reset-secret-for-tests")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Cache.RetryDelay = 5 * time.Millisecond
	cfg.Metrics.Enabled = true
	return cfg
}

type engineFixture struct {
	engine *Engine
	users  *memUsers
	mr     *miniredis.Miniredis
	clock  *testClock
}

func newEngineFixture(t testing.TB, logger *zap.Logger) *engineFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	users := newMemUsers()
	clock := &testClock{now: time.Now()}
	engine, err := New().
		WithConfig(testConfig()).
		WithStore(kv.NewRedisStore(rdb, nil)).
		WithUserSource(users).
		WithLogger(logger).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	return &engineFixture{engine: engine, users: users, mr: mr, clock: clock}
}

// signup registers a user and returns the first session.
func (f *engineFixture) signup(t testing.TB, email, password string) AuthResult {
	t.Helper()
	res, err := f.engine.Signup(context.Background(), SignupInput{Name: "Test User", Email: email, Password: password})
	if err != nil {
		t.Fatalf("signup %s: %v", email, err)
	}
	return res
}
