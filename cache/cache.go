package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/authcache/kv"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Event identifies an observable cache outcome.
type Event uint8

const (
	EventHit Event = iota
	EventMiss
	EventLockContended
	EventLockTimeout
	EventDegraded
)

// Producer computes the value for a missing key. A nil value with a nil
// error means "nothing to cache".
type Producer[T any] func(ctx context.Context) (*T, error)

// Config controls TTLs and the lock-wait loop.
type Config struct {
	DefaultTTL    time.Duration
	DefaultSpread time.Duration
	LockTTL       time.Duration
	LockSpread    time.Duration
	RetryDelay    time.Duration
	MaxAttempts   int
	// FillTimeout bounds one shared fill, lock wait included. Zero means
	// LockTTL plus the full lock wait.
	FillTimeout time.Duration
	// Observer receives every Event. It must not block.
	Observer func(Event)
}

// DefaultConfig returns the production tuning: 24h entries with 60s jitter,
// 10s+5s locks and a 100ms x 50 wait loop.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:    24 * time.Hour,
		DefaultSpread: DefaultSpread,
		LockTTL:       10 * time.Second,
		LockSpread:    5 * time.Second,
		RetryDelay:    100 * time.Millisecond,
		MaxAttempts:   50,
	}
}

// Cache is a look-aside cache over a kv.Store. It is safe for concurrent use.
type Cache struct {
	store  kv.Store
	cfg    Config
	logger *zap.Logger
	group  singleflight.Group
}

// New creates a Cache. Zero-valued fields in cfg take the DefaultConfig value.
func New(store kv.Store, cfg Config, logger *zap.Logger) *Cache {
	def := DefaultConfig()
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = def.DefaultTTL
	}
	if cfg.DefaultSpread <= 0 {
		cfg.DefaultSpread = def.DefaultSpread
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	if cfg.LockSpread <= 0 {
		cfg.LockSpread = def.LockSpread
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.FillTimeout <= 0 {
		cfg.FillTimeout = cfg.LockTTL + cfg.RetryDelay*time.Duration(cfg.MaxAttempts)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: store, cfg: cfg, logger: logger}
}

func (c *Cache) options(opts []Option) options {
	o := options{ttl: c.cfg.DefaultTTL, spread: c.cfg.DefaultSpread}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (c *Cache) emit(e Event) {
	if c.cfg.Observer != nil {
		c.cfg.Observer(e)
	}
}

func (c *Cache) degraded(op, key string, err error) {
	c.emit(EventDegraded)
	c.logger.Warn("cache degraded",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(fmt.Errorf("%w: %v", ErrCacheUnavailable, err)),
	)
}

// GetOrCompute returns the cached value for key or computes, stores and
// returns it. Concurrent misses on the same key, in this process or any other
// process sharing the store, invoke produce once in the common case.
//
// The shared fill is detached from any single caller: it runs under a
// context that keeps the first caller's values, drops its cancellation and is
// bounded by FillTimeout. Each caller waits only as long as its own ctx
// allows.
//
// The returned pointer is a shallow copy owned by the caller.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, produce Producer[T], opts ...Option) (*T, error) {
	o := c.options(opts)
	storeKey := Key(key, o.prefix)

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ch := c.group.DoChan(storeKey, func() (any, error) {
			fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.FillTimeout)
			defer cancel()
			return getOrCompute(fctx, c, storeKey, produce, o)
		})

		var res singleflight.Result
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res = <-ch:
		}

		if res.Err != nil {
			// A flight that ran out of its own budget is retried once for a
			// caller that still has time left.
			if attempt == 0 && res.Shared && isContextErr(res.Err) && ctx.Err() == nil {
				continue
			}
			return nil, res.Err
		}
		p, _ := res.Val.(*T)
		if p == nil {
			return nil, nil
		}
		out := *p
		return &out, nil
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func getOrCompute[T any](ctx context.Context, c *Cache, storeKey string, produce Producer[T], o options) (*T, error) {
	lockKey := Key(storeKey, LockPrefix)

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		raw, err := c.store.Get(ctx, storeKey)
		switch {
		case err == nil:
			var out T
			derr := json.Unmarshal(raw, &out)
			if derr == nil {
				c.emit(EventHit)
				return &out, nil
			}
			c.logger.Warn("cache entry undecodable, discarding",
				zap.String("key", storeKey), zap.Error(derr))
			c.drop(ctx, storeKey)
		case !errors.Is(err, kv.ErrNotFound):
			if cerr := ctx.Err(); cerr != nil {
				return nil, cerr
			}
			c.degraded("get", storeKey, err)
			return direct(ctx, produce)
		}
		if attempt == 1 {
			c.emit(EventMiss)
		}

		stamp := lockStamp()
		acquired, err := c.store.SetNX(ctx, lockKey, stamp, JitteredTTL(c.cfg.LockTTL, c.cfg.LockSpread))
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return nil, cerr
			}
			c.degraded("setnx", lockKey, err)
			return direct(ctx, produce)
		}
		if acquired {
			return fill(ctx, c, storeKey, lockKey, stamp, produce, o)
		}

		c.emit(EventLockContended)
		timer := time.NewTimer(c.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	c.emit(EventLockTimeout)
	c.logger.Warn("cache lock wait exhausted, computing directly",
		zap.String("key", storeKey),
		zap.Int("attempts", c.cfg.MaxAttempts),
		zap.Error(ErrLockTimeout),
	)
	return direct(ctx, produce)
}

// lockStamp is the creation time in milliseconds plus a random suffix that
// identifies the holder.
func lockStamp() []byte {
	return []byte(strconv.FormatInt(time.Now().UnixMilli(), 10) + ":" + uuid.NewString())
}

// fill runs while holding lockKey. The entry is read once more first: a
// previous holder may have stored it between our GET and SET NX.
func fill[T any](ctx context.Context, c *Cache, storeKey, lockKey string, stamp []byte, produce Producer[T], o options) (*T, error) {
	defer c.release(ctx, lockKey, stamp)

	if raw, err := c.store.Get(ctx, storeKey); err == nil {
		var out T
		if json.Unmarshal(raw, &out) == nil {
			c.emit(EventHit)
			return &out, nil
		}
	}

	v, err := produce(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	if v == nil {
		return nil, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("cache value unencodable, not stored",
			zap.String("key", storeKey), zap.Error(err))
		return v, nil
	}
	if err := c.store.Set(ctx, storeKey, raw, JitteredTTL(o.ttl, o.spread)); err != nil {
		c.degraded("set", storeKey, err)
	}
	return v, nil
}

// release deletes lockKey only while it still carries stamp. A holder whose
// lock expired mid-fill leaves the next holder's lock alone.
func (c *Cache) release(ctx context.Context, lockKey string, stamp []byte) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	released, err := c.store.DeleteIfEqual(dctx, lockKey, stamp)
	switch {
	case err != nil:
		c.degraded("del", lockKey, err)
	case !released:
		c.logger.Debug("cache lock expired before release", zap.String("key", lockKey))
	}
}

func direct[T any](ctx context.Context, produce Producer[T]) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := produce(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return v, nil
}

// drop deletes keys even after ctx is done.
func (c *Cache) drop(ctx context.Context, keys ...string) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if _, err := c.store.Delete(dctx, keys...); err != nil {
		c.degraded("del", keys[0], err)
	}
}

// Get decodes the entry stored under key into dst. It reports false on a miss
// and on store failures; the error is non-nil only for undecodable entries.
func (c *Cache) Get(ctx context.Context, key string, dst any, opts ...Option) (bool, error) {
	o := c.options(opts)
	storeKey := Key(key, o.prefix)
	raw, err := c.store.Get(ctx, storeKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			c.degraded("get", storeKey, err)
		}
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("cache: decode %q: %w", storeKey, err)
	}
	return true, nil
}

// Put stores value under key with a jittered TTL. Only encoding errors are
// returned.
func (c *Cache) Put(ctx context.Context, key string, value any, opts ...Option) error {
	o := c.options(opts)
	storeKey := Key(key, o.prefix)
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %q: %w", storeKey, err)
	}
	if err := c.store.Set(ctx, storeKey, raw, JitteredTTL(o.ttl, o.spread)); err != nil {
		c.degraded("set", storeKey, err)
	}
	return nil
}

// Invalidate removes the entry stored under key.
func (c *Cache) Invalidate(ctx context.Context, key string, opts ...Option) {
	o := c.options(opts)
	storeKey := Key(key, o.prefix)
	if _, err := c.store.Delete(ctx, storeKey); err != nil {
		c.degraded("del", storeKey, err)
	}
}
