package authcache

import (
	"errors"
	"time"

	"github.com/MrEthical07/authcache/cache"
	"github.com/MrEthical07/authcache/jwt"
	"github.com/MrEthical07/authcache/kv"
	"github.com/MrEthical07/authcache/otp"
	"github.com/MrEthical07/authcache/password"
	"github.com/MrEthical07/authcache/session"
	"go.uber.org/zap"
)

// Builder assembles an Engine. A Builder can be used for one Build only.
type Builder struct {
	config Config
	store  kv.Store
	users  UserSource
	logger *zap.Logger
	now    func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the key-value store shared by the cache and the session
// state. It is required.
func (b *Builder) WithStore(store kv.Store) *Builder {
	b.store = store
	return b
}

// WithUserSource sets the relational source behind the principal cache. It
// is required.
func (b *Builder) WithUserSource(users UserSource) *Builder {
	b.users = users
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock replaces time.Now for token issuance, token validation and OTP
// checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.store == nil {
		return nil, errors.New("kv store required")
	}
	if b.users == nil {
		return nil, errors.New("user source required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	codec, err := jwt.NewCodec(jwt.Config{
		SigningMethod: cfg.JWT.SigningMethod,
		Access:        cfg.JWT.AccessKey,
		Refresh:       cfg.JWT.RefreshKey,
		Reset:         cfg.JWT.ResetKey,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		ResetTTL:      cfg.JWT.ResetTTL,
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		return nil, err
	}

	totp, err := otp.New(cfg.TOTP)
	if err != nil {
		return nil, err
	}

	metrics := NewMetrics(cfg.Metrics)

	engine := &Engine{
		config:   cfg,
		store:    b.store,
		sessions: session.NewStore(b.store, cfg.Session.KeyPrefix),
		codec:    codec,
		hasher:   hasher,
		totp:     totp,
		users:    b.users,
		metrics:  metrics,
		logger:   logger,
		now:      now,
	}
	engine.cache = cache.New(b.store, cache.Config{
		DefaultTTL:    cfg.Cache.PrincipalTTL,
		DefaultSpread: cfg.Cache.Spread,
		LockTTL:       cfg.Cache.LockTTL,
		LockSpread:    cfg.Cache.LockSpread,
		RetryDelay:    cfg.Cache.RetryDelay,
		MaxAttempts:   cfg.Cache.MaxAttempts,
		Observer:      metrics.observeCache,
	}, logger.Named("cache"))

	b.built = true

	return engine, nil
}
