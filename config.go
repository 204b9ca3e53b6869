package authcache

import (
	"errors"
	"time"

	"github.com/MrEthical07/authcache/jwt"
	"github.com/MrEthical07/authcache/otp"
	"github.com/MrEthical07/authcache/password"
)

// Config holds every tunable of the Engine.
//
// Config is copied into the Engine at Build time; later mutation of the
// caller's value has no effect.
type Config struct {
	JWT      JWTConfig
	Cache    CacheConfig
	Session  SessionConfig
	Password password.Config
	TOTP     otp.Config
	Metrics  MetricsConfig

	// AuthTimeout bounds Authenticate end to end. A request whose
	// dependencies do not resolve in time is rejected.
	AuthTimeout time.Duration
}

// JWTConfig configures the token codec. Access, refresh and reset tokens are
// signed with distinct keys.
type JWTConfig struct {
	SigningMethod jwt.SigningMethod
	AccessKey     jwt.KeyPair
	RefreshKey    jwt.KeyPair
	ResetKey      jwt.KeyPair
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ResetTTL      time.Duration
	Issuer        string
	Leeway        time.Duration
}

// CacheConfig tunes the principal cache and its fill lock.
type CacheConfig struct {
	PrincipalTTL time.Duration
	Spread       time.Duration
	LockTTL      time.Duration
	LockSpread   time.Duration
	RetryDelay   time.Duration
	MaxAttempts  int
}

// SessionConfig namespaces the session keys.
type SessionConfig struct {
	KeyPrefix string
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: jwt.MethodHS256,
			AccessTTL:     5 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			ResetTTL:      5 * time.Minute,
			Issuer:        "authcache",
		},
		Cache: CacheConfig{
			PrincipalTTL: 24 * time.Hour,
			Spread:       60 * time.Second,
			LockTTL:      10 * time.Second,
			LockSpread:   5 * time.Second,
			RetryDelay:   100 * time.Millisecond,
			MaxAttempts:  50,
		},
		Password:    password.DefaultConfig(),
		TOTP:        otp.DefaultConfig(),
		AuthTimeout: 3 * time.Second,
	}
}

// DefaultConfig returns the production defaults. Signing keys are left empty
// and must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneKeyPair(kp jwt.KeyPair) jwt.KeyPair {
	return jwt.KeyPair{Private: cloneBytes(kp.Private), Public: cloneBytes(kp.Public)}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessKey = cloneKeyPair(cfg.JWT.AccessKey)
	out.JWT.RefreshKey = cloneKeyPair(cfg.JWT.RefreshKey)
	out.JWT.ResetKey = cloneKeyPair(cfg.JWT.ResetKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 || c.JWT.ResetTTL <= 0 {
		return errors.New("JWT token TTLs must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must exceed AccessTTL")
	}
	if c.JWT.SigningMethod != jwt.MethodHS256 && c.JWT.SigningMethod != jwt.MethodEd25519 {
		return errors.New("unsupported JWT signing method")
	}
	if len(c.JWT.AccessKey.Private) == 0 && len(c.JWT.AccessKey.Public) == 0 {
		return errors.New("JWT AccessKey is required")
	}
	if len(c.JWT.RefreshKey.Private) == 0 && len(c.JWT.RefreshKey.Public) == 0 {
		return errors.New("JWT RefreshKey is required")
	}
	if len(c.JWT.ResetKey.Private) == 0 && len(c.JWT.ResetKey.Public) == 0 {
		return errors.New("JWT ResetKey is required")
	}
	if c.JWT.SigningMethod == jwt.MethodHS256 &&
		(string(c.JWT.AccessKey.Private) == string(c.JWT.RefreshKey.Private) ||
			string(c.JWT.AccessKey.Private) == string(c.JWT.ResetKey.Private) ||
			string(c.JWT.RefreshKey.Private) == string(c.JWT.ResetKey.Private)) {
		return errors.New("JWT secrets must be distinct per token kind")
	}

	// Cache
	if c.Cache.PrincipalTTL <= 0 {
		return errors.New("Cache PrincipalTTL must be > 0")
	}
	if c.Cache.Spread < 0 || c.Cache.LockSpread < 0 {
		return errors.New("Cache spreads must be >= 0")
	}
	if c.Cache.LockTTL <= 0 {
		return errors.New("Cache LockTTL must be > 0")
	}
	if c.Cache.RetryDelay <= 0 || c.Cache.MaxAttempts <= 0 {
		return errors.New("Cache RetryDelay and MaxAttempts must be > 0")
	}
	if wait := c.Cache.RetryDelay * time.Duration(c.Cache.MaxAttempts); wait > time.Minute {
		return errors.New("Cache lock wait (RetryDelay x MaxAttempts) must be <= 1m")
	}

	if c.AuthTimeout <= 0 {
		return errors.New("AuthTimeout must be > 0")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}
	return nil
}
