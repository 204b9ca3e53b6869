package authcache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authcache/cache"
	"github.com/MrEthical07/authcache/jwt"
	"github.com/MrEthical07/authcache/kv"
	"github.com/MrEthical07/authcache/otp"
	"github.com/MrEthical07/authcache/password"
	"github.com/MrEthical07/authcache/session"
	"go.uber.org/zap"
)

// Engine is the authentication and session layer. It is safe for concurrent
// use after Build.
type Engine struct {
	config   Config
	store    kv.Store
	sessions *session.Store
	cache    *cache.Cache
	codec    *jwt.Codec
	hasher   *password.Hasher
	totp     *otp.TOTP
	users    UserSource
	metrics  *Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func principalKey(id int64) string {
	return "users:" + strconv.FormatInt(id, 10)
}

// Cache exposes the look-aside cache for callers caching their own
// entities alongside principals.
func (e *Engine) Cache() *cache.Cache {
	return e.cache
}

// Metrics returns the engine counters.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// MetricsSnapshot implements the exporters' snapshot source.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.Metrics().Snapshot()
}

// Ping round-trips the key-value store and reports the latency.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	start := time.Now()
	err := e.store.Ping(ctx)
	return time.Since(start), err
}

// principal resolves id through the cache. A missing user yields (nil, nil).
func (e *Engine) principal(ctx context.Context, id int64) (*Principal, error) {
	p, err := cache.GetOrCompute(ctx, e.cache, principalKey(id), func(ctx context.Context) (*Principal, error) {
		e.logger.Debug("resolving principal from source", zap.Int64("user_id", id))
		return e.users.FindUser(ctx, LookupByID(id))
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Authenticate resolves the principal behind accessToken. Errors are
// ErrMissingToken, ErrTokenExpired, ErrInvalidToken, ErrSourceUnavailable or
// a context error once AuthTimeout elapses.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	p, err := e.authenticate(ctx, accessToken)
	if err != nil {
		e.metrics.Observe(MetricAuthenticateLatencyRejected, time.Since(start))
		e.metrics.Inc(MetricAuthenticateFailure)
		return nil, err
	}
	e.metrics.Observe(MetricAuthenticateLatencyAccepted, time.Since(start))
	e.metrics.Inc(MetricAuthenticateSuccess)
	return p, nil
}

func (e *Engine) authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, ErrMissingToken
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.AuthTimeout)
	defer cancel()

	claims, err := e.codec.VerifyAccess(accessToken)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	denied, err := e.sessions.IsDenied(ctx, accessToken)
	switch {
	case err != nil:
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		e.logger.Warn("denylist lookup failed, treating token as live",
			zap.Int64("user_id", claims.UID), zap.Error(err))
	case denied:
		e.metrics.Inc(MetricDenylistHit)
		return nil, ErrInvalidToken
	}

	p, err := e.principal(ctx, claims.UID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrInvalidToken
	}
	return p, nil
}

// Logout closes the session behind accessToken: the refresh record is
// deleted and the access token is denylisted for the nominal access
// lifetime. Expired access tokens are accepted.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) (Ack, error) {
	if e == nil {
		return Ack{}, ErrEngineNotReady
	}
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return Ack{}, ErrMissingToken
	}
	claims, err := e.codec.ParseAccessAllowExpired(accessToken)
	if err != nil {
		return Ack{}, ErrInvalidToken
	}

	if refreshToken = strings.TrimSpace(refreshToken); refreshToken != "" {
		if err := e.sessions.DeleteRefresh(ctx, refreshToken); err != nil {
			return Ack{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	if err := e.sessions.Deny(ctx, accessToken, e.codec.TTL(jwt.KindAccess)); err != nil {
		return Ack{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metrics.Inc(MetricLogout)
	e.logger.Info("logout", zap.Int64("user_id", claims.UID))
	return Ack{Message: "Logged out."}, nil
}

// Refresh rotates refreshToken into a new token pair. Once its record is
// consumed the old refresh token is dead, even if issuing the new pair fails.
// When accessToken belongs to the same subject it is denylisted.
func (e *Engine) Refresh(ctx context.Context, refreshToken, accessToken string) (TokenPair, error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	pair, err := e.refresh(ctx, strings.TrimSpace(refreshToken), strings.TrimSpace(accessToken))
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		return TokenPair{}, err
	}
	e.metrics.Inc(MetricRefreshSuccess)
	return pair, nil
}

func (e *Engine) refresh(ctx context.Context, refreshToken, accessToken string) (TokenPair, error) {
	if refreshToken == "" {
		return TokenPair{}, ErrInvalidRefreshToken
	}
	claims, err := e.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	uid, err := e.sessions.ConsumeRefresh(ctx, refreshToken)
	switch {
	case errors.Is(err, session.ErrRefreshNotFound), errors.Is(err, session.ErrRefreshCorrupt):
		return TokenPair{}, ErrInvalidRefreshToken
	case err != nil:
		return TokenPair{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if uid != claims.UID {
		e.logger.Warn("refresh record subject mismatch",
			zap.Int64("claim_user_id", claims.UID), zap.Int64("record_user_id", uid))
		return TokenPair{}, ErrInvalidRefreshToken
	}

	pair, err := e.issuePair(ctx, uid)
	if err != nil {
		return TokenPair{}, err
	}

	if accessToken != "" {
		ac, err := e.codec.ParseAccessAllowExpired(accessToken)
		switch {
		case err != nil || ac.UID != uid:
			e.logger.Debug("refresh: ignoring foreign access token", zap.Int64("user_id", uid))
		default:
			if err := e.sessions.Deny(ctx, accessToken, e.codec.TTL(jwt.KindAccess)); err != nil {
				e.logger.Warn("refresh: access token not denylisted", zap.Int64("user_id", uid), zap.Error(err))
			}
		}
	}
	return pair, nil
}

// issuePair signs a fresh pair for uid and records the refresh token.
func (e *Engine) issuePair(ctx context.Context, uid int64) (TokenPair, error) {
	access, err := e.codec.SignAccess(uid)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := e.codec.SignRefresh(uid)
	if err != nil {
		return TokenPair{}, err
	}
	if err := e.sessions.SaveRefresh(ctx, refresh, uid, e.codec.TTL(jwt.KindRefresh)); err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
