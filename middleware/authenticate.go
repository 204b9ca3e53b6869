package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcache"
	"go.uber.org/zap"
)

// RefreshTokenHeader names the header carrying the refresh token.
const RefreshTokenHeader = "refresh_token"

// Authenticator resolves an access token to a principal. *authcache.Engine
// implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*authcache.Principal, error)
}

type options struct {
	logger *zap.Logger
}

// Option configures Authenticate.
type Option func(*options)

// WithLogger logs rejected requests that failed on a dependency.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Authenticate admits requests whose access token resolves to a principal,
// attaching it to the request context (see authcache.PrincipalFromContext).
// Rejected requests get a JSON error envelope and never reach next.
func Authenticate(a Authenticator, opts ...Option) func(http.Handler) http.Handler {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil {
				WriteError(w, authcache.ErrEngineNotReady)
				return
			}

			p, err := a.Authenticate(r.Context(), AccessToken(r))
			if err != nil {
				if status, _ := StatusFor(err); status >= http.StatusInternalServerError {
					o.logger.Warn("authentication unavailable",
						zap.String("path", r.URL.Path), zap.Error(err))
				}
				WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(authcache.WithPrincipal(r.Context(), p)))
		})
	}
}

// AccessToken extracts the access token from the Authorization header.
// Both "Bearer <token>" and a bare token are accepted.
func AccessToken(r *http.Request) string {
	value := strings.TrimSpace(r.Header.Get("Authorization"))
	const bearer = "bearer "
	if len(value) >= len(bearer) && strings.EqualFold(value[:len(bearer)], bearer) {
		return strings.TrimSpace(value[len(bearer):])
	}
	return value
}

// RefreshToken extracts the refresh token from the refresh_token header.
func RefreshToken(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(RefreshTokenHeader))
}
