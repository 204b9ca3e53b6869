package authcache

import (
	"errors"

	"github.com/MrEthical07/authcache/cache"
)

var (
	// ErrMissingToken is returned when a request carries no access token.
	ErrMissingToken = errors.New("missing token")
	// ErrTokenExpired is returned for an access token past its expiry. Clients
	// are expected to refresh.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidToken covers bad signatures, malformed tokens, denylisted
	// tokens and tokens whose subject no longer exists.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidRefreshToken is returned when a refresh token fails
	// verification, has no live record or names a different subject.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrSourceUnavailable is returned when the user source fails. It aliases
	// the cache sentinel so both match with errors.Is.
	ErrSourceUnavailable = cache.ErrSourceUnavailable
	// ErrStoreUnavailable is returned when a write the caller depends on, such
	// as a denylist entry, could not be stored.
	ErrStoreUnavailable = errors.New("session store unavailable")

	// ErrInvalidCredentials is returned by Login for an unknown email or a
	// wrong password. The two cases are indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists is returned by Signup for a taken email.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidSignup is returned for incomplete signup input.
	ErrInvalidSignup = errors.New("invalid signup request")
	// ErrPasswordPolicy is returned for passwords outside the accepted length
	// bounds.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordResetInvalid is returned for reset tokens that fail
	// verification or are no longer the live reset token of their subject.
	ErrPasswordResetInvalid = errors.New("password reset token invalid")
	ErrOTPInvalid           = errors.New("invalid otp code")
	ErrOTPReplay            = errors.New("otp code already used")
	ErrOTPNotConfigured     = errors.New("otp not configured")
	// ErrUserNotFound is returned by User for an unknown id.
	ErrUserNotFound = errors.New("user not found")
	// ErrEngineNotReady is returned by methods called on a nil Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
