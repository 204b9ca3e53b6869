package authcache

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

func (e *Engine) requirePrincipal(ctx context.Context, id int64) (*Principal, error) {
	p, err := e.principal(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrUserNotFound
	}
	return p, nil
}

// GenerateOTPSecret enrols user id in one-time codes, replacing any previous
// secret. It returns the base32 secret and its provisioning URI.
func (e *Engine) GenerateOTPSecret(ctx context.Context, id int64) (string, string, error) {
	if e == nil {
		return "", "", ErrEngineNotReady
	}
	p, err := e.requirePrincipal(ctx, id)
	if err != nil {
		return "", "", err
	}
	enrollment, err := e.totp.Enroll(p.Email)
	if err != nil {
		return "", "", err
	}
	if err := e.users.SetOTPSecret(ctx, id, enrollment.Secret); err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	e.InvalidateUser(ctx, id)
	return enrollment.Secret, enrollment.URI, nil
}

// OTPProvisionURI returns the provisioning URI of an enrolled user.
func (e *Engine) OTPProvisionURI(ctx context.Context, id int64) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	p, err := e.requirePrincipal(ctx, id)
	if err != nil {
		return "", err
	}
	if p.OTPSecret == "" {
		return "", ErrOTPNotConfigured
	}
	uri, err := e.totp.ProvisionURI(p.OTPSecret, p.Email)
	if err != nil {
		e.logger.Error("stored otp secret unusable", zap.Int64("user_id", id), zap.Error(err))
		return "", ErrOTPNotConfigured
	}
	return uri, nil
}

// VerifyOTP checks code for user id. A code accepted once is rejected with
// ErrOTPReplay for as long as it would otherwise stay valid.
func (e *Engine) VerifyOTP(ctx context.Context, id int64, code string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	code = strings.TrimSpace(code)
	p, err := e.requirePrincipal(ctx, id)
	if err != nil {
		return err
	}
	if p.OTPSecret == "" {
		return ErrOTPNotConfigured
	}

	ok, err := e.totp.Verify(p.OTPSecret, code, e.now())
	if err != nil {
		e.logger.Error("stored otp secret unusable", zap.Int64("user_id", id), zap.Error(err))
		return ErrOTPNotConfigured
	}
	if !ok {
		e.metrics.Inc(MetricOTPFailure)
		return ErrOTPInvalid
	}

	claimed, err := e.sessions.ClaimOTP(ctx, id, code, e.totp.Window())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !claimed {
		e.metrics.Inc(MetricOTPReplay)
		return ErrOTPReplay
	}
	e.metrics.Inc(MetricOTPSuccess)
	return nil
}
