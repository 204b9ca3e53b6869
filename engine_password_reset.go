package authcache

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcache/jwt"
	"github.com/MrEthical07/authcache/session"
	"go.uber.org/zap"
)

// RequestPasswordReset issues a reset token for the account behind email and
// makes it the account's only live reset token. Delivering the token is the
// caller's job.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	p, err := e.findByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", ErrUserNotFound
	}

	token, err := e.codec.SignReset(p.ID)
	if err != nil {
		return "", err
	}
	if err := e.sessions.SetResetPointer(ctx, p.ID, token, e.codec.TTL(jwt.KindReset)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.metrics.Inc(MetricPasswordResetRequest)
	return token, nil
}

// ResetPassword replaces the password of the subject of token. The token must
// be a live reset token; it is spent on success.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) (Ack, error) {
	if e == nil {
		return Ack{}, ErrEngineNotReady
	}
	ack, err := e.resetPassword(ctx, token, newPassword)
	if err != nil {
		e.metrics.Inc(MetricPasswordResetFailure)
		return Ack{}, err
	}
	e.metrics.Inc(MetricPasswordResetSuccess)
	return ack, nil
}

func (e *Engine) resetPassword(ctx context.Context, token, newPassword string) (Ack, error) {
	claims, err := e.codec.VerifyReset(token)
	if err != nil || claims == nil {
		return Ack{}, ErrPasswordResetInvalid
	}

	live, err := e.sessions.ResetPointer(ctx, claims.UID)
	switch {
	case errors.Is(err, session.ErrResetNotFound):
		return Ack{}, ErrPasswordResetInvalid
	case err != nil:
		return Ack{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if subtle.ConstantTimeCompare([]byte(live), []byte(token)) != 1 {
		return Ack{}, ErrPasswordResetInvalid
	}

	p, err := e.principal(ctx, claims.UID)
	if err != nil {
		return Ack{}, err
	}
	if p == nil {
		return Ack{}, ErrPasswordResetInvalid
	}

	digest, err := e.hashPassword(newPassword)
	if err != nil {
		return Ack{}, err
	}
	if err := e.users.UpdatePassword(ctx, p.ID, digest.Hash, digest.Salt); err != nil {
		return Ack{}, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	if err := e.sessions.DeleteResetPointer(ctx, p.ID); err != nil {
		e.logger.Warn("reset pointer not cleared", zap.Int64("user_id", p.ID), zap.Error(err))
	}
	e.InvalidateUser(ctx, p.ID)
	e.logger.Info("password reset", zap.Int64("user_id", p.ID))
	return Ack{Message: "Password reset successful."}, nil
}
