package authcache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/authcache/password"
	"go.uber.org/zap"
)

// AuthResult is returned by Signup and Login.
type AuthResult struct {
	User PrincipalView `json:"user"`
	TokenPair
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (e *Engine) hashPassword(plain string) (password.Digest, error) {
	d, err := e.hasher.Hash(plain)
	if err != nil {
		if errors.Is(err, password.ErrTooShort) || errors.Is(err, password.ErrTooLong) {
			return password.Digest{}, fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
		}
		return password.Digest{}, err
	}
	return d, nil
}

func (e *Engine) findByEmail(ctx context.Context, email string) (*Principal, error) {
	p, err := e.users.FindUser(ctx, LookupByEmail(email))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return p, nil
}

// remember primes the principal cache after a write or a direct lookup.
func (e *Engine) remember(ctx context.Context, p *Principal) {
	if err := e.cache.Put(ctx, principalKey(p.ID), p); err != nil {
		e.logger.Warn("principal not cached", zap.Int64("user_id", p.ID), zap.Error(err))
	}
}

// Signup creates an account and opens its first session.
func (e *Engine) Signup(ctx context.Context, in SignupInput) (AuthResult, error) {
	if e == nil {
		return AuthResult{}, ErrEngineNotReady
	}
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return AuthResult{}, ErrInvalidSignup
	}
	if !strings.Contains(email, "@") {
		return AuthResult{}, fmt.Errorf("%w: malformed email", ErrInvalidSignup)
	}

	existing, err := e.findByEmail(ctx, email)
	if err != nil {
		return AuthResult{}, err
	}
	if existing != nil {
		e.metrics.Inc(MetricSignupDuplicate)
		return AuthResult{}, ErrAccountExists
	}

	digest, err := e.hashPassword(in.Password)
	if err != nil {
		return AuthResult{}, err
	}

	p, err := e.users.CreateUser(ctx, NewUser{
		Name:         name,
		Email:        email,
		PasswordHash: digest.Hash,
		PasswordSalt: digest.Salt,
	})
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metrics.Inc(MetricSignupDuplicate)
			return AuthResult{}, ErrAccountExists
		}
		return AuthResult{}, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	e.remember(ctx, p)

	pair, err := e.issuePair(ctx, p.ID)
	if err != nil {
		return AuthResult{}, err
	}
	e.metrics.Inc(MetricSignupSuccess)
	e.logger.Info("signup", zap.Int64("user_id", p.ID))
	return AuthResult{User: p.View(), TokenPair: pair}, nil
}

// Login checks email and plainPassword and opens a session. Digests made
// with weaker parameters are upgraded in place.
func (e *Engine) Login(ctx context.Context, email, plainPassword string) (AuthResult, error) {
	if e == nil {
		return AuthResult{}, ErrEngineNotReady
	}
	p, err := e.findByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return AuthResult{}, err
	}
	if p == nil {
		e.metrics.Inc(MetricLoginFailure)
		return AuthResult{}, ErrInvalidCredentials
	}

	digest := password.Digest{Hash: p.PasswordHash, Salt: p.PasswordSalt}
	ok, err := e.hasher.Verify(plainPassword, digest)
	if err != nil && !errors.Is(err, password.ErrTooLong) {
		e.logger.Error("stored password digest unusable", zap.Int64("user_id", p.ID), zap.Error(err))
	}
	if err != nil || !ok {
		e.metrics.Inc(MetricLoginFailure)
		return AuthResult{}, ErrInvalidCredentials
	}

	if stale, _ := e.hasher.NeedsRehash(digest); stale {
		e.upgradeDigest(ctx, p, plainPassword)
	}
	e.remember(ctx, p)

	pair, err := e.issuePair(ctx, p.ID)
	if err != nil {
		return AuthResult{}, err
	}
	e.metrics.Inc(MetricLoginSuccess)
	return AuthResult{User: p.View(), TokenPair: pair}, nil
}

func (e *Engine) upgradeDigest(ctx context.Context, p *Principal, plain string) {
	d, err := e.hasher.Hash(plain)
	if err == nil {
		err = e.users.UpdatePassword(ctx, p.ID, d.Hash, d.Salt)
	}
	if err != nil {
		e.logger.Warn("password digest upgrade failed", zap.Int64("user_id", p.ID), zap.Error(err))
		return
	}
	p.PasswordHash, p.PasswordSalt = d.Hash, d.Salt
}

// User returns the principal with id, served from the cache when possible.
func (e *Engine) User(ctx context.Context, id int64) (*Principal, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	p, err := e.principal(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrUserNotFound
	}
	return p, nil
}

// InvalidateUser drops the cached principal for id. Call it after any
// mutation of the user outside the Engine.
func (e *Engine) InvalidateUser(ctx context.Context, id int64) {
	if e == nil {
		return
	}
	e.cache.Invalidate(ctx, principalKey(id))
}

// ListUsers pages through users straight from the source.
func (e *Engine) ListUsers(ctx context.Context, opts ListOptions) ([]PrincipalView, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	users, err := e.users.ListUsers(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	out := make([]PrincipalView, 0, len(users))
	for i := range users {
		out = append(out, users[i].View())
	}
	return out, nil
}
