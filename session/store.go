package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/authcache/kv"
)

// DeniedValue marks a denylisted access token.
const DeniedValue = "invalidated"

var (
	// ErrRedisUnavailable wraps any store failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrRefreshNotFound is returned when no live record exists for a refresh token.
	ErrRefreshNotFound = errors.New("refresh record not found")
	// ErrRefreshCorrupt is returned when a refresh record does not hold a subject id.
	ErrRefreshCorrupt = errors.New("refresh record corrupt")
	// ErrResetNotFound is returned when a subject has no live reset pointer.
	ErrResetNotFound = errors.New("reset pointer not found")
)

// Store persists session state in a kv.Store.
type Store struct {
	kv     kv.Store
	prefix string
}

// NewStore creates a Store. An empty prefix leaves keys un-namespaced.
func NewStore(store kv.Store, prefix string) *Store {
	return &Store{kv: store, prefix: prefix}
}

func (s *Store) key(kind, id string) string {
	if s.prefix == "" {
		return kind + ":" + id
	}
	return s.prefix + ":" + kind + ":" + id
}

func (s *Store) refreshKey(token string) string { return s.key("refresh", token) }
func (s *Store) denyKey(token string) string    { return s.key("deny", token) }
func (s *Store) resetKey(uid int64) string      { return s.key("reset", strconv.FormatInt(uid, 10)) }
func (s *Store) otpKey(uid int64, code string) string {
	return s.key("otp:used", strconv.FormatInt(uid, 10)+":"+code)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}

// SaveRefresh records refreshToken as live for uid.
func (s *Store) SaveRefresh(ctx context.Context, refreshToken string, uid int64, ttl time.Duration) error {
	if err := s.kv.Set(ctx, s.refreshKey(refreshToken), []byte(strconv.FormatInt(uid, 10)), ttl); err != nil {
		return unavailable(err)
	}
	return nil
}

// ConsumeRefresh atomically reads and deletes the record for refreshToken.
// Of two concurrent consumers at most one observes the subject.
func (s *Store) ConsumeRefresh(ctx context.Context, refreshToken string) (int64, error) {
	raw, err := s.kv.GetDel(ctx, s.refreshKey(refreshToken))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return 0, ErrRefreshNotFound
		}
		return 0, unavailable(err)
	}
	uid, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, ErrRefreshCorrupt
	}
	return uid, nil
}

// DeleteRefresh removes the record for refreshToken. Deleting a missing
// record is not an error.
func (s *Store) DeleteRefresh(ctx context.Context, refreshToken string) error {
	if _, err := s.kv.Delete(ctx, s.refreshKey(refreshToken)); err != nil {
		return unavailable(err)
	}
	return nil
}

// Deny denylists accessToken for ttl.
func (s *Store) Deny(ctx context.Context, accessToken string, ttl time.Duration) error {
	if err := s.kv.Set(ctx, s.denyKey(accessToken), []byte(DeniedValue), ttl); err != nil {
		return unavailable(err)
	}
	return nil
}

// IsDenied reports whether accessToken is denylisted.
func (s *Store) IsDenied(ctx context.Context, accessToken string) (bool, error) {
	raw, err := s.kv.Get(ctx, s.denyKey(accessToken))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return false, nil
		}
		return false, unavailable(err)
	}
	return string(raw) == DeniedValue, nil
}

// SetResetPointer makes token the only live reset token for uid.
func (s *Store) SetResetPointer(ctx context.Context, uid int64, token string, ttl time.Duration) error {
	if err := s.kv.Set(ctx, s.resetKey(uid), []byte(token), ttl); err != nil {
		return unavailable(err)
	}
	return nil
}

// ResetPointer returns the live reset token for uid.
func (s *Store) ResetPointer(ctx context.Context, uid int64) (string, error) {
	raw, err := s.kv.Get(ctx, s.resetKey(uid))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", ErrResetNotFound
		}
		return "", unavailable(err)
	}
	return string(raw), nil
}

// DeleteResetPointer removes the reset pointer for uid.
func (s *Store) DeleteResetPointer(ctx context.Context, uid int64) error {
	if _, err := s.kv.Delete(ctx, s.resetKey(uid)); err != nil {
		return unavailable(err)
	}
	return nil
}

// ClaimOTP marks code as spent for uid for ttl. It reports false when the
// code was already claimed, so concurrent submissions of one code admit a
// single winner.
func (s *Store) ClaimOTP(ctx context.Context, uid int64, code string, ttl time.Duration) (bool, error) {
	claimed, err := s.kv.SetNX(ctx, s.otpKey(uid, code), []byte("used"), ttl)
	if err != nil {
		return false, unavailable(err)
	}
	return claimed, nil
}
