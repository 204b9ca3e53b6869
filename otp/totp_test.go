package otp

import (
	"encoding/base32"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

func newTestTOTP(t *testing.T, cfg Config) *TOTP {
	t.Helper()
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestRFC6238Vectors(t *testing.T) {
	suites := []struct {
		algorithm string
		secret    string
		vectors   map[int64]string
	}{
		{"SHA1", "12345678901234567890", map[int64]string{
			59: "94287082", 1111111109: "07081804", 1111111111: "14050471",
			1234567890: "89005924", 2000000000: "69279037", 20000000000: "65353130",
		}},
		{"SHA256", "12345678901234567890123456789012", map[int64]string{
			59: "46119246", 1111111109: "68084774", 1111111111: "67062674",
			1234567890: "91819424", 2000000000: "90698825", 20000000000: "77737706",
		}},
		{"SHA512", "1234567890123456789012345678901234567890123456789012345678901234", map[int64]string{
			59: "90693936", 1111111109: "25091201", 1111111111: "99943326",
			1234567890: "93441116", 2000000000: "38618901", 20000000000: "47863826",
		}},
	}
	for _, s := range suites {
		m := newTestTOTP(t, Config{Issuer: "authcache", Digits: 8, Period: 30, Algorithm: s.algorithm})
		for ts, code := range s.vectors {
			secret := base32.StdEncoding.EncodeToString([]byte(s.secret))
			ok, err := m.Verify(secret, code, time.Unix(ts, 0))
			if err != nil || !ok {
				t.Fatalf("%s vector failed at t=%d: ok=%v err=%v", s.algorithm, ts, ok, err)
			}
		}
	}
}

func TestVerifyHonoursSkew(t *testing.T) {
	m := newTestTOTP(t, DefaultConfig())
	enrollment, err := m.Enroll("ada@example.com")
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	secret := enrollment.Secret
	now := time.Unix(1_700_000_000, 0)
	code, err := m.Code(secret, now)
	if err != nil {
		t.Fatalf("Code: %v", err)
	}

	for _, offset := range []time.Duration{-90 * time.Second, 0, 90 * time.Second} {
		if ok, err := m.Verify(secret, code, now.Add(offset)); err != nil || !ok {
			t.Fatalf("expected code to verify at offset %v: ok=%v err=%v", offset, ok, err)
		}
	}
	if ok, _ := m.Verify(secret, code, now.Add(5*time.Minute)); ok {
		t.Fatal("expected code outside the skew window to fail")
	}
}

func TestVerifyMalformedInput(t *testing.T) {
	m := newTestTOTP(t, DefaultConfig())
	enrollment, _ := m.Enroll("ada@example.com")
	secret := enrollment.Secret
	for _, code := range []string{"", "12345", "abcdef", "1234567"} {
		if ok, err := m.Verify(secret, code, time.Now()); ok || err != nil {
			t.Fatalf("Verify(%q) = %v, %v", code, ok, err)
		}
	}
	if _, err := m.Verify("", "123456", time.Now()); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
	if _, err := m.Verify("not base32!", "123456", time.Now()); !errors.Is(err, ErrInvalidSecret) {
		t.Fatalf("expected ErrInvalidSecret, got %v", err)
	}
}

func TestProvisionURI(t *testing.T) {
	m := newTestTOTP(t, DefaultConfig())
	uri, err := m.ProvisionURI("JBSWY3DPEHPK3PXP", "ada@example.com")
	if err != nil {
		t.Fatalf("ProvisionURI: %v", err)
	}
	if !strings.HasPrefix(uri, "otpauth://totp/authcache:ada@example.com?") {
		t.Fatalf("unexpected URI: %s", uri)
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		t.Fatalf("parse URI: %v", err)
	}
	q := parsed.Query()
	if q.Get("secret") != "JBSWY3DPEHPK3PXP" || q.Get("digits") != "6" || q.Get("period") != "30" || q.Get("algorithm") != "SHA1" {
		t.Fatalf("unexpected query: %v", q)
	}
}

func TestEnrollIssuesUsableSecret(t *testing.T) {
	m := newTestTOTP(t, DefaultConfig())
	enrollment, err := m.Enroll("grace@example.com")
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(enrollment.Secret)
	if err != nil || len(raw) != secretBytes {
		t.Fatalf("unexpected secret %q (%d bytes, %v)", enrollment.Secret, len(raw), err)
	}
	parsed, err := url.Parse(enrollment.URI)
	if err != nil {
		t.Fatalf("parse URI: %v", err)
	}
	if parsed.Query().Get("secret") != enrollment.Secret {
		t.Fatalf("URI does not carry the secret: %s", enrollment.URI)
	}

	now := time.Now()
	code, err := m.Code(enrollment.Secret, now)
	if err != nil {
		t.Fatalf("Code: %v", err)
	}
	if ok, err := m.Verify(enrollment.Secret, code, now); err != nil || !ok {
		t.Fatalf("expected enrolled secret to verify its own code: ok=%v err=%v", ok, err)
	}

	other, _ := m.Enroll("grace@example.com")
	if other.Secret == enrollment.Secret {
		t.Fatal("expected distinct secrets per enrollment")
	}
}

func TestProvisionURIRejectsBadSecret(t *testing.T) {
	m := newTestTOTP(t, DefaultConfig())
	if _, err := m.ProvisionURI("not base32!", "ada@example.com"); !errors.Is(err, ErrInvalidSecret) {
		t.Fatalf("expected ErrInvalidSecret, got %v", err)
	}
	if _, err := m.ProvisionURI("", "ada@example.com"); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
}

func TestWindow(t *testing.T) {
	m := newTestTOTP(t, DefaultConfig())
	if got := m.Window(); got != 210*time.Second {
		t.Fatalf("unexpected window %v", got)
	}
}

func TestNewValidation(t *testing.T) {
	for _, cfg := range []Config{
		{Digits: 5, Period: 30},
		{Digits: 6, Period: 0},
		{Digits: 6, Period: 30, Algorithm: "MD5"},
		{Digits: 6, Period: 30, Skew: -1},
	} {
		if _, err := New(cfg); err == nil {
			t.Fatalf("expected %+v to be rejected", cfg)
		}
	}
}
