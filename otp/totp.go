package otp

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	potp "github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const secretBytes = 20

var (
	// ErrEmptySecret is returned when verifying against an empty secret.
	ErrEmptySecret = errors.New("otp: empty secret")
	// ErrInvalidSecret is returned for secrets that are not valid base32.
	ErrInvalidSecret = errors.New("otp: invalid secret encoding")
)

// Config parameterises code generation.
type Config struct {
	Issuer    string
	Digits    int
	Period    int
	Algorithm string
	Skew      int
}

// DefaultConfig returns SHA1, 6 digits, 30s period and a skew of 3 steps.
func DefaultConfig() Config {
	return Config{Issuer: "authcache", Digits: 6, Period: 30, Algorithm: "SHA1", Skew: 3}
}

// Enrollment is a freshly generated secret and the URI authenticator apps
// import it from.
type Enrollment struct {
	Secret string
	URI    string
}

// TOTP generates and verifies codes.
type TOTP struct {
	config    Config
	algorithm potp.Algorithm
}

// New validates cfg and returns a TOTP.
func New(cfg Config) (*TOTP, error) {
	algorithm, err := parseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	if cfg.Digits < 6 || cfg.Digits > 8 {
		return nil, errors.New("otp: digits must be between 6 and 8")
	}
	if cfg.Period <= 0 {
		return nil, errors.New("otp: period must be > 0")
	}
	if cfg.Skew < 0 || cfg.Skew > 10 {
		return nil, errors.New("otp: skew must be between 0 and 10")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultConfig().Issuer
	}
	return &TOTP{config: cfg, algorithm: algorithm}, nil
}

func parseAlgorithm(name string) (potp.Algorithm, error) {
	switch strings.ToUpper(name) {
	case "", "SHA1":
		return potp.AlgorithmSHA1, nil
	case "SHA256":
		return potp.AlgorithmSHA256, nil
	case "SHA512":
		return potp.AlgorithmSHA512, nil
	default:
		return 0, errors.New("otp: unsupported algorithm")
	}
}

// Window is the span during which one code verifies, given the skew.
func (m *TOTP) Window() time.Duration {
	return time.Duration(m.config.Period*(2*m.config.Skew+1)) * time.Second
}

func (m *TOTP) generateOpts(account string, secret []byte) totp.GenerateOpts {
	return totp.GenerateOpts{
		Issuer:      m.config.Issuer,
		AccountName: account,
		Period:      uint(m.config.Period),
		SecretSize:  secretBytes,
		Secret:      secret,
		Digits:      potp.Digits(m.config.Digits),
		Algorithm:   m.algorithm,
	}
}

func (m *TOTP) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    uint(m.config.Period),
		Skew:      uint(m.config.Skew),
		Digits:    potp.Digits(m.config.Digits),
		Algorithm: m.algorithm,
	}
}

// Enroll generates a fresh secret for account.
func (m *TOTP) Enroll(account string) (Enrollment, error) {
	key, err := totp.Generate(m.generateOpts(account, nil))
	if err != nil {
		return Enrollment{}, fmt.Errorf("otp: generate secret: %w", err)
	}
	return Enrollment{Secret: key.Secret(), URI: key.URL()}, nil
}

// ProvisionURI returns the otpauth:// URI for an existing secret.
func (m *TOTP) ProvisionURI(secret, account string) (string, error) {
	raw, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	key, err := totp.Generate(m.generateOpts(account, raw))
	if err != nil {
		return "", fmt.Errorf("otp: provisioning uri: %w", err)
	}
	return key.URL(), nil
}

// Code returns the code for secret at now.
func (m *TOTP) Code(secret string, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", ErrEmptySecret
	}
	code, err := totp.GenerateCodeCustom(secret, now, m.validateOpts())
	if err != nil {
		return "", mapError(err)
	}
	return code, nil
}

// Verify reports whether code is valid for secret at now within the
// configured skew. Malformed codes verify as false without error.
func (m *TOTP) Verify(secret, code string, now time.Time) (bool, error) {
	if strings.TrimSpace(secret) == "" {
		return false, ErrEmptySecret
	}
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), secret, now, m.validateOpts())
	switch {
	case errors.Is(err, potp.ErrValidateInputInvalidLength):
		return false, nil
	case err != nil:
		return false, mapError(err)
	}
	return ok, nil
}

func mapError(err error) error {
	if errors.Is(err, potp.ErrValidateSecretInvalidBase32) {
		return fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return err
}

// decodeSecret accepts padded or unpadded base32 in any case.
func decodeSecret(secret string) ([]byte, error) {
	s := strings.ToUpper(strings.TrimRight(strings.TrimSpace(secret), "="))
	if s == "" {
		return nil, ErrEmptySecret
	}
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return raw, nil
}
