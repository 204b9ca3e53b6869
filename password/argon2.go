package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"

	// DefaultMaxBytes bounds the input fed to Argon2.
	DefaultMaxBytes = 1024
)

var (
	// ErrTooShort is returned for passwords below Config.MinBytes.
	ErrTooShort = errors.New("password too short")
	// ErrTooLong is returned for passwords above Config.MaxBytes.
	ErrTooLong = errors.New("password too long")
	// ErrMalformedDigest is returned when a stored digest cannot be parsed.
	ErrMalformedDigest = errors.New("malformed password digest")
)

// Config holds Argon2id cost parameters and input bounds.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinBytes    int
	MaxBytes    int
}

// DefaultConfig returns the production parameters.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
		MinBytes:    8,
		MaxBytes:    DefaultMaxBytes,
	}
}

// Digest is a stored password: the encoded hash and its salt.
type Digest struct {
	Hash string
	Salt string
}

// Hasher hashes and verifies passwords. It is safe for concurrent use.
type Hasher struct {
	config Config
}

type params struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return &Hasher{config: cfg}, nil
}

func (h *Hasher) checkLength(password string) error {
	// Raw bytes, no Unicode normalization.
	if len(password) < h.config.MinBytes {
		return ErrTooShort
	}
	if len(password) > h.config.MaxBytes {
		return ErrTooLong
	}
	return nil
}

// Hash derives a Digest for password with a fresh random salt.
func (h *Hasher) Hash(password string) (Digest, error) {
	if err := h.checkLength(password); err != nil {
		return Digest{}, err
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return Digest{}, err
	}

	key := argon2.IDKey([]byte(password), salt, h.config.Time, h.config.Memory, h.config.Parallelism, h.config.KeyLength)

	return Digest{
		Hash: fmt.Sprintf(
			"$%s$v=%d$m=%d,t=%d,p=%d$%s",
			algorithmID,
			argon2.Version,
			h.config.Memory,
			h.config.Time,
			h.config.Parallelism,
			base64.StdEncoding.EncodeToString(key),
		),
		Salt: base64.StdEncoding.EncodeToString(salt),
	}, nil
}

// Verify reports whether password matches d. Over-long input is rejected
// before any hashing work.
func (h *Hasher) Verify(password string, d Digest) (bool, error) {
	if len(password) > h.config.MaxBytes {
		return false, ErrTooLong
	}
	p, key, err := parseHash(d.Hash)
	if err != nil {
		return false, err
	}
	salt, err := base64.StdEncoding.DecodeString(d.Salt)
	if err != nil || len(salt) < int(minSaltLength) {
		return false, fmt.Errorf("%w: invalid salt", ErrMalformedDigest)
	}

	computed := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

// NeedsRehash reports whether d was produced with weaker parameters than the
// Hasher's.
func (h *Hasher) NeedsRehash(d Digest) (bool, error) {
	p, key, err := parseHash(d.Hash)
	if err != nil {
		return false, err
	}
	return h.config.Memory > p.memory ||
		h.config.Time > p.time ||
		h.config.Parallelism > p.parallelism ||
		h.config.KeyLength != uint32(len(key)), nil
}

func parseHash(encoded string) (params, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != "" {
		return params{}, nil, fmt.Errorf("%w: invalid format", ErrMalformedDigest)
	}
	if parts[1] != algorithmID {
		return params{}, nil, fmt.Errorf("%w: unsupported algorithm", ErrMalformedDigest)
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return params{}, nil, fmt.Errorf("%w: invalid version", ErrMalformedDigest)
	}
	if version != argon2.Version {
		return params{}, nil, fmt.Errorf("%w: unsupported version", ErrMalformedDigest)
	}

	p, err := parseParams(parts[3])
	if err != nil {
		return params{}, nil, err
	}

	key, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(key) == 0 {
		return params{}, nil, fmt.Errorf("%w: invalid hash encoding", ErrMalformedDigest)
	}
	return p, key, nil
}

func parseParams(part string) (params, error) {
	var (
		p    params
		seen int
	)
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return params{}, fmt.Errorf("%w: invalid parameter format", ErrMalformedDigest)
	}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return params{}, fmt.Errorf("%w: invalid parameter entry", ErrMalformedDigest)
		}
		switch name {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return params{}, fmt.Errorf("%w: invalid memory parameter", ErrMalformedDigest)
			}
			p.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return params{}, fmt.Errorf("%w: invalid time parameter", ErrMalformedDigest)
			}
			p.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return params{}, fmt.Errorf("%w: invalid parallelism parameter", ErrMalformedDigest)
			}
			p.parallelism = uint8(v)
		default:
			return params{}, fmt.Errorf("%w: unsupported parameter", ErrMalformedDigest)
		}
		seen++
	}
	if seen != 3 || p.memory == 0 || p.time == 0 || p.parallelism == 0 {
		return params{}, fmt.Errorf("%w: missing parameters", ErrMalformedDigest)
	}
	return p, nil
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("password memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("password time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("password parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("password salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}
	if cfg.MinBytes < 0 || cfg.MaxBytes < cfg.MinBytes {
		return errors.New("password length bounds are inconsistent")
	}
	return nil
}
