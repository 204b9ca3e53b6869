package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the signature algorithm shared by all token kinds.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodEd25519 SigningMethod = "ed25519"
)

// Kind discriminates what a token may be used for.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
	KindReset   Kind = "password-reset"
)

var (
	// ErrTokenExpired is returned for well-signed tokens past their expiry.
	ErrTokenExpired = errors.New("jwt: token expired")
	// ErrTokenInvalid covers every other verification failure.
	ErrTokenInvalid = errors.New("jwt: token invalid")
)

// KeyPair holds the key material for one token kind. HS256 uses Private as
// the shared secret and ignores Public. Ed25519 accepts raw or PEM keys; a
// verify-only codec may omit Private.
type KeyPair struct {
	Private []byte
	Public  []byte
}

// Config describes a Codec.
type Config struct {
	SigningMethod SigningMethod
	Access        KeyPair
	Refresh       KeyPair
	Reset         KeyPair

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration

	Issuer       string
	Leeway       time.Duration
	MaxFutureIAT time.Duration

	// Now overrides the clock used for issuing and validating. Nil means time.Now.
	Now func() time.Time
}

// Claims is the payload of every token.
type Claims struct {
	UID  int64 `json:"uid"`
	Kind Kind  `json:"kind"`
	jwt.RegisteredClaims
}

type kindKeys struct {
	ttl    time.Duration
	sign   any
	verify any
}

// Codec signs and verifies tokens. It is immutable after NewCodec and safe
// for concurrent use.
type Codec struct {
	method       jwt.SigningMethod
	issuer       string
	leeway       time.Duration
	maxFutureIAT time.Duration
	now          func() time.Time
	kinds        map[Kind]kindKeys
}

// NewCodec validates cfg and builds a Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.ResetTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Codec{
		issuer:       cfg.Issuer,
		leeway:       cfg.Leeway,
		maxFutureIAT: cfg.MaxFutureIAT,
		now:          cfg.Now,
		kinds:        make(map[Kind]kindKeys, 3),
	}
	switch cfg.SigningMethod {
	case MethodHS256, "":
		c.method = jwt.SigningMethodHS256
	case MethodEd25519:
		c.method = jwt.SigningMethodEdDSA
	default:
		return nil, errors.New("unsupported signing method")
	}

	for kind, def := range map[Kind]struct {
		keys KeyPair
		ttl  time.Duration
	}{
		KindAccess:  {cfg.Access, cfg.AccessTTL},
		KindRefresh: {cfg.Refresh, cfg.RefreshTTL},
		KindReset:   {cfg.Reset, cfg.ResetTTL},
	} {
		keys, err := c.loadKeys(def.keys)
		if err != nil {
			return nil, fmt.Errorf("%s keys: %w", kind, err)
		}
		keys.ttl = def.ttl
		c.kinds[kind] = keys
	}
	return c, nil
}

func (c *Codec) loadKeys(kp KeyPair) (kindKeys, error) {
	if c.method == jwt.SigningMethodHS256 {
		if len(kp.Private) == 0 {
			return kindKeys{}, errors.New("hs256 requires a secret")
		}
		return kindKeys{sign: kp.Private, verify: kp.Private}, nil
	}

	var out kindKeys
	if len(kp.Private) > 0 {
		priv, err := parseEdPrivateKey(kp.Private)
		if err != nil {
			return kindKeys{}, err
		}
		out.sign = priv
		out.verify = priv.Public()
	}
	if len(kp.Public) > 0 {
		pub, err := parseEdPublicKey(kp.Public)
		if err != nil {
			return kindKeys{}, err
		}
		out.verify = pub
	}
	if out.verify == nil {
		return kindKeys{}, errors.New("ed25519 requires a public or private key")
	}
	return out, nil
}

// TTL reports the nominal lifetime of tokens of kind.
func (c *Codec) TTL(kind Kind) time.Duration {
	return c.kinds[kind].ttl
}

// SignAccess issues an access token for uid.
func (c *Codec) SignAccess(uid int64) (string, error) { return c.sign(KindAccess, uid) }

// SignRefresh issues a refresh token for uid.
func (c *Codec) SignRefresh(uid int64) (string, error) { return c.sign(KindRefresh, uid) }

// SignReset issues a password-reset token for uid.
func (c *Codec) SignReset(uid int64) (string, error) { return c.sign(KindReset, uid) }

func (c *Codec) sign(kind Kind, uid int64) (string, error) {
	keys := c.kinds[kind]
	if keys.sign == nil {
		return "", fmt.Errorf("no signing key for %s tokens", kind)
	}
	now := c.now()
	claims := Claims{
		UID:  uid,
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(keys.ttl)),
		},
	}
	return jwt.NewWithClaims(c.method, claims).SignedString(keys.sign)
}

// VerifyAccess verifies an access token. Errors wrap ErrTokenExpired or
// ErrTokenInvalid.
func (c *Codec) VerifyAccess(token string) (*Claims, error) {
	return c.verify(KindAccess, token, true)
}

// VerifyRefresh verifies a refresh token.
func (c *Codec) VerifyRefresh(token string) (*Claims, error) {
	return c.verify(KindRefresh, token, true)
}

// VerifyReset verifies a password-reset token. A correctly signed token whose
// kind is not "password-reset" yields (nil, nil); that includes live refresh
// tokens, which carry the refresh key's signature rather than the reset key's.
func (c *Codec) VerifyReset(token string) (*Claims, error) {
	claims, err := c.parse(KindReset, token, true)
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			if other, rerr := c.parse(KindRefresh, token, true); rerr == nil && other.Kind != KindReset {
				return nil, nil
			}
		}
		return nil, err
	}
	if claims.Kind != KindReset {
		return nil, nil
	}
	return claims, nil
}

// ParseAccessAllowExpired verifies the signature, issuer and kind of an access
// token but ignores its expiry. Logout uses it so an expired session can still
// be closed.
func (c *Codec) ParseAccessAllowExpired(token string) (*Claims, error) {
	return c.verify(KindAccess, token, false)
}

func (c *Codec) verify(kind Kind, token string, checkExpiry bool) (*Claims, error) {
	claims, err := c.parse(kind, token, checkExpiry)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: unexpected kind %q", ErrTokenInvalid, claims.Kind)
	}
	return claims, nil
}

func (c *Codec) parse(kind Kind, token string, checkExpiry bool) (*Claims, error) {
	keys := c.kinds[kind]
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithTimeFunc(c.now),
	}
	if checkExpiry {
		options = append(options, jwt.WithExpirationRequired())
		if c.leeway > 0 {
			options = append(options, jwt.WithLeeway(c.leeway))
		}
		if c.issuer != "" {
			options = append(options, jwt.WithIssuer(c.issuer))
		}
	} else {
		options = append(options, jwt.WithoutClaimsValidation())
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != c.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return keys.verify, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if !checkExpiry && c.issuer != "" && claims.Issuer != c.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrTokenInvalid)
	}
	if claims.IssuedAt != nil && claims.IssuedAt.After(c.now().Add(c.maxFutureIAT)) {
		return nil, fmt.Errorf("%w: iat too far in the future", ErrTokenInvalid)
	}
	return claims, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
