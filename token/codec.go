package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with HMAC-SHA256 using Config.SecretKey.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with Ed25519 using Config.PrivateKey.
	MethodEd25519 SigningMethod = "ed25519"
)

var (
	// ErrMalformed is returned when a token cannot be parsed at all.
	ErrMalformed = errors.New("malformed token")
	// ErrSignatureInvalid is returned when the signature does not verify
	// against the configured key (tampering or wrong key).
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrExpired is returned when the token's expiry has passed. The expiry
	// boundary is inclusive: a token whose exp equals the current instant is
	// already expired.
	ErrExpired = errors.New("token expired")
)

// Config holds the process-wide signing material. It is loaded once at
// startup and treated as immutable afterwards.
type Config struct {
	SigningMethod SigningMethod // defaults to MethodHS256
	SecretKey     []byte        // hs256 signing and verification key
	PrivateKey    []byte        // ed25519 private key (raw or PEM)
	PublicKey     []byte        // ed25519 public key; derived from PrivateKey when empty
}

// Claims is the credential claim set: subject, issued-at, token id, expiry.
type Claims struct {
	jwt.RegisteredClaims
}

// Codec produces and verifies signed credential tokens. It has no side
// effects and never touches the session store.
type Codec struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
}

// New validates the signing configuration and returns a ready Codec.
func New(cfg Config) (*Codec, error) {
	switch cfg.SigningMethod {
	case "", MethodHS256:
		if len(cfg.SecretKey) == 0 {
			return nil, errors.New("hs256 requires a secret key")
		}
		return &Codec{
			method:    jwt.SigningMethodHS256,
			signKey:   cfg.SecretKey,
			verifyKey: cfg.SecretKey,
		}, nil
	case MethodEd25519:
		priv, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		var pub ed25519.PublicKey
		if len(cfg.PublicKey) > 0 {
			pub, err = parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
		} else {
			pub = priv.Public().(ed25519.PublicKey)
		}
		return &Codec{
			method:    jwt.SigningMethodEdDSA,
			signKey:   priv,
			verifyKey: pub,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported signing method %q", cfg.SigningMethod)
	}
}

// Encode signs a fresh claim set for subject with the given lifetime. The
// token id is a random UUID, so two calls never produce the same token. The
// returned Claims mirror what was signed so callers can size record TTLs and
// report expiry without re-parsing.
func (c *Codec) Encode(subject string, lifetime time.Duration) (string, *Claims, error) {
	if subject == "" {
		return "", nil, errors.New("empty subject")
	}
	if lifetime <= 0 {
		return "", nil, errors.New("non-positive token lifetime")
	}

	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.signKey)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

type decodeOptions struct {
	ignoreExpiry bool
}

// DecodeOption adjusts claim validation during Decode.
type DecodeOption func(*decodeOptions)

// IgnoreExpiry skips expiry validation. Signature verification is never
// skipped. Used only for revocation bookkeeping, where the expiry of an
// already-expired token must still be readable.
func IgnoreExpiry() DecodeOption {
	return func(o *decodeOptions) {
		o.ignoreExpiry = true
	}
}

// Decode verifies tokenString and returns its claims. Failures are one of
// ErrMalformed, ErrSignatureInvalid, or ErrExpired.
func (c *Codec) Decode(tokenString string, opts ...DecodeOption) (*Claims, error) {
	var o decodeOptions
	for _, opt := range opts {
		opt(&o)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
	}
	if o.ignoreExpiry {
		parserOpts = append(parserOpts, jwt.WithoutClaimsValidation())
	}

	claims := &Claims{}
	parsed, err := jwt.NewParser(parserOpts...).ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return c.verifyKey, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !parsed.Valid {
		return nil, ErrMalformed
	}
	if claims.Subject == "" || claims.ID == "" || claims.ExpiresAt == nil {
		return nil, ErrMalformed
	}

	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
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
