package authcore

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/veloracart/authcore/token"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultKVSTimeout = 3 * time.Second
	defaultKVSAddr    = "localhost:6379"
)

// Config is the construction-time configuration of an [Authority]. Zero
// durations select defaults; key material is required.
type Config struct {
	// SigningMethod selects the token signature algorithm; empty means
	// hs256.
	SigningMethod token.SigningMethod
	// SecretKey is the hs256 signing and verification key.
	SecretKey []byte
	// PrivateKey and PublicKey carry ed25519 key material (raw or PEM).
	// PublicKey may be left empty to derive it from PrivateKey.
	PrivateKey []byte
	PublicKey  []byte

	// AccessTTL is the access token lifetime. Default 15m.
	AccessTTL time.Duration
	// RefreshTTL is the refresh token lifetime and the TTL of its
	// rotation record. Default 7d.
	RefreshTTL time.Duration

	// KVSAddr is the Redis endpoint used by [Open]. Ignored when a client
	// is injected through [New]. Default localhost:6379.
	KVSAddr string
	// KVSMaxRetries bounds connection retries inside the Redis client.
	// Individual requests are never retried by the authority.
	KVSMaxRetries int
	// KVSTimeout bounds every individual Redis call. Default 3s.
	KVSTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.SigningMethod == "" {
		c.SigningMethod = token.MethodHS256
	}
	if c.AccessTTL <= 0 {
		c.AccessTTL = defaultAccessTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = defaultRefreshTTL
	}
	if c.KVSTimeout <= 0 {
		c.KVSTimeout = defaultKVSTimeout
	}
	if c.KVSAddr == "" {
		c.KVSAddr = defaultKVSAddr
	}
	return c
}

func (c Config) validate() error {
	switch c.SigningMethod {
	case token.MethodHS256:
		if len(c.SecretKey) == 0 {
			return errors.New("secret key is required for hs256")
		}
	case token.MethodEd25519:
		if len(c.PrivateKey) == 0 {
			return errors.New("private key is required for ed25519")
		}
	default:
		return fmt.Errorf("unsupported signing method %q", c.SigningMethod)
	}
	if c.AccessTTL >= c.RefreshTTL {
		return errors.New("access ttl must be shorter than refresh ttl")
	}
	return nil
}

// ConfigFromEnv builds a Config from the process environment:
//
//	AUTHCORE_SECRET_KEY      signing key (required for hs256)
//	AUTHCORE_SIGNING_METHOD  "hs256" (default) or "ed25519"
//	AUTHCORE_ACCESS_TTL      Go duration, default 15m
//	AUTHCORE_REFRESH_TTL     Go duration, default 168h
//	AUTHCORE_KVS_ADDR        Redis endpoint, default localhost:6379
//	AUTHCORE_KVS_MAX_RETRIES integer, connection retries only
//	AUTHCORE_KVS_TIMEOUT     Go duration, default 3s
//
// Unset variables fall back to defaults; malformed values are errors rather
// than silent fallbacks.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		SigningMethod: token.SigningMethod(os.Getenv("AUTHCORE_SIGNING_METHOD")),
		KVSAddr:       os.Getenv("AUTHCORE_KVS_ADDR"),
	}
	if v := os.Getenv("AUTHCORE_SECRET_KEY"); v != "" {
		cfg.SecretKey = []byte(v)
	}

	var err error
	if cfg.AccessTTL, err = envDuration("AUTHCORE_ACCESS_TTL"); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTL, err = envDuration("AUTHCORE_REFRESH_TTL"); err != nil {
		return Config{}, err
	}
	if cfg.KVSTimeout, err = envDuration("AUTHCORE_KVS_TIMEOUT"); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("AUTHCORE_KVS_MAX_RETRIES"); v != "" {
		retries, err := strconv.Atoi(v)
		if err != nil || retries < 0 {
			return Config{}, fmt.Errorf("invalid AUTHCORE_KVS_MAX_RETRIES %q", v)
		}
		cfg.KVSMaxRetries = retries
	}

	return cfg, nil
}

func envDuration(name string) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return d, nil
}
