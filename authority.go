package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veloracart/authcore/rate"
	"github.com/veloracart/authcore/store"
	"github.com/veloracart/authcore/token"
)

// TokenPair is the outbound credential bundle returned on issuance and
// refresh.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Authority issues, verifies, rotates, and revokes credential tokens. All
// shared state lives in Redis; an Authority holds only immutable
// configuration and injected dependencies, so a single instance serves all
// request handlers concurrently.
type Authority struct {
	codec   *token.Codec
	store   *store.Store
	limiter *rate.Limiter
	sink    Sink
	metrics *metrics

	accessTTL  time.Duration
	refreshTTL time.Duration
}

// Option customizes an Authority at construction.
type Option func(*Authority)

// WithSink installs the event sink. The default discards events.
func WithSink(s Sink) Option {
	return func(a *Authority) {
		if s != nil {
			a.sink = s
		}
	}
}

// New builds an Authority over an injected Redis client. The client is
// shared with the rate limiter; the Authority does not own its lifecycle.
func New(cfg Config, client redis.UniversalClient, opts ...Option) (*Authority, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.New("nil redis client")
	}

	codec, err := token.New(token.Config{
		SigningMethod: cfg.SigningMethod,
		SecretKey:     cfg.SecretKey,
		PrivateKey:    cfg.PrivateKey,
		PublicKey:     cfg.PublicKey,
	})
	if err != nil {
		return nil, err
	}

	a := &Authority{
		codec:      codec,
		store:      store.New(client, cfg.KVSTimeout),
		limiter:    rate.New(client, cfg.KVSTimeout),
		sink:       NoOpSink{},
		metrics:    &metrics{},
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Open dials Redis from cfg.KVSAddr, verifies connectivity, and builds an
// Authority over the new client. KVSMaxRetries applies to connection
// establishment inside the client only; individual requests are never
// retried.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Authority, error) {
	cfg = cfg.withDefaults()

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.KVSAddr,
		MaxRetries:   cfg.KVSMaxRetries,
		DialTimeout:  cfg.KVSTimeout,
		ReadTimeout:  cfg.KVSTimeout,
		WriteTimeout: cfg.KVSTimeout,
	})

	a, err := New(cfg, client, opts...)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if _, err := a.store.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return a, nil
}

// IssuePair generates an access/refresh token pair for subject and records
// the refresh token id for rotation. One Redis write.
func (a *Authority) IssuePair(ctx context.Context, subject string) (*TokenPair, error) {
	if subject == "" {
		return nil, errors.New("empty subject")
	}

	access, accessClaims, err := a.codec.Encode(subject, a.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshClaims, err := a.codec.Encode(subject, a.refreshTTL)
	if err != nil {
		return nil, err
	}

	if err := a.store.SaveRefresh(ctx, refreshClaims.ID, subject, a.refreshTTL); err != nil {
		a.metrics.inc(MetricStoreFailures)
		a.emit(ctx, OpIssuePair, subject, refreshClaims.ID, err, "")
		return nil, err
	}

	a.metrics.inc(MetricPairsIssued)
	a.emit(ctx, OpIssuePair, subject, refreshClaims.ID, nil, "")

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, nil
}

// VerifyAccess validates an access token's signature and expiry, then
// checks the revocation blacklist. One Redis lookup, no writes. Every
// failure, including a store outage, returns ErrUnauthenticated: revocation
// checks fail closed, and the caller-visible outcome never distinguishes a
// revoked token from garbage.
func (a *Authority) VerifyAccess(ctx context.Context, tokenString string) (string, error) {
	claims, err := a.codec.Decode(tokenString)
	if err != nil {
		a.metrics.inc(MetricVerifyRejected)
		a.emit(ctx, OpVerifyAccess, "", "", err, "")
		return "", fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	revoked, err := a.store.IsRevoked(ctx, claims.ID)
	if err != nil {
		a.metrics.inc(MetricStoreFailures)
		a.emit(ctx, OpVerifyAccess, claims.Subject, claims.ID, err, "fail closed")
		return "", fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if revoked {
		a.metrics.inc(MetricVerifyRejected)
		a.emit(ctx, OpVerifyAccess, claims.Subject, claims.ID, ErrRevoked, "")
		return "", fmt.Errorf("%w: %w", ErrUnauthenticated, ErrRevoked)
	}

	a.metrics.inc(MetricAccessVerified)
	return claims.Subject, nil
}

// Revoke invalidates a single token before its natural expiry by
// blacklisting its id for the remaining validity, and drops any refresh
// record under the same id. Idempotent; revoking an expired or undecodable
// token is a successful no-op because there is nothing left to protect.
// Fails only when the store is unreachable.
func (a *Authority) Revoke(ctx context.Context, tokenString string) error {
	claims, err := a.codec.Decode(tokenString, token.IgnoreExpiry())
	if err != nil {
		a.emit(ctx, OpRevoke, "", "", err, "nothing to revoke")
		return nil
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		a.emit(ctx, OpRevoke, claims.Subject, claims.ID, nil, "already expired")
		return nil
	}

	if err := a.store.Revoke(ctx, claims.ID, remaining); err != nil {
		a.metrics.inc(MetricStoreFailures)
		a.emit(ctx, OpRevoke, claims.Subject, claims.ID, err, "")
		return err
	}
	if err := a.store.DropRefresh(ctx, claims.ID, claims.Subject); err != nil {
		a.metrics.inc(MetricStoreFailures)
		a.emit(ctx, OpRevoke, claims.Subject, claims.ID, err, "")
		return err
	}

	a.metrics.inc(MetricTokensRevoked)
	a.emit(ctx, OpRevoke, claims.Subject, claims.ID, nil, "")
	return nil
}

// Refresh redeems a refresh token for a brand-new pair. Redemption is
// exactly-once: the record is consumed with an atomic check-and-delete, so
// of any number of concurrent calls with the same token, one wins and the
// rest observe ErrRefreshNotFound. A replayed (already-rotated) token looks
// identical to one that never existed.
func (a *Authority) Refresh(ctx context.Context, refreshTokenString string) (*TokenPair, error) {
	claims, err := a.codec.Decode(refreshTokenString)
	if err != nil {
		a.metrics.inc(MetricVerifyRejected)
		a.emit(ctx, OpRefresh, "", "", err, "")
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	if err := a.store.ConsumeRefresh(ctx, claims.ID, claims.Subject); err != nil {
		switch {
		case errors.Is(err, store.ErrSubjectMismatch):
			// Record/token desynchronization is a tamper signal: flag it
			// internally, answer the caller exactly as if nothing existed.
			a.metrics.inc(MetricRefreshSubjectMismatch)
			a.emit(ctx, OpRefresh, claims.Subject, claims.ID, err, "subject mismatch")
			return nil, ErrRefreshNotFound
		case errors.Is(err, store.ErrRefreshNotFound):
			a.metrics.inc(MetricRefreshNotFound)
			a.emit(ctx, OpRefresh, claims.Subject, claims.ID, err, "")
			return nil, ErrRefreshNotFound
		default:
			a.metrics.inc(MetricStoreFailures)
			a.emit(ctx, OpRefresh, claims.Subject, claims.ID, err, "")
			return nil, err
		}
	}

	pair, err := a.IssuePair(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	a.metrics.inc(MetricRefreshRotated)
	return pair, nil
}

// RevokeAllForSubject revokes every active refresh token of subject and
// returns how many were blacklisted. Used for "log out everywhere" and
// credential-compromise response. Outstanding access tokens stay valid
// until their short expiry; per-record revocations are atomic, the
// aggregate intentionally is not.
func (a *Authority) RevokeAllForSubject(ctx context.Context, subject string) (int, error) {
	if subject == "" {
		return 0, errors.New("empty subject")
	}

	count, err := a.store.RevokeAllForSubject(ctx, subject)
	if err != nil {
		a.metrics.inc(MetricStoreFailures)
		a.emit(ctx, OpRevokeAll, subject, "", err, fmt.Sprintf("revoked %d before failure", count))
		return count, err
	}

	a.metrics.inc(MetricRevokeAllRuns)
	a.emit(ctx, OpRevokeAll, subject, "", nil, fmt.Sprintf("revoked %d", count))
	return count, nil
}

// Limiter returns the fixed-window rate limiter sharing the Authority's
// Redis client. The HTTP layer consults it directly; the Authority itself
// never rejects on rate.
func (a *Authority) Limiter() *rate.Limiter {
	return a.limiter
}

// Metrics returns a point-in-time snapshot of the operation counters.
func (a *Authority) Metrics() MetricsSnapshot {
	return a.metrics.snapshot()
}

func (a *Authority) emit(ctx context.Context, op Op, subject, tokenID string, err error, detail string) {
	event := Event{
		Timestamp: time.Now(),
		Op:        op,
		Subject:   subject,
		TokenID:   tokenID,
		Success:   err == nil,
		Detail:    detail,
	}
	if err != nil {
		event.Error = err.Error()
	}
	a.sink.Emit(ctx, event)
}
