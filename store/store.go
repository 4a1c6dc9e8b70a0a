package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrStoreUnavailable wraps any Redis transport failure or timeout.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrRefreshNotFound is returned when a refresh record is absent:
	// never issued, already rotated, or lapsed by TTL. The three cases are
	// deliberately indistinguishable.
	ErrRefreshNotFound = errors.New("refresh record not found")
	// ErrSubjectMismatch is returned when a refresh record exists but its
	// stored subject differs from the presented token's subject. The record
	// is consumed as part of the check; a desynchronized record is worthless
	// and possibly hostile.
	ErrSubjectMismatch = errors.New("refresh record subject mismatch")
)

const (
	refreshPrefix   = "refresh_token:"
	blacklistPrefix = "blacklist:"
	subjectPrefix   = "refresh_user:"
)

const defaultTimeout = 3 * time.Second

const (
	consumeStatusNotFound int64 = 0
	consumeStatusMismatch int64 = 1
	consumeStatusConsumed int64 = 2
)

// consumeRefreshScript is the atomic check-and-delete behind refresh
// rotation: of any number of concurrent redemptions of the same token id,
// exactly one observes the record. The record and its index entry are
// removed even on subject mismatch.
const consumeRefreshScript = `
local stored = redis.call("GET", KEYS[1])
if not stored then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", ARGV[2] .. stored, ARGV[3])
if stored ~= ARGV[1] then
  return 1
end
return 2
`

var consumeRefreshLua = redis.NewScript(consumeRefreshScript)

// revokeRefreshScript revokes a single refresh record in place: blacklist
// the id for the record's remaining TTL, drop the record, drop the index
// entry. A record whose TTL already lapsed is only unindexed and reports 0.
const revokeRefreshScript = `
local ttl = redis.call("PTTL", KEYS[1])
redis.call("SREM", KEYS[3], ARGV[1])
if ttl <= 0 then
  return 0
end
redis.call("SET", KEYS[2], "1", "PX", ttl)
redis.call("DEL", KEYS[1])
return 1
`

var revokeRefreshLua = redis.NewScript(revokeRefreshScript)

// Store is the Redis-backed record store for refresh rotation and
// revocation state. Every operation runs under a bounded timeout and fails
// with ErrStoreUnavailable instead of hanging; nothing is retried here,
// retry policy belongs to the caller.
type Store struct {
	redis   redis.UniversalClient
	timeout time.Duration
}

// New creates a Store over the given Redis client. timeout bounds every
// individual Redis call; zero or negative selects a 3s default.
func New(client redis.UniversalClient, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Store{redis: client, timeout: timeout}
}

func refreshKey(tokenID string) string   { return refreshPrefix + tokenID }
func blacklistKey(tokenID string) string { return blacklistPrefix + tokenID }
func subjectKey(subject string) string   { return subjectPrefix + subject }

func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// SaveRefresh records a newly issued refresh token id for subject and adds
// it to the subject's index set. The index TTL is refreshed to the full
// lifetime, which is always at least as long as any member's record TTL.
func (s *Store) SaveRefresh(ctx context.Context, tokenID, subject string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("non-positive refresh ttl")
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, refreshKey(tokenID), subject, ttl)
		pipe.SAdd(ctx, subjectKey(subject), tokenID)
		pipe.Expire(ctx, subjectKey(subject), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// ConsumeRefresh atomically deletes the refresh record for tokenID and
// reports whether the stored subject matched. Success means the caller won
// the rotation: no other concurrent or later call for the same id can
// succeed again.
func (s *Store) ConsumeRefresh(ctx context.Context, tokenID, subject string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	status, err := consumeRefreshLua.Run(
		ctx,
		s.redis,
		[]string{refreshKey(tokenID)},
		subject,
		subjectPrefix,
		tokenID,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	switch status {
	case consumeStatusNotFound:
		return ErrRefreshNotFound
	case consumeStatusMismatch:
		return ErrSubjectMismatch
	case consumeStatusConsumed:
		return nil
	default:
		return fmt.Errorf("%w: unexpected consume status %d", ErrStoreUnavailable, status)
	}
}

// Revoke blacklists tokenID for its remaining validity. A non-positive
// remaining lifetime is a no-op: an expired token needs no record because
// verification already rejects it.
func (s *Store) Revoke(ctx context.Context, tokenID string, remaining time.Duration) error {
	if remaining <= 0 {
		return nil
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.redis.Set(ctx, blacklistKey(tokenID), "1", remaining).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether tokenID is present in the blacklist.
func (s *Store) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	n, err := s.redis.Exists(ctx, blacklistKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

// DropRefresh deletes the refresh record and index entry for tokenID, if
// any. Idempotent: dropping an absent record succeeds.
func (s *Store) DropRefresh(ctx context.Context, tokenID, subject string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, refreshKey(tokenID))
		pipe.SRem(ctx, subjectKey(subject), tokenID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// RevokeAllForSubject revokes every active refresh record indexed for
// subject and returns how many were blacklisted.
//
// ATOMICITY NOTE: each per-member revocation is atomic, the aggregate is
// not. A refresh record created after the index was read survives this call
// and must be caught by a follow-up invocation; that eventual-consistency
// window is accepted for a security-response operation.
func (s *Store) RevokeAllForSubject(ctx context.Context, subject string) (int, error) {
	listCtx, cancel := s.opContext(ctx)
	ids, err := s.redis.SMembers(listCtx, subjectKey(subject)).Result()
	cancel()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	revoked := 0
	for _, id := range ids {
		opCtx, cancel := s.opContext(ctx)
		n, err := revokeRefreshLua.Run(
			opCtx,
			s.redis,
			[]string{refreshKey(id), blacklistKey(id), subjectKey(subject)},
			id,
		).Int64()
		cancel()
		if err != nil {
			return revoked, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		revoked += int(n)
	}

	return revoked, nil
}

// Ping reports point-in-time store availability and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}
