package authcore

import (
	"errors"

	"github.com/veloracart/authcore/store"
)

var (
	// ErrUnauthenticated is the single caller-facing outcome for every
	// credential failure. The underlying kind (malformed, bad signature,
	// expired, revoked, store down) is wrapped alongside it for internal
	// diagnostics and must never reach end users.
	ErrUnauthenticated = errors.New("invalid or expired credential")
	// ErrRevoked marks a token found in the revocation blacklist.
	ErrRevoked = errors.New("token revoked")
	// ErrRefreshNotFound is returned when a refresh token's record is
	// absent or desynchronized: never issued, already rotated, lapsed by
	// TTL, or subject mismatch. The cases are deliberately
	// indistinguishable to the caller.
	ErrRefreshNotFound = store.ErrRefreshNotFound
	// ErrStoreUnavailable marks a Redis timeout or connection failure.
	ErrStoreUnavailable = store.ErrStoreUnavailable
)
