// Package authcore is the session and token authority for the Veloracart
// marketplace. It issues, verifies, rotates, and revokes the credential
// tokens every other subsystem consumes: short-lived JWT access tokens and
// long-lived, redeem-once refresh tokens with Redis-backed rotation and
// revocation state.
//
// The package is designed for concurrent server workloads: Authority methods
// are safe to call from multiple goroutines after construction through
// [New] or [Open].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Authority], [Config], [Sink],
// and value types (TokenPair, MetricsSnapshot, Event). The HTTP routing
// layer, the user-record store, and log transport are external
// collaborators: authcore receives an already-authenticated subject id and
// raw token strings, and emits structured events through an injected Sink.
// It never touches password hashing or the relational store.
//
// # State model
//
// Redis is the single shared mutable resource and the sole source of truth
// for refresh and revocation state; the Authority holds no in-process
// mutable session state that could desynchronize from it. Refresh records
// are consumed with an atomic check-and-delete, which is what makes refresh
// tokens redeemable exactly once under concurrency.
//
// # Failure policy
//
// Credential failures — malformed, tampered, expired, revoked — surface to
// callers as a single generic unauthenticated outcome so end users cannot
// distinguish a revoked token from garbage. The specific kind travels on the
// wrapped error chain and on emitted events for diagnostics. Store outages
// fail verification closed. Nothing is retried internally.
package authcore
