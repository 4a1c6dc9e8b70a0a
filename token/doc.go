// Package token encodes and decodes the signed credential tokens issued by
// the authority. A Codec is a pure function of its configuration: it performs
// no I/O and holds no mutable state, so a single instance is safe for
// concurrent use.
//
// Tokens are compact JWTs carrying only the registered claim set (sub, iat,
// jti, exp). The jti is a freshly generated UUID per token and is the key
// under which revocation and refresh state live in the session store.
package token
