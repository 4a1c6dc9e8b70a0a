// Package store persists the authority's revocation and refresh-rotation
// records in a TTL-capable Redis keyspace. It is the single shared mutable
// resource of the authority; there is no in-process caching layered on top,
// so Redis is always the source of truth.
//
// Key layout:
//
//	refresh_token:<tokenID>  -> subject, TTL = refresh lifetime
//	blacklist:<tokenID>      -> "1",     TTL = remaining token validity
//	refresh_user:<subject>   -> set of active refresh token ids
//
// The refresh_user set is a secondary index maintained transactionally with
// each refresh record, so revoking every session of a subject is one set
// fetch plus per-member revocations instead of a keyspace scan.
package store
