// Package session owns the per-subject token state kept in the key-value
// store: refresh records, the access-token denylist, password-reset pointers
// and the last accepted one-time code.
//
// # Key layout
//
//	refresh:<refreshToken>  -> subject id     TTL = refresh lifetime
//	deny:<accessToken>      -> "invalidated"  TTL = access lifetime
//	reset:<subjectID>       -> reset token    TTL = reset lifetime
//	otp:last:<subjectID>    -> last code      TTL = code validity window
//
// Every key is optionally namespaced by the prefix given to [NewStore].
//
// # Architecture boundaries
//
// This package stores and retrieves state. It does NOT verify token
// signatures or decide whether a request is authenticated; the Engine does.
//
// # What this package must NOT do
//
//   - Import authcache or jwt (no upward imports).
//   - Interpret token payloads.
package session
