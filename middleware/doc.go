// Package middleware adapts the Engine to net/http: an authentication
// middleware, token extraction from request headers and the JSON response
// envelope shared by the server's handlers.
//
// # Headers
//
//   - Authorization carries the access token, either as "Bearer <token>" or
//     as the raw token.
//   - refresh_token carries the refresh token.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic; every decision is delegated to
// Authenticate on the wrapped [Authenticator].
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Access the key-value store.
package middleware
