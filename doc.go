// Package authcache is an authentication and session layer fronted by a
// look-aside cache. It verifies JWT access tokens against a denylist,
// resolves principals through a stampede-guarded cache over a relational
// [UserSource], and manages the token lifecycle: signup, login, logout,
// refresh rotation, password reset and one-time codes.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Architecture boundaries
//
// authcache is the public surface. It exposes [Engine], [Builder], [Config]
// and value types. Storage mechanics live in kv, cache and session; token
// encoding in jwt; hashing in password; code generation in otp. HTTP
// concerns live in middleware.
//
// # What this package must NOT do
//
//   - Expose Redis clients or key layouts in its public API.
//   - Perform I/O outside of Engine methods (Build only allocates).
//   - Import any sub-package that re-imports authcache.
//
// # Failure semantics
//
// The cache is an optimisation: when the key-value store is unreachable,
// principal lookups fall through to the UserSource and denylist checks treat
// tokens as live. Writes the caller relies on (denylist entries, refresh
// records, reset pointers) surface [ErrStoreUnavailable].
package authcache
