// Package userdb is the PostgreSQL UserSource behind the principal cache.
//
// It owns the users table (see migrations) and nothing else. Queries go
// through bun with the pgdialect; the engine never sees a *bun.DB.
package userdb
