// Package migrations registers the users schema migrations.
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the registry consumed by userdb.Migrate.
var Migrations = migrate.NewMigrations()
