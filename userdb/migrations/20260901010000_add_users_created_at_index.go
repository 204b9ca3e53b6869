package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw("CREATE INDEX IF NOT EXISTS users_created_at_idx ON users (created_at)").Exec(ctx)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw("DROP INDEX IF EXISTS users_created_at_idx").Exec(ctx)
		return err
	})
}
