package migrations

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// usersTable mirrors userdb.User at the time of this migration.
type usersTable struct {
	bun.BaseModel `bun:"table:users"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Name         string    `bun:",notnull"`
	Email        string    `bun:",unique,notnull"`
	PasswordHash string    `bun:",notnull"`
	PasswordSalt string    `bun:",notnull"`
	OTPSecret    string    `bun:"otp_secret,nullzero"`
	ProfileID    *int64    `bun:",nullzero"`
	CreatedAt    time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewCreateTable().
			Model((*usersTable)(nil)).
			IfNotExists().
			Exec(ctx)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewDropTable().Model((*usersTable)(nil)).IfExists().Exec(ctx)
		return err
	})
}
