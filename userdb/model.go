package userdb

import (
	"time"

	"github.com/MrEthical07/authcache"
	"github.com/uptrace/bun"
)

// User is a row of the users table.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

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

func (u *User) principal() *authcache.Principal {
	return &authcache.Principal{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		PasswordSalt: u.PasswordSalt,
		OTPSecret:    u.OTPSecret,
		ProfileID:    u.ProfileID,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
