package userdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcache"
	"github.com/uptrace/bun"
)

// pgUniqueViolation is the SQLSTATE of a unique constraint failure.
const pgUniqueViolation = "23505"

// Repository implements authcache.UserSource on top of bun.
type Repository struct {
	db bun.IDB
}

var _ authcache.UserSource = (*Repository)(nil)

// NewRepository accepts a *bun.DB or a bun.Tx.
func NewRepository(db bun.IDB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindUser(ctx context.Context, lookup authcache.Lookup) (*authcache.Principal, error) {
	var u User
	q, err := r.selectUser(&u, lookup)
	if err != nil {
		return nil, err
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("userdb: find user %s: %w", lookup, err)
	}
	return u.principal(), nil
}

func (r *Repository) selectUser(u *User, lookup authcache.Lookup) (*bun.SelectQuery, error) {
	q := r.db.NewSelect().Model(u).Limit(1)
	if id, ok := lookup.ID(); ok {
		return q.Where("u.id = ?", id), nil
	}
	if email, ok := lookup.Email(); ok {
		return q.Where("u.email = ?", email), nil
	}
	return nil, fmt.Errorf("userdb: unsupported lookup %s", lookup)
}

func (r *Repository) CreateUser(ctx context.Context, nu authcache.NewUser) (*authcache.Principal, error) {
	u := User{
		Name:         nu.Name,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		PasswordSalt: nu.PasswordSalt,
	}
	if _, err := r.insertUser(&u).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, authcache.ErrAccountExists
		}
		return nil, fmt.Errorf("userdb: create user: %w", err)
	}
	return u.principal(), nil
}

func (r *Repository) insertUser(u *User) *bun.InsertQuery {
	return r.db.NewInsert().Model(u).Returning("*")
}

func (r *Repository) UpdatePassword(ctx context.Context, id int64, hash, salt string) error {
	q := r.db.NewUpdate().
		Model((*User)(nil)).
		Set("password_hash = ?", hash).
		Set("password_salt = ?", salt).
		Set("updated_at = current_timestamp").
		Where("id = ?", id)
	return r.execOne(ctx, q, "update password")
}

func (r *Repository) SetOTPSecret(ctx context.Context, id int64, secret string) error {
	q := r.db.NewUpdate().
		Model((*User)(nil)).
		Set("otp_secret = ?", secret).
		Set("updated_at = current_timestamp").
		Where("id = ?", id)
	return r.execOne(ctx, q, "set otp secret")
}

func (r *Repository) execOne(ctx context.Context, q *bun.UpdateQuery, op string) error {
	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("userdb: %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("userdb: %s: %w", op, err)
	}
	if n == 0 {
		return authcache.ErrUserNotFound
	}
	return nil
}

func (r *Repository) ListUsers(ctx context.Context, opts authcache.ListOptions) ([]authcache.Principal, error) {
	var users []User
	if err := r.listUsers(&users, opts).Scan(ctx); err != nil {
		return nil, fmt.Errorf("userdb: list users: %w", err)
	}

	out := make([]authcache.Principal, 0, len(users))
	for i := range users {
		out = append(out, *users[i].principal())
	}
	return out, nil
}

func (r *Repository) listUsers(users *[]User, opts authcache.ListOptions) *bun.SelectQuery {
	// OrderBy is whitelisted by ListOptions.
	return r.db.NewSelect().
		Model(users).
		Order("u."+opts.OrderBy()+" ASC").
		Limit(opts.PageSize()).
		Offset(opts.Offset())
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ Field(byte) string }
	return errors.As(err, &pgErr) && pgErr.Field('C') == pgUniqueViolation
}
