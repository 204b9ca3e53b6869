package authcache

import (
	"context"
	"strconv"
	"time"
)

// Principal is the authenticated subject as resolved from the user source.
// The cached snapshot keeps credential fields so Login and OTP checks can be
// served from it; use View for anything leaving the process.
type Principal struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	PasswordSalt string    `json:"password_salt"`
	OTPSecret    string    `json:"otp_secret,omitempty"`
	ProfileID    *int64    `json:"profile_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PrincipalView is the outward representation of a Principal.
type PrincipalView struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	ProfileID *int64    `json:"profile_id,omitempty"`
	OTP       bool      `json:"otp_enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// View strips credential material.
func (p *Principal) View() PrincipalView {
	return PrincipalView{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		ProfileID: p.ProfileID,
		OTP:       p.OTPSecret != "",
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// TokenPair is an access token and its companion refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Ack acknowledges an operation that has no other result.
type Ack struct {
	Message string `json:"message"`
}

// SignupInput carries a new account's details.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// NewUser is what the Engine hands to UserSource.CreateUser: the plaintext
// password has already been replaced by its digest.
type NewUser struct {
	Name         string
	Email        string
	PasswordHash string
	PasswordSalt string
}

type lookupKind uint8

const (
	lookupByID lookupKind = iota + 1
	lookupByEmail
)

// Lookup selects one user. Construct it with LookupByID or LookupByEmail.
type Lookup struct {
	kind  lookupKind
	id    int64
	email string
}

// LookupByID selects the user with the given id.
func LookupByID(id int64) Lookup { return Lookup{kind: lookupByID, id: id} }

// LookupByEmail selects the user with the given email.
func LookupByEmail(email string) Lookup { return Lookup{kind: lookupByEmail, email: email} }

// ID returns the id and true for an id lookup.
func (l Lookup) ID() (int64, bool) { return l.id, l.kind == lookupByID }

// Email returns the email and true for an email lookup.
func (l Lookup) Email() (string, bool) { return l.email, l.kind == lookupByEmail }

func (l Lookup) String() string {
	switch l.kind {
	case lookupByID:
		return "id=" + strconv.FormatInt(l.id, 10)
	case lookupByEmail:
		return "email=" + l.email
	default:
		return "invalid"
	}
}

// ListOptions pages through users. It is an immutable value: the With
// methods return modified copies.
type ListOptions struct {
	page     int
	pageSize int
	orderBy  string
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// DefaultListOptions returns page 1 of 20 users ordered by id.
func DefaultListOptions() ListOptions {
	return ListOptions{page: 1, pageSize: defaultPageSize, orderBy: "id"}
}

// WithPage returns a copy positioned on page (1-based).
func (o ListOptions) WithPage(page int) ListOptions {
	if page < 1 {
		page = 1
	}
	o.page = page
	return o
}

// WithPageSize returns a copy with size clamped to [1, 100].
func (o ListOptions) WithPageSize(size int) ListOptions {
	switch {
	case size < 1:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}
	o.pageSize = size
	return o
}

// WithOrderBy returns a copy ordered by column. Unsupported columns fall back
// to "id".
func (o ListOptions) WithOrderBy(column string) ListOptions {
	switch column {
	case "id", "name", "email", "created_at":
		o.orderBy = column
	default:
		o.orderBy = "id"
	}
	return o
}

func (o ListOptions) Page() int {
	if o.page < 1 {
		return 1
	}
	return o.page
}

func (o ListOptions) PageSize() int {
	if o.pageSize < 1 {
		return defaultPageSize
	}
	return o.pageSize
}

func (o ListOptions) OrderBy() string {
	if o.orderBy == "" {
		return "id"
	}
	return o.orderBy
}

// Offset is the number of rows preceding the page.
func (o ListOptions) Offset() int { return (o.Page() - 1) * o.PageSize() }

// UserSource is the relational store behind the cache. Implementations must
// be safe for concurrent use.
type UserSource interface {
	// FindUser returns (nil, nil) when no user matches.
	FindUser(ctx context.Context, lookup Lookup) (*Principal, error)
	// CreateUser returns ErrAccountExists when the email is taken.
	CreateUser(ctx context.Context, user NewUser) (*Principal, error)
	UpdatePassword(ctx context.Context, id int64, hash, salt string) error
	SetOTPSecret(ctx context.Context, id int64, secret string) error
	ListUsers(ctx context.Context, opts ListOptions) ([]Principal, error)
}
