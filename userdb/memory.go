package userdb

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/authcache"
)

// Memory is an in-process UserSource for development servers and load tests.
// Data does not survive a restart.
type Memory struct {
	mu      sync.RWMutex
	byID    map[int64]authcache.Principal
	byEmail map[string]int64
	nextID  int64
	now     func() time.Time
}

var _ authcache.UserSource = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		byID:    make(map[int64]authcache.Principal),
		byEmail: make(map[string]int64),
		now:     time.Now,
	}
}

func (m *Memory) FindUser(_ context.Context, lookup authcache.Lookup) (*authcache.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := lookup.ID()
	if !ok {
		email, byEmail := lookup.Email()
		if !byEmail {
			return nil, nil
		}
		if id, ok = m.byEmail[email]; !ok {
			return nil, nil
		}
	}
	p, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) CreateUser(_ context.Context, nu authcache.NewUser) (*authcache.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byEmail[nu.Email]; taken {
		return nil, authcache.ErrAccountExists
	}
	m.nextID++
	now := m.now().UTC()
	p := authcache.Principal{
		ID:           m.nextID,
		Name:         nu.Name,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		PasswordSalt: nu.PasswordSalt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.byID[p.ID] = p
	m.byEmail[p.Email] = p.ID
	return &p, nil
}

func (m *Memory) update(id int64, fn func(*authcache.Principal)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byID[id]
	if !ok {
		return authcache.ErrUserNotFound
	}
	fn(&p)
	p.UpdatedAt = m.now().UTC()
	m.byID[id] = p
	return nil
}

func (m *Memory) UpdatePassword(_ context.Context, id int64, hash, salt string) error {
	return m.update(id, func(p *authcache.Principal) {
		p.PasswordHash, p.PasswordSalt = hash, salt
	})
}

func (m *Memory) SetOTPSecret(_ context.Context, id int64, secret string) error {
	return m.update(id, func(p *authcache.Principal) {
		p.OTPSecret = secret
	})
}

func (m *Memory) ListUsers(_ context.Context, opts authcache.ListOptions) ([]authcache.Principal, error) {
	m.mu.RLock()
	all := make([]authcache.Principal, 0, len(m.byID))
	for _, p := range m.byID {
		all = append(all, p)
	}
	m.mu.RUnlock()

	less := func(a, b authcache.Principal) bool { return a.ID < b.ID }
	switch opts.OrderBy() {
	case "name":
		less = func(a, b authcache.Principal) bool { return a.Name < b.Name }
	case "email":
		less = func(a, b authcache.Principal) bool { return a.Email < b.Email }
	case "created_at":
		less = func(a, b authcache.Principal) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
	sort.SliceStable(all, func(i, j int) bool { return less(all[i], all[j]) })

	start := opts.Offset()
	if start >= len(all) {
		return []authcache.Principal{}, nil
	}
	end := min(start+opts.PageSize(), len(all))
	return all[start:end], nil
}
