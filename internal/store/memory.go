package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LigeronAhill/smmaster/internal/model"
)

// Memory is a map-backed driver for tests and throwaway runs. Entities are
// cloned on the way in and out so callers never share mutable state with
// the store.
type Memory struct {
	mu    sync.RWMutex
	posts map[uuid.UUID]*model.Post
	users map[uuid.UUID]*model.User
	seq   int64 // insertion counter, breaks created_at ties deterministically
	order map[uuid.UUID]int64
}

func NewMemory() *Memory {
	return &Memory{
		posts: make(map[uuid.UUID]*model.Post),
		users: make(map[uuid.UUID]*model.User),
		order: make(map[uuid.UUID]int64),
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) track(id uuid.UUID) {
	m.seq++
	m.order[id] = m.seq
}

// ---- posts ----

func (m *Memory) CreatePost(_ context.Context, p *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[p.ID] = p.Clone()
	m.track(p.ID)
	return nil
}

func (m *Memory) GetPost(_ context.Context, id uuid.UUID) (*model.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *Memory) UpdatePost(_ context.Context, p *model.Post) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.posts[p.ID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := p.Clone()
	cp.CreatedAt = old.CreatedAt
	m.posts[p.ID] = cp
	return cp.Clone(), nil
}

func (m *Memory) DeletePost(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return ErrNotFound
	}
	delete(m.posts, id)
	delete(m.order, id)
	return nil
}

func (m *Memory) ListPosts(_ context.Context, f PostFilter, page Page, s Sort) (PostList, error) {
	if err := page.Validate(); err != nil {
		return PostList{}, err
	}

	// The sort tie-break reads m.order, so the lock is held until the
	// sorted result is assembled.
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []*model.Post
	for _, p := range m.posts {
		if f.AuthorID != nil && p.AuthorID != *f.AuthorID {
			continue
		}
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		all = append(all, p.Clone())
	}
	orderOf := func(id uuid.UUID) int64 { return m.order[id] }

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if s == SortCreatedAsc {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		return orderOf(a.ID) < orderOf(b.ID)
	})

	total := len(all)
	return PostList{
		Posts:      slicePage(all, page),
		TotalCount: total,
		Page:       page.Number,
		TotalPages: TotalPages(total, page.Size),
	}, nil
}

func (m *Memory) ListDuePosts(_ context.Context, now time.Time) ([]*model.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []*model.Post
	for _, p := range m.posts {
		if p.Due(now) {
			due = append(due, p.Clone())
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].PublishAt.Before(due[j].PublishAt) })
	return due, nil
}

// ---- users ----

func (m *Memory) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u.Clone()
	m.track(u.ID)
	return nil
}

func (m *Memory) GetUser(_ context.Context, id uuid.UUID) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u.Clone(), nil
}

func (m *Memory) GetUserByTelegramID(_ context.Context, telegramID int64) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.TelegramID == telegramID {
			return u.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpdateUser(_ context.Context, u *model.User) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.users[u.ID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := u.Clone()
	cp.CreatedAt = old.CreatedAt
	m.users[u.ID] = cp
	return cp.Clone(), nil
}

func (m *Memory) DeleteUser(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	delete(m.order, id)
	return nil
}

func (m *Memory) ListUsers(_ context.Context, f UserFilter, page Page, s Sort) (UserList, error) {
	if err := page.Validate(); err != nil {
		return UserList{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []*model.User
	for _, u := range m.users {
		if f.Role != nil && u.Role != *f.Role {
			continue
		}
		all = append(all, u.Clone())
	}
	orderOf := func(id uuid.UUID) int64 { return m.order[id] }

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if s == SortCreatedAsc {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		return orderOf(a.ID) < orderOf(b.ID)
	})

	total := len(all)
	return UserList{
		Users:      slicePage(all, page),
		TotalCount: total,
		Page:       page.Number,
		TotalPages: TotalPages(total, page.Size),
	}, nil
}

func (m *Memory) CountUsers(_ context.Context, f UserFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, u := range m.users {
		if f.Role != nil && u.Role != *f.Role {
			continue
		}
		n++
	}
	return n, nil
}

func slicePage[T any](all []T, page Page) []T {
	lo := page.Offset()
	if lo >= len(all) {
		return nil
	}
	hi := lo + page.Size
	if hi > len(all) {
		hi = len(all)
	}
	return all[lo:hi]
}
