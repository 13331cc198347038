package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/LigeronAhill/smmaster/internal/model"
)

var (
	// ErrNotFound marks absence of a single requested entity. List
	// operations never return it; an empty page is a normal result.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidPage marks a page request outside the allowed bounds.
	ErrInvalidPage = errors.New("store: invalid page request")
)

const (
	MinPageSize = 10
	MaxPageSize = 100
)

// Page is a validated pagination request. Number is 1-based.
type Page struct {
	Number int
	Size   int
}

func (p Page) Validate() error {
	if p.Number < 1 || p.Size < MinPageSize || p.Size > MaxPageSize {
		return ErrInvalidPage
	}
	return nil
}

func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// TotalPages computes ceil(total/size); 0 for an empty result set.
func TotalPages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

type Sort int

const (
	SortCreatedDesc Sort = iota
	SortCreatedAsc
)

// PostFilter narrows post listings. Nil fields mean "any".
type PostFilter struct {
	AuthorID *uuid.UUID
	Status   *model.Status
}

// UserFilter narrows user listings.
type UserFilter struct {
	Role *model.Role
}

// PostList is one page of posts plus the numbers the UI needs to page on.
type PostList struct {
	Posts      []*model.Post
	TotalCount int
	Page       int
	TotalPages int
}

func (l PostList) HasNext() bool { return l.TotalPages > l.Page }

type UserList struct {
	Users      []*model.User
	TotalCount int
	Page       int
	TotalPages int
}

func (l UserList) HasNext() bool { return l.TotalPages > l.Page }

// PostStore persists posts. Update replaces the whole row by ID
// (last writer wins).
type PostStore interface {
	CreatePost(ctx context.Context, p *model.Post) error
	GetPost(ctx context.Context, id uuid.UUID) (*model.Post, error)
	UpdatePost(ctx context.Context, p *model.Post) (*model.Post, error)
	DeletePost(ctx context.Context, id uuid.UUID) error
	ListPosts(ctx context.Context, f PostFilter, page Page, sort Sort) (PostList, error)

	// ListDuePosts returns every pending post whose publish time is at
	// or before now, oldest first. Unpaged; meant for diagnostics and
	// targeted queries, the scheduler walks the paged listings.
	ListDuePosts(ctx context.Context, now time.Time) ([]*model.Post, error)
}

// UserStore persists users, unique on TelegramID.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	UpdateUser(ctx context.Context, u *model.User) (*model.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ListUsers(ctx context.Context, f UserFilter, page Page, sort Sort) (UserList, error)
	CountUsers(ctx context.Context, f UserFilter) (int, error)
}

// Store is the full persistence surface.
type Store interface {
	PostStore
	UserStore
	Close() error
}
