package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/LigeronAhill/smmaster/internal/model"
	"github.com/LigeronAhill/smmaster/internal/store"
	"github.com/LigeronAhill/smmaster/pkg/logx"
)

// PostDraft carries everything needed to create a post.
type PostDraft struct {
	AuthorTelegramID int64
	Title            string
	Content          string
	TGPhotoID        string
	VKPhotoID        string
	TGVideoID        string
	VKVideoID        string
}

// Posts is the write/read surface for post management.
type Posts struct {
	db  store.Store
	log logx.Logger

	// Now is swappable in tests.
	Now func() time.Time
}

func NewPosts(db store.Store, log logx.Logger) *Posts {
	return &Posts{db: db, log: log.With(logx.String("comp", "backend.posts")), Now: time.Now}
}

// Create resolves the author by telegram id and stores a new Draft.
func (s *Posts) Create(ctx context.Context, d PostDraft) (*model.Post, error) {
	author, err := s.db.GetUserByTelegramID(ctx, d.AuthorTelegramID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: author with telegram id %d", ErrNotFound, d.AuthorTelegramID)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve author: %w", err)
	}

	p, err := model.NewPost(author.ID, d.Title, d.Content, s.Now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	p.TGPhotoID = d.TGPhotoID
	p.VKPhotoID = d.VKPhotoID
	p.TGVideoID = d.TGVideoID
	p.VKVideoID = d.VKVideoID

	if err := s.db.CreatePost(ctx, p); err != nil {
		return nil, fmt.Errorf("store post: %w", err)
	}

	s.log.Info("post created",
		logx.String("post_id", p.ID.String()),
		logx.String("author_id", p.AuthorID.String()))
	return p, nil
}

func (s *Posts) Get(ctx context.Context, id uuid.UUID) (*model.Post, error) {
	p, err := s.db.GetPost(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: post %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return p, nil
}

// List pages through one author's posts in the given status, newest first.
func (s *Posts) List(ctx context.Context, authorID uuid.UUID, status model.Status, page store.Page) (store.PostList, error) {
	f := store.PostFilter{AuthorID: &authorID, Status: &status}
	list, err := s.db.ListPosts(ctx, f, page, store.SortCreatedDesc)
	if errors.Is(err, store.ErrInvalidPage) {
		return store.PostList{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if err != nil {
		return store.PostList{}, fmt.Errorf("list posts: %w", err)
	}
	return list, nil
}

// PublishNow flips the post to Published with the current time and persists
// it. Replacement is whole-row, last writer wins.
func (s *Posts) PublishNow(ctx context.Context, id uuid.UUID) (*model.Post, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.MarkPublished(s.Now())
	upd, err := s.db.UpdatePost(ctx, p)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: post %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	s.log.Info("post marked published", logx.String("post_id", id.String()))
	return upd, nil
}

// SetPublishDate schedules the post; it becomes Pending.
func (s *Posts) SetPublishDate(ctx context.Context, id uuid.UUID, at time.Time) (*model.Post, error) {
	if at.IsZero() {
		return nil, fmt.Errorf("%w: publish date is zero", ErrInvalidArgument)
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.SetPublishDate(at)
	upd, err := s.db.UpdatePost(ctx, p)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: post %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	s.log.Info("post scheduled",
		logx.String("post_id", id.String()),
		logx.Time("publish_at", at))
	return upd, nil
}

func (s *Posts) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.db.DeletePost(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: post %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	s.log.Info("post deleted", logx.String("post_id", id.String()))
	return nil
}
