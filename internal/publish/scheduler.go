package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/LigeronAhill/smmaster/internal/backend"
	"github.com/LigeronAhill/smmaster/internal/model"
	"github.com/LigeronAhill/smmaster/internal/store"
	"github.com/LigeronAhill/smmaster/pkg/logx"
)

const scanPageSize = 10

// Scheduler periodically scans for pending posts whose publish time has
// arrived. The delay is fixed: the next scan starts interval after the
// previous one finished, so a slow cycle never stacks up behind itself.
type Scheduler struct {
	users       *backend.Users
	posts       *backend.Posts
	coordinator *Coordinator
	log         logx.Logger

	Interval time.Duration
	Now      func() time.Time
}

func NewScheduler(users *backend.Users, posts *backend.Posts, coordinator *Coordinator, log logx.Logger) *Scheduler {
	return &Scheduler{
		users:       users,
		posts:       posts,
		coordinator: coordinator,
		log:         log.With(logx.String("comp", "scheduler")),
		Interval:    10 * time.Second,
		Now:         time.Now,
	}
}

// Run loops until ctx is canceled. A failed cycle is logged and abandoned;
// the next cycle rescans from scratch, so nothing is lost.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started", logx.Duration("interval", s.Interval))

	timer := time.NewTimer(s.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-timer.C:
		}

		if err := s.Cycle(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("publish cycle failed", logx.Err(err))
		}

		timer.Reset(s.Interval)
	}
}

// Cycle walks every user, then every pending post of that user, and
// publishes the due ones. The first error aborts the whole cycle.
func (s *Scheduler) Cycle(ctx context.Context) error {
	now := s.Now()

	for userPage := 1; ; userPage++ {
		users, err := s.users.List(ctx, nil, store.Page{Number: userPage, Size: scanPageSize}, store.SortCreatedAsc)
		if err != nil {
			return fmt.Errorf("list users page %d: %w", userPage, err)
		}

		for _, u := range users.Users {
			if err := s.publishDueFor(ctx, u, now); err != nil {
				return err
			}
		}

		if !users.HasNext() {
			return nil
		}
	}
}

func (s *Scheduler) publishDueFor(ctx context.Context, u *model.User, now time.Time) error {
	// Collect the author's whole pending set first. Publishing while still
	// paging would shrink the filtered set under the walk and shift later
	// pages past posts that are due this cycle.
	var pending []*model.Post
	for postPage := 1; ; postPage++ {
		page, err := s.posts.List(ctx, u.ID, model.StatusPending, store.Page{Number: postPage, Size: scanPageSize})
		if err != nil {
			return fmt.Errorf("list pending posts of %s page %d: %w", u.ID, postPage, err)
		}
		pending = append(pending, page.Posts...)
		if !page.HasNext() {
			break
		}
	}

	for _, p := range pending {
		if !p.Due(now) {
			continue
		}
		if err := s.coordinator.PublishDue(ctx, p.ID); err != nil {
			return fmt.Errorf("publish post %s: %w", p.ID, err)
		}
	}
	return nil
}
