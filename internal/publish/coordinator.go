// Package publish turns a stored post into channel deliveries.
//
// Delivery order and failure policy are deliberate: the post is marked
// Published first (so a crash mid-delivery never re-queues it), then VK is
// attempted with failures logged and swallowed, then the Telegram channel,
// whose failure propagates to the caller.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/LigeronAhill/smmaster/internal/backend"
	"github.com/LigeronAhill/smmaster/internal/model"
	"github.com/LigeronAhill/smmaster/pkg/logx"
)

// Broadcaster delivers a post to the Telegram channel.
type Broadcaster interface {
	Broadcast(ctx context.Context, p *model.Post) error
}

// WallPoster delivers a post to the VK group wall.
type WallPoster interface {
	WallPost(ctx context.Context, text, attachment string) error
}

type Coordinator struct {
	posts *backend.Posts
	tg    Broadcaster
	vk    WallPoster
	log   logx.Logger

	// CallTimeout bounds each outbound channel call.
	CallTimeout time.Duration
}

func NewCoordinator(posts *backend.Posts, tg Broadcaster, vk WallPoster, log logx.Logger) *Coordinator {
	return &Coordinator{
		posts:       posts,
		tg:          tg,
		vk:          vk,
		log:         log.With(logx.String("comp", "publish")),
		CallTimeout: 30 * time.Second,
	}
}

// PublishNow publishes regardless of current status: mark Published,
// persist, deliver.
func (c *Coordinator) PublishNow(ctx context.Context, id uuid.UUID) (*model.Post, error) {
	p, err := c.posts.PublishNow(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.deliver(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// PublishDue is the scheduler path. It re-fetches the post and only acts if
// it is still Pending; a post published or deleted since the scan is a
// silent no-op.
func (c *Coordinator) PublishDue(ctx context.Context, id uuid.UUID) error {
	p, err := c.posts.Get(ctx, id)
	if errors.Is(err, backend.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if p.Status != model.StatusPending {
		return nil
	}
	_, err = c.PublishNow(ctx, id)
	return err
}

func (c *Coordinator) deliver(ctx context.Context, p *model.Post) error {
	// VK first. Its failure must never block the Telegram channel.
	if err := c.postVK(ctx, p); err != nil {
		c.log.Error("vk delivery failed",
			logx.String("post_id", p.ID.String()), logx.Err(err))
	}

	if err := c.broadcastTelegram(ctx, p); err != nil {
		return fmt.Errorf("telegram delivery: %w", err)
	}

	c.log.Info("post delivered", logx.String("post_id", p.ID.String()))
	return nil
}

func (c *Coordinator) postVK(ctx context.Context, p *model.Post) error {
	ctx, cancel := context.WithTimeout(ctx, c.CallTimeout)
	defer cancel()

	attachment := p.VKPhotoID
	if attachment == "" {
		attachment = p.VKVideoID
	}
	return c.vk.WallPost(ctx, p.Content, attachment)
}

func (c *Coordinator) broadcastTelegram(ctx context.Context, p *model.Post) error {
	ctx, cancel := context.WithTimeout(ctx, c.CallTimeout)
	defer cancel()
	return c.tg.Broadcast(ctx, p)
}
