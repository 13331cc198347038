// Package telegram is the bot transport: command routing, the post-intake
// dialogue, inline callbacks, and delivery to the broadcast channel.
package telegram

import (
	"context"
	"fmt"
	"io"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/LigeronAhill/smmaster/internal/access"
	"github.com/LigeronAhill/smmaster/internal/backend"
	"github.com/LigeronAhill/smmaster/internal/publish"
	"github.com/LigeronAhill/smmaster/internal/runtime/supervisor"
	"github.com/LigeronAhill/smmaster/internal/session"
	"github.com/LigeronAhill/smmaster/pkg/logx"
)

// MediaUploader re-hosts Telegram media on VK so posts carry refs for both
// channels.
type MediaUploader interface {
	UploadPhoto(ctx context.Context, r io.Reader, filename string) (string, error)
	UploadVideo(ctx context.Context, r io.Reader, filename string) (string, error)
}

type Config struct {
	Token       string
	ChannelID   int64
	PollTimeout time.Duration

	// DisplayLocation is the fixed offset publish dates are entered in and
	// timestamps are rendered in.
	DisplayLocation *time.Location
}

type Bot struct {
	bot *tele.Bot
	cfg Config
	log logx.Logger

	gate     *access.Gate
	users    *backend.Users
	posts    *backend.Posts
	sessions *session.Manager
	uploader MediaUploader

	// coordinator is set after construction (it needs the Bot as its
	// Broadcaster), see SetCoordinator.
	coordinator *publish.Coordinator

	sup *supervisor.Supervisor
}

func New(
	cfg Config,
	gate *access.Gate,
	users *backend.Users,
	posts *backend.Posts,
	sessions *session.Manager,
	uploader MediaUploader,
	log logx.Logger,
) (*Bot, error) {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.FixedZone("UTC+3", 3*3600)
	}

	b := &Bot{
		cfg:      cfg,
		log:      log.With(logx.String("comp", "telegram")),
		gate:     gate,
		users:    users,
		posts:    posts,
		sessions: sessions,
		uploader: uploader,
	}

	tb, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout},
		OnError: func(err error, c tele.Context) {
			fields := []logx.Field{logx.Err(err)}
			if c != nil && c.Sender() != nil {
				fields = append(fields, logx.Int64("sender", c.Sender().ID))
			}
			b.log.Error("handler error", fields...)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	b.bot = tb

	b.registerHandlers()
	return b, nil
}

// SetCoordinator wires the publish coordinator in after construction; the
// coordinator's Telegram side is this very bot.
func (b *Bot) SetCoordinator(c *publish.Coordinator) { b.coordinator = c }

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.onStart)
	b.bot.Handle("/help", b.onHelp)
	b.bot.Handle("/cancel", b.onCancel)
	b.bot.Handle("/skip", b.onSkip)
	b.bot.Handle(tele.OnText, b.onText)
	b.bot.Handle(tele.OnPhoto, b.onPhoto)
	b.bot.Handle(tele.OnVideo, b.onVideo)
	b.bot.Handle(tele.OnCallback, b.onCallback)
}

// Start launches long polling under the supervisor. The poller is restarted
// with backoff on transient failures.
func (b *Bot) Start(ctx context.Context) {
	b.sup = supervisor.New(ctx, supervisor.WithLogger(b.log))
	b.sup.GoRestart("telebot.poll", func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			b.bot.Stop()
		}()
		b.bot.Start()
		return ctx.Err()
	}, supervisor.WithRestartBackoff(time.Second, time.Minute))
	b.log.Info("bot started", logx.Duration("poll_timeout", b.cfg.PollTimeout))
}

func (b *Bot) Stop(ctx context.Context) error {
	if b.sup == nil {
		return nil
	}
	return b.sup.Stop(ctx)
}
