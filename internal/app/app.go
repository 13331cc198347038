// Package app assembles the bot: config, logging, storage, the backend
// services, both delivery channels and the publish scheduler.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/LigeronAhill/smmaster/internal/access"
	"github.com/LigeronAhill/smmaster/internal/backend"
	"github.com/LigeronAhill/smmaster/internal/config"
	"github.com/LigeronAhill/smmaster/internal/publish"
	"github.com/LigeronAhill/smmaster/internal/runtime/supervisor"
	"github.com/LigeronAhill/smmaster/internal/session"
	"github.com/LigeronAhill/smmaster/internal/store"
	"github.com/LigeronAhill/smmaster/internal/transport/telegram"
	"github.com/LigeronAhill/smmaster/internal/vk"
	"github.com/LigeronAhill/smmaster/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	db       store.Store
	users    *backend.Users
	posts    *backend.Posts
	gate     *access.Gate
	sessions *session.Manager

	vk    *vk.Client
	bot   *telegram.Bot
	coord *publish.Coordinator
	sched *publish.Scheduler

	cron *cron.Cron
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	db, err := store.Open(store.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: cfg.BusyTimeout(),
	})
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	users := backend.NewUsers(db, log.With(logx.String("comp", "users")))
	posts := backend.NewPosts(db, log.With(logx.String("comp", "posts")))
	gate := access.NewGate(users, log.With(logx.String("comp", "access")))
	sessions := session.NewManager(log.With(logx.String("comp", "sessions")))

	vkc := vk.New(vk.Config{
		Token:      cfg.VK.Token,
		GroupID:    cfg.VK.GroupID,
		AlbumTitle: cfg.VK.AlbumTitle,
		RatePerSec: cfg.VKRatePerSec(),
	}, log.With(logx.String("comp", "vk")))

	bot, err := telegram.New(telegram.Config{
		Token:           cfg.Telegram.Token,
		ChannelID:       cfg.Telegram.ChannelID,
		PollTimeout:     cfg.PollTimeout(),
		DisplayLocation: cfg.DisplayLocation(),
	}, gate, users, posts, sessions, vkc, log)
	if err != nil {
		_ = db.Close()
		_ = logSvc.Close()
		return nil, err
	}

	coord := publish.NewCoordinator(posts, bot, vkc, log.With(logx.String("comp", "publish")))
	coord.CallTimeout = cfg.PublishCallTimeout()
	bot.SetCoordinator(coord)

	sched := publish.NewScheduler(users, posts, coord, log.With(logx.String("comp", "scheduler")))
	sched.Interval = cfg.PublishInterval()

	return &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		db:       db,
		users:    users,
		posts:    posts,
		gate:     gate,
		sessions: sessions,
		vk:       vkc,
		bot:      bot,
		coord:    coord,
		sched:    sched,
	}, nil
}

// Done is closed when the run context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true))

	// Album resolution is best-effort: wall posting works without it, only
	// photo re-hosting needs the album.
	initCtx, cancel := context.WithTimeout(a.sup.Context(), 10*time.Second)
	if err := a.vk.Init(initCtx, a.cfgm.Get().VK.AlbumTitle); err != nil {
		a.log.Warn("vk album lookup failed; photo uploads will fail until it succeeds",
			logx.Err(err))
	}
	cancel()

	a.bot.Start(a.sup.Context())

	a.sup.Go("publish.scheduler", a.sched.Run)

	// Config file watch: hot-reload is limited to logging; everything else
	// logs a restart hint.
	a.sup.Go0("config.watch", func(c context.Context) {
		if err := a.cfgm.Watch(c); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	})
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.logs.Apply(logx.Config{
					Level:   cfg.Logging.Level,
					Console: cfg.Logging.Console,
					File: logx.FileConfig{
						Enabled: cfg.Logging.File.Enabled,
						Path:    cfg.Logging.File.Path,
					},
				})
				a.log.Info("config reloaded; non-logging changes need a restart")
			}
		}
	})

	// Nightly session sweep.
	cfg := a.cfgm.Get()
	ttl := cfg.SessionTTL()
	a.cron = cron.New()
	if _, err := a.cron.AddFunc(cfg.SessionSweepSpec(), func() {
		if n := a.sessions.Sweep(ttl); n > 0 {
			a.log.Info("stale sessions swept", logx.Int("count", n))
		}
	}); err != nil {
		return fmt.Errorf("session sweep schedule: %w", err)
	}
	a.cron.Start()

	a.log.Info("started",
		logx.String("config", a.cfgPath),
		logx.Duration("publish_interval", a.sched.Interval))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	a.sup.Cancel()

	if a.cron != nil {
		select {
		case <-a.cron.Stop().Done():
		case <-ctx.Done():
		}
	}
	if err := a.bot.Stop(ctx); err != nil {
		a.log.Warn("bot stop", logx.Err(err))
	}
	err := a.sup.Stop(ctx)

	if cerr := a.db.Close(); cerr != nil {
		a.log.Warn("storage close", logx.Err(cerr))
	}
	_ = a.logs.Close()
	return err
}
