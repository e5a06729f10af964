package app

import (
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/arena-signals/internal/arenas"
	"github.com/oggyb/arena-signals/internal/cache"
	"github.com/oggyb/arena-signals/internal/chat"
	"github.com/oggyb/arena-signals/internal/config"
	"github.com/oggyb/arena-signals/internal/feed"
	"github.com/oggyb/arena-signals/internal/jobs/cleanup"
	"github.com/oggyb/arena-signals/internal/matching"
	"github.com/oggyb/arena-signals/internal/moderation"
	"github.com/oggyb/arena-signals/internal/notify"
	"github.com/oggyb/arena-signals/internal/store"
)

// AppContext holds shared dependencies (DB, Redis, Logger, etc.) and the
// domain services built on them.
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	Store      *store.Store
	RedisCache *cache.RedisCache
	Feed       *feed.Feed
	Logger     *slog.Logger

	Matching   *matching.Service
	Chat       *chat.Service
	Moderation *moderation.Service
	Arenas     *arenas.Service
	Cleanup    *cleanup.Job
}

// Deps are the infrastructure pieces New wires together. Feed and
// Notifier are optional.
type Deps struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Feed       *feed.Feed
	Notifier   notify.Dispatcher
	Logger     *slog.Logger
	Now        func() time.Time
}

// New creates a new AppContext. The store publishes committed changes on
// the feed when one is given.
func New(d Deps) *AppContext {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Config == nil {
		d.Config = config.New()
	}

	opts := store.Options{
		MaxAttempts:  d.Config.Store.MaxAttempts,
		RetryBackoff: d.Config.Store.RetryBackoff,
		Now:          d.Now,
		Logger:       d.Logger,
	}
	if d.Feed != nil {
		opts.Publisher = d.Feed
	}
	st := store.New(d.DB, opts)

	var counts matching.CountCache
	if d.RedisCache != nil {
		counts = d.RedisCache
	}

	return &AppContext{
		Config:     d.Config,
		DB:         d.DB,
		Store:      st,
		RedisCache: d.RedisCache,
		Feed:       d.Feed,
		Logger:     d.Logger,
		Matching: matching.New(matching.Deps{
			Store:    st,
			Notifier: d.Notifier,
			Counts:   counts,
			Logger:   d.Logger.With("service", "matching"),
		}),
		Chat:       chat.New(st, d.Logger.With("service", "chat")),
		Moderation: moderation.New(st, d.Logger.With("service", "moderation")),
		Arenas:     arenas.New(st),
		Cleanup:    cleanup.New(st, counts, d.Logger.With("service", "cleanup")),
	}
}
