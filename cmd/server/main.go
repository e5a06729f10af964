package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/oggyb/arena-signals/internal/app"
	"github.com/oggyb/arena-signals/internal/cache"
	"github.com/oggyb/arena-signals/internal/config"
	"github.com/oggyb/arena-signals/internal/db"
	"github.com/oggyb/arena-signals/internal/feed"
	"github.com/oggyb/arena-signals/internal/logger"
	"github.com/oggyb/arena-signals/internal/notify"
	"github.com/oggyb/arena-signals/internal/server"
	"github.com/oggyb/arena-signals/internal/service/admin"
	"github.com/oggyb/arena-signals/internal/service/arena"
)

func main() {
	envFile := pflag.String("env-file", ".env", "optional env file loaded before reading the environment")
	seed := pflag.Bool("seed", false, "reset the database with demo data before serving")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	if err := run(cfg, *seed); err != nil {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, seed bool) error {
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		return err
	}
	if seed {
		if err := db.SeedTestData(database); err != nil {
			return err
		}
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	defer redisCache.Close()
	if err := redisCache.Ping(ctx); err != nil {
		return err
	}

	changes := feed.New(redisCache.Client, cfg.Feed.Prefix, log)

	appCtx := app.New(app.Deps{
		Config:     cfg,
		DB:         database,
		RedisCache: redisCache,
		Feed:       changes,
		Notifier:   notify.FromConfig(cfg, log),
		Logger:     log,
	})

	// Server-side reaction to every signal write.
	signals, err := changes.Subscribe(ctx, (db.Signal{}).TableName())
	if err != nil {
		return err
	}
	defer signals.Close()
	go func() {
		if err := appCtx.Matching.RunTrigger(ctx, signals.Events()); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("signal trigger stopped", "err", err)
		}
	}()

	go appCtx.Cleanup.Loop(ctx, cfg.Cleanup.Interval)

	log.Info("starting gRPC server", "addr", cfg.GRPC.Host+":"+cfg.GRPC.Port)
	return server.StartGRPCServer(ctx, cfg, log,
		arena.NewRegistrar(appCtx),
		admin.NewRegistrar(appCtx),
	)
}
