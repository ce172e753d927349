package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vendorhub/internal/config"
	"vendorhub/internal/db"
	"vendorhub/internal/logging"
	"vendorhub/internal/remote"
	"vendorhub/internal/store"
	"vendorhub/internal/worker"
)

func main() {
	logger := logging.NewSugaredLogger()
	defer logger.Sync()

	cfg, err := config.Load("")
	if err != nil {
		logger.Fatalw("config load failed", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatalw("db connect failed", "error", err)
	}
	defer pool.Close()

	w := &worker.Worker{
		Store:     store.New(pool),
		Remote:    remote.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Token, cfg.UpstreamTimeout(), logger),
		Logger:    logger,
		Interval:  time.Duration(cfg.Reconciler.IntervalSeconds) * time.Second,
		BatchSize: cfg.Reconciler.BatchSize,
	}

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		cancel()
	}()

	logger.Infow("reconciler started", "interval", w.Interval)
	w.Run(ctx)
}
