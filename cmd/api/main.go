package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vendorhub/internal/auth"
	"vendorhub/internal/config"
	"vendorhub/internal/db"
	internalhttp "vendorhub/internal/http"
	"vendorhub/internal/leads"
	"vendorhub/internal/lifecycle"
	"vendorhub/internal/logging"
	"vendorhub/internal/payments"
	"vendorhub/internal/remote"
	"vendorhub/internal/store"
)

func main() {
	logger := logging.NewSugaredLogger()
	defer logger.Sync()

	cfg, err := config.Load("")
	if err != nil {
		logger.Fatalw("config load failed", "error", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatalw("db connect failed", "error", err)
	}
	defer pool.Close()

	st := store.New(pool)
	client := remote.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Token, cfg.UpstreamTimeout(), logger)
	settler := payments.NewService(client, st, logger)
	controller := lifecycle.NewController(client, settler, st, logger)
	leadManager := leads.NewManager(client, controller, logger, cfg.LeadPollInterval(), cfg.DecisionWindow(), cfg.LeadMaxBackoff())
	sessions := auth.NewManager(cfg.Session.SigningKey, cfg.SessionTTL())

	h := internalhttp.NewHandler(controller, leadManager, client, sessions, logger)
	srv := internalhttp.NewServer(h)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router,
	}

	go func() {
		logger.Infow("api listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("server error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}
