package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/ragcrawl/internal/app"
	"github.com/markdave123-py/ragcrawl/internal/config"
	"github.com/markdave123-py/ragcrawl/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogDebug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	application, err := app.NewApp(ctx, cfg, log, app.Options{})
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer application.Close()

	application.StartWorkers(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- application.Server.Start() }()
	log.Info("ragcrawl is running", zap.String("port", cfg.Port))

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error("server error", zap.Error(err))
		}
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := application.Server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if err := application.Crawls.Shutdown(shutdownCtx); err != nil {
		log.Warn("crawl shutdown", zap.Error(err))
	}
}
