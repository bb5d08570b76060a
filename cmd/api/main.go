package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vaidashi/restaurant-pos/internal/api"
	"github.com/vaidashi/restaurant-pos/internal/config"
	"github.com/vaidashi/restaurant-pos/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	l.Info("Starting POS server...", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := api.NewServer(ctx, cfg, l)
	if err != nil {
		l.Error("Failed to initialise server", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)
	g.Go(func() error { return server.Run(gctx) })

	// Graceful shutdown on signal or when any of the above fails
	g.Go(func() error {
		<-gctx.Done()
		l.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		l.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}

	l.Info("Server exiting")
}
