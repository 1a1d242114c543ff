// Command worker runs the storage-access service headless: the Manager
// Facade with its adapter chains and the completion-surface consumers
// (EventBridge audit publisher, WebSocket notifier), without the HTTP
// surface. Used where another process owns the API and this one owns the
// background commit/replication work.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"syncdal/internal/config"
	"syncdal/internal/di"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize container: %v", err)
	}
	logger := container.Logger

	logger.Info("worker started",
		zap.String("environment", string(cfg.Environment)),
		zap.Bool("events_enabled", cfg.Events.Enabled),
		zap.Bool("notify_enabled", cfg.Notify.Enabled),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	container.Shutdown(shutdownCtx)
	logger.Info("worker stopped")
}
