// Command server runs the storage-access service as a long-lived HTTP
// process: the Manager Facade with its per-kind adapter chains plus the
// introspection/config API, with graceful shutdown and, in development,
// hot-reloaded configuration.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

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

	// Hot reload in development only: pushes new call-timeout and
	// cache/queue parameters into the running manager.
	if cfg.IsDevelopment() {
		if path := os.Getenv("SYNCDAL_CONFIG"); path != "" {
			watcher, err := config.NewWatcher(path, cfg, logger)
			if err != nil {
				logger.Warn("config watcher unavailable", zap.Error(err))
			} else {
				watcher.OnChange(func(next *config.Config) {
					di.ApplyConfig(container, next)
				})
				watcher.Start()
				defer watcher.Stop()
			}
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      container.Handler,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("server failed", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	container.Shutdown(shutdownCtx)
	logger.Info("server stopped")
}
