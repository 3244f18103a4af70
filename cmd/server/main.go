package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"aforo/internal/app"
	"aforo/internal/config"
	"aforo/internal/handler"
	"aforo/internal/router"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = zap.L().Sync() }()

	a, err := app.New(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to wire application: %w", err)
	}
	defer a.Close()

	// Initialize handlers
	handlers := router.Handlers{
		Batch:  handler.NewBatchHandler(a.Pipeline),
		Review: handler.NewReviewHandler(a.Pipeline),
		Report: handler.NewReportHandler(a.Pipeline),
		Health: handler.NewHealthHandler(a.ReadinessChecks()),
	}
	r := router.Setup(handlers, a.Metrics, cfg.CORS.AllowedOrigins, cfg.S3.MaxFileSizeMB*1024*1024)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server starting",
			zap.String("addr", cfg.Server.Port),
			zap.String("environment", cfg.Server.Environment),
			zap.String("store", cfg.Store.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-stop:
		zap.L().Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
