package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdhttp "net/http"
	"time"

	"quakescope/internal/app"
	"quakescope/internal/config"
	"quakescope/internal/handler"
	"quakescope/internal/queue"
	"quakescope/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// Run serves the alert API until ctx is cancelled, then drains in-flight
// requests and stops the event intake workers.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// 1. Wire the alert pipeline
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}
	defer a.Close()

	// 2. Event intake from the Redis stream
	if cfg.EventIntakeEnabled {
		manager, err := startIntake(ctx, a)
		if err != nil {
			return err
		}
		defer manager.Stop()
	}

	// 3. Setup Server
	router := NewRouter(RouterConfig{
		AlertHandler:      handler.NewAlertHandler(a.Alerts, logger),
		CORSAllowOrigins:  cfg.CORSAllowOrigins,
		RateLimitEnabled:  cfg.RateLimitEnabled,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	})

	// No WriteTimeout: broadcasts dispatch synchronously and scale with the token count.
	srv := &stdhttp.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting QuakeScope alert service",
			"addr", srv.Addr,
			"store", cfg.StoreBackend,
			"gateway", cfg.PushGateway,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func startIntake(ctx context.Context, a *app.App) (*worker.Manager, error) {
	client, err := a.Redis(ctx)
	if err != nil {
		return nil, fmt.Errorf("event intake: %w", err)
	}

	cfg := worker.DefaultManagerConfig()
	cfg.WorkerCount = a.Config.EventIntakeWorkers

	manager := worker.NewManager(
		queue.NewConsumer(client.Client, a.Logger),
		worker.NewHandler(a.Alerts, a.Logger),
		cfg,
		a.Logger,
	)
	if err := manager.Start(ctx); err != nil {
		return nil, fmt.Errorf("event intake: %w", err)
	}
	return manager, nil
}
