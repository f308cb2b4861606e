// Package app builds the alert pipeline from configuration. The HTTP server,
// the stream workers and the CLI commands all start from here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"quakescope/internal/config"
	"quakescope/internal/credential"
	"quakescope/internal/database"
	qredis "quakescope/internal/redis"
	"quakescope/internal/repository"
	"quakescope/internal/service"
)

// App holds the wired components and the connections they own.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Credentials *credential.Provider
	Store       repository.RegistrationStore
	Dispatcher  *service.Dispatcher
	Alerts      *service.AlertService

	mu      sync.Mutex
	redis   *qredis.Client
	closers []func() error
}

// New wires the store backend, the credential provider, the push gateway and
// the alert service. Credentials are loaded lazily on the first push.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	backend, err := a.newBackend(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = repository.NewRegistrationStore(backend, cfg.DeliveryHistoryCap, logger)

	a.Credentials = credential.New(cfg.FCMServiceAccountPath, cfg.FCMProjectID, logger)

	gateway, err := a.newGateway()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Dispatcher = service.NewDispatcher(gateway, cfg.DispatchConcurrency, logger)
	a.Alerts = service.NewAlertService(a.Store, a.Dispatcher, logger)

	return a, nil
}

func (a *App) newBackend(ctx context.Context) (repository.RegistrationBackend, error) {
	cfg := a.Config
	switch cfg.StoreBackend {
	case config.StoreBackendFile, "":
		a.Logger.Info("using file store", "path", cfg.DeviceTokensPath)
		return repository.NewFileBackend(cfg.DeviceTokensPath), nil

	case config.StoreBackendPostgres:
		db, err := database.Connect(ctx, cfg, a.Logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		return repository.NewPostgresBackend(db), nil

	case config.StoreBackendRedis:
		client, err := a.Redis(ctx)
		if err != nil {
			return nil, err
		}
		a.Logger.Info("using redis store", "key", repository.RegistrationsKey)
		return repository.NewRedisBackend(client.Client), nil

	case config.StoreBackendS3:
		backend, err := repository.NewObjectBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.Logger.Info("using object store", "bucket", cfg.S3Bucket, "key", cfg.S3ObjectKey)
		return backend, nil

	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}

func (a *App) newGateway() (service.Gateway, error) {
	switch a.Config.PushGateway {
	case config.PushGatewayHTTP, "":
		return service.NewFCMHTTPGateway(a.Config.FCMAPIURL, a.Credentials, a.Config.FCMTimeout), nil
	case config.PushGatewayFirebase:
		return service.NewFirebaseGateway(a.Credentials, a.Logger), nil
	default:
		return nil, fmt.Errorf("unknown PUSH_GATEWAY %q", a.Config.PushGateway)
	}
}

// Redis returns the shared Redis client, connecting on first use.
func (a *App) Redis(ctx context.Context) (*qredis.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.redis != nil {
		return a.redis, nil
	}

	client, err := qredis.NewClient(a.Config.RedisURL)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, err
	}

	a.redis = client
	a.closers = append(a.closers, client.Close)
	a.Logger.Info("connected to redis")
	return client, nil
}

// Close releases every connection opened by New or Redis.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	a.redis = nil
	return errors.Join(errs...)
}
