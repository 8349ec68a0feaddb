// Package server wires configuration, storage, services and handlers into
// a running HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/musician-app/apiserver/config"
	"github.com/musician-app/apiserver/internal/db"
	"github.com/musician-app/apiserver/internal/engine"
	"github.com/musician-app/apiserver/internal/entitlement"
	"github.com/musician-app/apiserver/internal/handlers"
	"github.com/musician-app/apiserver/internal/mq"
	"github.com/musician-app/apiserver/internal/platform"
	"github.com/musician-app/apiserver/internal/services"
	"github.com/musician-app/apiserver/internal/storage"
	"github.com/musician-app/apiserver/internal/store"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Run builds the full application from config and serves until interrupted.
func Run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	objectStorage, err := newStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	publisher, err := newPublisher(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init publisher: %w", err)
	}
	defer publisher.Close()

	platformClient, err := platform.NewClient(cfg.Platform)
	if err != nil {
		return fmt.Errorf("init platform client: %w", err)
	}

	resolver := entitlement.NewResolver(
		platformClient,
		newEntitlementCache(cfg),
		cfg.Platform.EntitlementTTL,
		cfg.Platform.BundleIDs,
		cfg.Platform.PassIDs,
		logger,
	)

	engineClient := newEngineClient(cfg, logger)

	users := store.NewUserRepository(database)
	jobs := store.NewJobRepository(database)
	assets := store.NewAssetRepository(database)
	events := store.NewEventRepository(database)

	composeService := services.NewComposeService(users, jobs, events, resolver, engineClient, publisher, logger)
	jobService := services.NewJobService(jobs, assets, events, engineClient, objectStorage, publisher, cfg.Storage.SignedURLTTL, logger)
	assetService := services.NewAssetService(assets, users, events, objectStorage, logger)
	diagnosticsService := services.NewDiagnosticsService(users, resolver, logger)

	identity := handlers.NewIdentityMiddleware(platformClient, cfg.Auth, logger)
	composeHandler := handlers.NewComposeHandler(composeService, jobService, assetService, identity)
	assetHandler := handlers.NewAssetHandler(assetService, cfg.Storage.SignedURLTTL, logger)
	licenseHandler := handlers.NewLicenseHandler(assetService, logger)
	diagnosticsHandler := handlers.NewDiagnosticsHandler(diagnosticsService)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(5 * time.Minute))
	router.Use(identity.Handler)

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/compose", composeHandler.Create)
		r.Get("/compose/{jobId}", composeHandler.Poll)
		r.Get("/assets", assetHandler.List)
		r.Get("/assets/{assetId}/download", assetHandler.Download)
		r.Post("/licenses/{assetId}", licenseHandler.Create)
		r.Get("/diagnostics", diagnosticsHandler.Describe)
	})
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.Int("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newStorage(ctx context.Context, cfg config.Config) (*storage.Storage, error) {
	switch cfg.Storage.Provider {
	case "minio":
		backend, err := storage.NewMinioClient(cfg.Storage.Minio)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(backend), nil
	case "gcs":
		backend, err := storage.NewGCSClient(ctx, cfg.Storage.GCS)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(backend), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}

func newPublisher(ctx context.Context, cfg config.Config) (mq.Publisher, error) {
	switch cfg.MQ.Provider {
	case "rabbitmq":
		return mq.NewRabbitMQPublisher(cfg.MQ.RabbitMQ)
	case "pubsub":
		return mq.NewPubSubPublisher(ctx, cfg.MQ.PubSub)
	case "":
		return mq.Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown mq provider %q", cfg.MQ.Provider)
	}
}

func newEntitlementCache(cfg config.Config) entitlement.Cache {
	if cfg.Redis.Addr != "" {
		return entitlement.NewRedisCache(cfg.Redis)
	}
	return entitlement.NewMemoryCache()
}

func newEngineClient(cfg config.Config, logger *zap.Logger) engine.Client {
	if cfg.Engine.UseMock {
		logger.Warn("using mock generation engine")
		return engine.NewMockClient()
	}
	return engine.NewHTTPClient(cfg.Engine)
}
