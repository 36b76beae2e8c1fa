// Package main provides the entry point for the Sardegna Ricette web
// frontend service. The service keeps browser sessions server-side and
// talks to the recipe REST API backend.
package main

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sardegnaricette/v2/internal/application/publish"
	"github.com/sardegnaricette/v2/internal/application/session"
	"github.com/sardegnaricette/v2/internal/application/story"
	"github.com/sardegnaricette/v2/internal/infrastructure/config"
	"github.com/sardegnaricette/v2/internal/infrastructure/http/backend"
	"github.com/sardegnaricette/v2/internal/infrastructure/http/webserver"
	"github.com/sardegnaricette/v2/internal/infrastructure/monitoring"
	"github.com/sardegnaricette/v2/internal/infrastructure/storage"
	"github.com/sardegnaricette/v2/pkg/healthcheck"
	"github.com/sardegnaricette/v2/pkg/logger"
)

func main() {
	fmt.Println("Sardegna Ricette - Web Frontend Service")
	fmt.Println()

	app := fx.New(
		fx.NopLogger,

		fx.Provide(func() (*config.Config, error) {
			return config.Load("")
		}),

		fx.Provide(func(cfg *config.Config) (*zap.Logger, error) {
			return logger.New(logger.Config{
				Level:       cfg.App.LogLevel,
				Format:      cfg.App.LogFormat,
				Development: cfg.App.Debug,
			})
		}),

		fx.Provide(monitoring.NewMetricsCollector),
		fx.Provide(newSessionStore),
		fx.Provide(backend.NewClient),

		fx.Provide(func(api *backend.Client, store storage.Store, cfg *config.Config, log *zap.Logger) *session.Registry {
			return session.NewRegistry(api, store, cfg.Session.MaxAge, log)
		}),

		fx.Provide(func(api *backend.Client, log *zap.Logger) *publish.Service {
			return publish.NewService(api, log)
		}),

		fx.Provide(func(api *backend.Client, log *zap.Logger) *story.Service {
			return story.NewService(api, log)
		}),

		fx.Provide(func(cfg *config.Config, log *zap.Logger) *healthcheck.HealthCheck {
			return healthcheck.New(cfg.App.Version, log)
		}),

		fx.Provide(webserver.NewWebServer),

		fx.Invoke(registerHealthChecks),
		fx.Invoke(registerLifecycleHooks),
	)

	app.Run()
}

// newSessionStore selects the session store backend: Redis when enabled,
// otherwise an in-process map that does not survive restarts.
func newSessionStore(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	if cfg.Redis.Enabled {
		return storage.NewRedisStore(&cfg.Redis, cfg.Session.MaxAge, log)
	}
	log.Info("Using in-memory session store")
	return storage.NewMemoryStore(), nil
}

func registerHealthChecks(hc *healthcheck.HealthCheck, api *backend.Client) {
	hc.Register("backend", func(ctx context.Context) error {
		_, err := api.CategoryCounts(ctx)
		return err
	})
}

func registerLifecycleHooks(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	server *webserver.WebServer,
	sessions *session.Registry,
	store storage.Store,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting web frontend",
				zap.String("addr", cfg.Server.Addr()),
				zap.String("environment", cfg.App.Environment),
				zap.String("backend", cfg.Backend.BaseURL),
			)

			go func() {
				if err := server.Start(); err != nil {
					log.Fatal("Web server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()

			err := server.Shutdown(shutdownCtx)
			sessions.Close()
			if closer, ok := store.(*storage.RedisStore); ok {
				if cerr := closer.Close(); cerr != nil {
					log.Warn("Failed to close Redis client", zap.Error(cerr))
				}
			}
			return err
		},
	})
}
