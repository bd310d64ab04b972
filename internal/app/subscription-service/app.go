package subscriptionservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/plan-subscriptions/internal/cache"
	"github.com/magabrotheeeer/plan-subscriptions/internal/config"
	"github.com/magabrotheeeer/plan-subscriptions/internal/http/middlewarectx"
	"github.com/magabrotheeeer/plan-subscriptions/internal/lib/jwt"
	"github.com/magabrotheeeer/plan-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/plan-subscriptions/internal/migrations"
	authservice "github.com/magabrotheeeer/plan-subscriptions/internal/services/auth"
	planservice "github.com/magabrotheeeer/plan-subscriptions/internal/services/plan"
	subservice "github.com/magabrotheeeer/plan-subscriptions/internal/services/subscription"
	"github.com/magabrotheeeer/plan-subscriptions/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

type planCache interface {
	planservice.Cache
	Close() error
}

// App — HTTP-приложение сервиса подписок.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  planCache
}

// New подключает хранилище и кеш, применяет миграции и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.subscriptionservice.New"

	db, err := repository.New(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	plansCache := initCache(ctx, cfg.RedisConnection, logger)

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	services := Services{
		Auth:         authservice.NewAuthService(db, jwtMaker, logger),
		Plans:        planservice.NewPlanService(db, plansCache, cfg.PlanTTL, logger),
		Subscription: subservice.NewSubscriptionService(db, cfg.Pagination, logger),
		DB:           db,
		Limiter:      middlewarectx.NewRateLimiter(cfg.RateLimit),
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, services)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  plansCache,
	}, nil
}

// initCache подключает redis. Пустой адрес или недоступный redis отключают
// кеш, сервис продолжает работать напрямую с хранилищем.
func initCache(ctx context.Context, cfg config.RedisConnection, logger *slog.Logger) planCache {
	if cfg.AddressRedis == "" {
		logger.Info("redis address is empty, plan cache disabled")
		return cache.Noop{}
	}
	c, err := cache.InitServer(ctx, cfg)
	if err != nil {
		logger.Warn("redis unavailable, plan cache disabled", sl.Err(err))
		return cache.Noop{}
	}
	return c
}

// Run запускает HTTP-сервер и останавливает его после отмены ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err = a.server.Shutdown(timeoutCtx)
	}

	if cerr := a.cache.Close(); cerr != nil {
		a.logger.Error("failed to close cache", sl.Err(cerr))
	}
	if cerr := a.db.Close(); cerr != nil {
		a.logger.Error("failed to close storage", sl.Err(cerr))
	}
	return err
}
