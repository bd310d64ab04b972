// Package scheduler содержит приложение фонового перевода просроченных
// подписок в статус expired.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/plan-subscriptions/internal/config"
	"github.com/magabrotheeeer/plan-subscriptions/internal/lib/sl"
	schedulerservice "github.com/magabrotheeeer/plan-subscriptions/internal/services/scheduler"
	"github.com/magabrotheeeer/plan-subscriptions/internal/storage/repository"
)

const (
	readyRetries    = 10
	readyRetryDelay = 3 * time.Second
)

// App представляет приложение планировщика.
type App struct {
	schedulerService *schedulerservice.SchedulerService
	db               *repository.Storage
	logger           *slog.Logger
}

// waitForDB ждёт, пока сервис подписок применит миграции.
func waitForDB(ctx context.Context, db *repository.Storage) error {
	for range readyRetries {
		err := repository.CheckDatabaseReady(ctx, db)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readyRetryDelay):
		}
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(ctx, db); err != nil {
		closeStorage(db, logger)
		return nil, err
	}

	return &App{
		schedulerService: schedulerservice.NewSchedulerService(db, cfg.Scheduler.Interval, logger),
		db:               db,
		logger:           logger,
	}, nil
}

func closeStorage(db *repository.Storage, logger *slog.Logger) {
	if err := db.Close(); err != nil {
		logger.Error("failed to close storage", sl.Err(err))
	}
}

// Run запускает планировщик и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("scheduler started")
	a.schedulerService.Run(ctx)
	closeStorage(a.db, a.logger)
	a.logger.Info("scheduler stopped")
	return nil
}
