// Package repository реализует хранилище данных на основе PostgreSQL
// для пользователей, тарифных планов и подписок. Мутирующие операции
// жизненного цикла подписки выполняются в транзакциях через WithTx.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/plan-subscriptions/internal/config"
	"github.com/magabrotheeeer/plan-subscriptions/internal/models"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// querier — общее подмножество *sql.DB и *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// executor выполняет запросы либо напрямую через пул, либо внутри транзакции.
// timeout == 0 означает, что ограничение по времени задано снаружи.
type executor struct {
	q       querier
	timeout time.Duration
}

func (e executor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

// Tx — операции, доступные внутри транзакции жизненного цикла подписки.
type Tx interface {
	SharePlan(ctx context.Context, id int64) (*models.Plan, error)
	LockSubscription(ctx context.Context, id int64) (*models.Subscription, error)
	HasActiveOfType(ctx context.Context, userUID string, planType models.PlanType, excludeID int64) (bool, error)
	ExpireOverdueForUser(ctx context.Context, userUID string, now time.Time) (int64, error)
	InsertSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error)
	UpdateSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error)
}

// Storage инкапсулирует пул соединений с PostgreSQL.
type Storage struct {
	executor
	DB           *sql.DB
	queryTimeout time.Duration
}

// New открывает пул соединений по настройкам cfg и проверяет доступность базы.
func New(cfg config.Storage) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := &Storage{
		executor:     executor{q: db, timeout: cfg.QueryTimeout},
		DB:           db,
		queryTimeout: cfg.QueryTimeout,
	}
	if err = s.Ping(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

// Ping проверяет соединение с базой.
func (s *Storage) Ping(ctx context.Context) error {
	const op = "storage.Ping"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, classifyError(err))
	}
	return nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// CheckDatabaseReady проверяет, что миграции применены.
func CheckDatabaseReady(ctx context.Context, storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'subscriptions'
    )`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("storage.CheckDatabaseReady: %w", err)
	}
	if !exists {
		return fmt.Errorf("storage.CheckDatabaseReady: required table subscriptions missing")
	}
	return nil
}

// WithTx выполняет fn в одной транзакции. Ошибка fn откатывает транзакцию,
// nil фиксирует её. Вся транзакция ограничена таймаутом запроса.
func (s *Storage) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.inTx(ctx, nil, func(_ context.Context, e executor) error {
		return fn(e)
	})
}

func (s *Storage) inTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, e executor) error) (err error) {
	const op = "storage.inTx"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, classifyError(ctx.Err()))
	default:
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.DB.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("%s: %w", op, classifyError(err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, executor{q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, classifyError(err))
	}
	return nil
}
