// Package services содержит фоновый обход, переводящий просроченные
// подписки в статус expired.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/plan-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/plan-subscriptions/internal/metrics"
)

// SubscriptionRepository определяет методы хранилища, нужные планировщику.
type SubscriptionRepository interface {
	// ExpireOverdue переводит в expired все активные подписки с end_date <= now
	// и возвращает их количество.
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// SchedulerService периодически завершает просроченные подписки.
type SchedulerService struct {
	repo     SubscriptionRepository
	log      *slog.Logger
	interval time.Duration
	now      func() time.Time
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(repo SubscriptionRepository, interval time.Duration, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		repo:     repo,
		log:      log,
		interval: interval,
		now:      time.Now,
	}
}

// Run выполняет обход сразу и затем с периодом interval, пока не отменён ctx.
func (s *SchedulerService) Run(ctx context.Context) {
	s.runExpireOverdue(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.runExpireOverdue(ctx)
		}
	}
}

// ExpireOverdue выполняет один обход.
func (s *SchedulerService) ExpireOverdue(ctx context.Context) (int64, error) {
	const op = "services.scheduler.ExpireOverdue"

	n, err := s.repo.ExpireOverdue(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if n > 0 {
		metrics.SubscriptionsExpiredTotal.Add(float64(n))
	}
	return n, nil
}

func (s *SchedulerService) runExpireOverdue(ctx context.Context) {
	n, err := s.ExpireOverdue(ctx)
	if err != nil {
		s.log.Error("failed to expire overdue subscriptions", sl.Err(err))
		return
	}
	if n == 0 {
		s.log.Debug("no overdue subscriptions found")
		return
	}
	s.log.Info("overdue subscriptions expired", slog.Int64("count", n))
}
