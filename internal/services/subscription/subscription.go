// Package services содержит бизнес-логику жизненного цикла подписок
// (оформление, смена плана, отмена) и выборки по подпискам.
//
// Каждая мутирующая операция выполняется одной транзакцией хранилища.
// Уникальность активной подписки по (пользователь, тип плана) держит
// частичный уникальный индекс, проверка внутри транзакции лишь даёт
// понятную ошибку раньше.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/plan-subscriptions/internal/access"
	"github.com/magabrotheeeer/plan-subscriptions/internal/config"
	"github.com/magabrotheeeer/plan-subscriptions/internal/metrics"
	"github.com/magabrotheeeer/plan-subscriptions/internal/models"
	"github.com/magabrotheeeer/plan-subscriptions/internal/storage/repository"
)

// SubscriptionRepository определяет методы для работы с подписками в хранилище.
type SubscriptionRepository interface {
	// GetSubscription возвращает подписку по ID.
	GetSubscription(ctx context.Context, id int64) (*models.Subscription, error)
	// ActiveSubscriptions возвращает действующие на момент now подписки пользователя.
	ActiveSubscriptions(ctx context.Context, userUID string, now time.Time) ([]models.SubscriptionWithPlan, error)
	// History возвращает страницу истории подписок.
	History(ctx context.Context, filter models.HistoryFilter) (*models.HistoryPage, error)
	// PlanStatistics возвращает агрегаты по типам планов.
	PlanStatistics(ctx context.Context, now time.Time) ([]models.PlanTypeStatistics, error)
	// WithTx выполняет fn в одной транзакции.
	WithTx(ctx context.Context, fn func(tx repository.Tx) error) error
}

// UpgradePolicy решает, допустим ли переход с плана current на candidate.
// Отказ должен оборачивать models.ErrInvalidUpgradeTarget.
type UpgradePolicy func(current, candidate models.Plan) error

// AllowAnyUpgrade разрешает переход на любой план.
func AllowAnyUpgrade(_, _ models.Plan) error {
	return nil
}

// SameGroupUpgrade разрешает переход только между планами одной группы.
func SameGroupUpgrade(current, candidate models.Plan) error {
	if current.Group == nil || candidate.Group == nil || *current.Group == "" || *current.Group != *candidate.Group {
		return fmt.Errorf("%w: plans %d and %d belong to different groups",
			models.ErrInvalidUpgradeTarget, current.ID, candidate.ID)
	}
	return nil
}

// Option настраивает SubscriptionService.
type Option func(*SubscriptionService)

// WithUpgradePolicy задаёт политику смены плана.
func WithUpgradePolicy(policy UpgradePolicy) Option {
	return func(s *SubscriptionService) {
		s.policy = policy
	}
}

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *SubscriptionService) {
		s.now = now
	}
}

// SubscriptionService реализует жизненный цикл подписок.
type SubscriptionService struct {
	repo         SubscriptionRepository
	log          *slog.Logger
	policy       UpgradePolicy
	now          func() time.Time
	defaultLimit int
	maxLimit     int
}

// NewSubscriptionService создает новый экземпляр SubscriptionService.
func NewSubscriptionService(repo SubscriptionRepository, pagination config.Pagination, log *slog.Logger, opts ...Option) *SubscriptionService {
	s := &SubscriptionService{
		repo:         repo,
		log:          log,
		policy:       AllowAnyUpgrade,
		now:          time.Now,
		defaultLimit: pagination.DefaultLimit,
		maxLimit:     pagination.MaxLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe оформляет подписку субъекта на план. Подписка начинается в текущий
// момент в UTC, окончание вычисляется по сроку плана.
func (s *SubscriptionService) Subscribe(ctx context.Context, principal *models.Principal, req models.DummySubscribe) (*models.Subscription, error) {
	const op = "services.subscription.Subscribe"

	if err := access.RequirePrincipal(principal); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if req.PlanID <= 0 {
		return nil, fmt.Errorf("%s: %w: plan_id must be positive", op, models.ErrValidation)
	}
	now := s.now().UTC()

	var created *models.Subscription
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		plan, err := tx.SharePlan(ctx, req.PlanID)
		if err != nil {
			return err
		}
		if !plan.IsActive {
			return fmt.Errorf("%w: plan %d", models.ErrPlanUnavailable, plan.ID)
		}
		if _, err = tx.ExpireOverdueForUser(ctx, principal.UserUID, now); err != nil {
			return err
		}
		exists, err := tx.HasActiveOfType(ctx, principal.UserUID, plan.Type, 0)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: type %s", models.ErrDuplicateActiveSubscription, plan.Type)
		}

		autoRenew := true
		if req.AutoRenew != nil {
			autoRenew = *req.AutoRenew
		}
		created, err = tx.InsertSubscription(ctx, models.Subscription{
			UserUID:   principal.UserUID,
			PlanID:    plan.ID,
			PlanType:  plan.Type,
			Status:    models.StatusActive,
			StartDate: now,
			EndDate:   plan.Term(now),
			AutoRenew: autoRenew,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics.ObserveTransition(metrics.TransitionSubscribe, string(created.PlanType))
	s.log.Info("subscription created",
		slog.Int64("subscription_id", created.ID),
		slog.String("user_uid", created.UserUID),
		slog.Int64("plan_id", created.PlanID),
	)
	return created, nil
}

// Upgrade переводит активную подписку на другой план без создания новой
// записи: меняются план, тип и даты, автопродление включается.
// Подписка, срок которой уже вышел, переводится в expired и не меняется.
func (s *SubscriptionService) Upgrade(ctx context.Context, principal *models.Principal, req models.DummyUpgrade) (*models.Subscription, error) {
	const op = "services.subscription.Upgrade"

	if err := access.RequirePrincipal(principal); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if req.SubscriptionID <= 0 || req.NewPlanID <= 0 {
		return nil, fmt.Errorf("%s: %w: ids must be positive", op, models.ErrValidation)
	}
	now := s.now().UTC()

	var (
		updated *models.Subscription
		outcome error
	)
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		sub, err := tx.LockSubscription(ctx, req.SubscriptionID)
		if err != nil {
			return err
		}
		if err = access.RequireOwner(principal, sub.UserUID); err != nil {
			return err
		}
		if _, err = tx.ExpireOverdueForUser(ctx, sub.UserUID, now); err != nil {
			return err
		}
		if sub.IsOverdueAt(now) {
			// Просрочка фиксируется транзакцией, клиент получает NotActive.
			outcome = fmt.Errorf("%w: subscription %d has expired", models.ErrNotActive, sub.ID)
			return nil
		}
		if sub.Status != models.StatusActive {
			return fmt.Errorf("%w: subscription %d is %s", models.ErrNotActive, sub.ID, sub.Status)
		}

		current, err := tx.SharePlan(ctx, sub.PlanID)
		if err != nil {
			return err
		}
		candidate, err := tx.SharePlan(ctx, req.NewPlanID)
		if err != nil {
			return err
		}
		if !candidate.IsActive {
			return fmt.Errorf("%w: plan %d", models.ErrPlanUnavailable, candidate.ID)
		}
		if err = s.policy(*current, *candidate); err != nil {
			if !errors.Is(err, models.ErrInvalidUpgradeTarget) {
				err = fmt.Errorf("%w: %v", models.ErrInvalidUpgradeTarget, err)
			}
			return err
		}
		if candidate.Type != sub.PlanType {
			exists, err := tx.HasActiveOfType(ctx, sub.UserUID, candidate.Type, sub.ID)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: type %s", models.ErrDuplicateActiveSubscription, candidate.Type)
			}
		}

		next := *sub
		next.PlanID = candidate.ID
		next.PlanType = candidate.Type
		next.StartDate = now
		next.EndDate = candidate.Term(now)
		next.AutoRenew = true
		updated, err = tx.UpdateSubscription(ctx, next)
		return err
	})
	if err == nil {
		err = outcome
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics.ObserveTransition(metrics.TransitionUpgrade, string(updated.PlanType))
	s.log.Info("subscription upgraded",
		slog.Int64("subscription_id", updated.ID),
		slog.Int64("plan_id", updated.PlanID),
	)
	return updated, nil
}

// Cancel отменяет подписку: статус cancelled, автопродление выключено,
// даты не меняются. Для уже отменённой или истёкшей подписки, в том числе
// активной по статусу, но с прошедшим сроком, ничего не отменяет и
// возвращает её текущее состояние.
func (s *SubscriptionService) Cancel(ctx context.Context, principal *models.Principal, req models.DummyCancel) (*models.Subscription, error) {
	const op = "services.subscription.Cancel"

	if err := access.RequirePrincipal(principal); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if req.SubscriptionID <= 0 {
		return nil, fmt.Errorf("%s: %w: subscription_id must be positive", op, models.ErrValidation)
	}

	now := s.now().UTC()

	var (
		result    *models.Subscription
		cancelled bool
	)
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		sub, err := tx.LockSubscription(ctx, req.SubscriptionID)
		if err != nil {
			return err
		}
		if err = access.RequireOwner(principal, sub.UserUID); err != nil {
			return err
		}
		if _, err = tx.ExpireOverdueForUser(ctx, sub.UserUID, now); err != nil {
			return err
		}
		if sub.IsOverdueAt(now) {
			// Срок вышел: подписка уже истекла, отменять нечего.
			expired := *sub
			expired.Status = models.StatusExpired
			expired.AutoRenew = false
			result = &expired
			return nil
		}
		if sub.Status.IsTerminal() {
			result = sub
			return nil
		}

		next := *sub
		next.Status = models.StatusCancelled
		next.AutoRenew = false
		result, err = tx.UpdateSubscription(ctx, next)
		cancelled = err == nil
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cancelled {
		metrics.ObserveTransition(metrics.TransitionCancel, string(result.PlanType))
		s.log.Info("subscription cancelled", slog.Int64("subscription_id", result.ID))
	}
	return result, nil
}

// Get возвращает подписку владельца.
func (s *SubscriptionService) Get(ctx context.Context, principal *models.Principal, id int64) (*models.Subscription, error) {
	const op = "services.subscription.Get"

	if err := access.RequirePrincipal(principal); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = access.RequireOwner(principal, sub.UserUID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// Active возвращает действующие подписки субъекта.
func (s *SubscriptionService) Active(ctx context.Context, principal *models.Principal) ([]models.SubscriptionWithPlan, error) {
	const op = "services.subscription.Active"

	if err := access.RequirePrincipal(principal); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	items, err := s.repo.ActiveSubscriptions(ctx, principal.UserUID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return items, nil
}

// History возвращает страницу истории подписок субъекта. Отрицательные
// limit и offset дают ошибку валидации, нулевой limit заменяется значением
// по умолчанию, слишком большой ограничивается максимумом.
func (s *SubscriptionService) History(ctx context.Context, principal *models.Principal, planType *models.PlanType, limit, offset int) (*models.HistoryPage, error) {
	const op = "services.subscription.History"

	if err := access.RequirePrincipal(principal); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	limit, offset, err := s.normalizePage(limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	page, err := s.repo.History(ctx, models.HistoryFilter{
		UserUID:  principal.UserUID,
		PlanType: planType,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return page, nil
}

// Statistics возвращает агрегаты по типам планов. Доступно администратору.
func (s *SubscriptionService) Statistics(ctx context.Context, principal *models.Principal) ([]models.PlanTypeStatistics, error) {
	const op = "services.subscription.Statistics"

	if err := access.RequireAdmin(principal); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	stats, err := s.repo.PlanStatistics(ctx, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return stats, nil
}

func (s *SubscriptionService) normalizePage(limit, offset int) (int, int, error) {
	if limit < 0 || offset < 0 {
		return 0, 0, fmt.Errorf("%w: limit and offset must not be negative", models.ErrValidation)
	}
	if limit == 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	return limit, offset, nil
}
