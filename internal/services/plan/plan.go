// Package services содержит бизнес-логику управления тарифными планами.
// Изменять планы может только администратор, чтение доступно всем.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/plan-subscriptions/internal/access"
	"github.com/magabrotheeeer/plan-subscriptions/internal/cache"
	"github.com/magabrotheeeer/plan-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/plan-subscriptions/internal/models"
)

// PlanRepository определяет методы для работы с планами в хранилище.
type PlanRepository interface {
	CreatePlan(ctx context.Context, plan models.Plan) (*models.Plan, error)
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
	ListPlans(ctx context.Context, filter models.PlanFilter) ([]models.Plan, error)
	// UpdatePlan применяет patch под блокировкой строки.
	UpdatePlan(ctx context.Context, id int64, patch models.PlanPatch) (*models.Plan, error)
	// DeletePlan возвращает ErrConflict, если на план ссылаются подписки.
	DeletePlan(ctx context.Context, id int64) error
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(ctx context.Context, key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// Invalidate удаляет значения из кеша по ключам.
	Invalidate(ctx context.Context, keys ...string) error
}

// PlanService реализует бизнес-логику работы с планами, включая кеширование.
type PlanService struct {
	repo  PlanRepository
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
}

// NewPlanService создает новый экземпляр PlanService.
func NewPlanService(repo PlanRepository, cache Cache, ttl time.Duration, log *slog.Logger) *PlanService {
	return &PlanService{
		repo:  repo,
		cache: cache,
		ttl:   ttl,
		log:   log,
	}
}

// Create создаёт план. План без явного is_active создаётся активным.
func (s *PlanService) Create(ctx context.Context, principal *models.Principal, req models.DummyPlan) (*models.Plan, error) {
	const op = "services.plan.Create"

	if err := access.RequireAdmin(principal); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	planType, err := models.ParsePlanType(req.Type)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if req.Price == nil || *req.Price < 0 {
		return nil, fmt.Errorf("%s: %w: price must be a non-negative number", op, models.ErrValidation)
	}
	if req.DurationDays != nil && *req.DurationDays <= 0 {
		return nil, fmt.Errorf("%s: %w: duration_days must be positive", op, models.ErrValidation)
	}

	plan := models.Plan{
		Name:         req.Name,
		Type:         planType,
		Description:  req.Description,
		Price:        *req.Price,
		DurationDays: req.DurationDays,
		Features:     req.Features,
		IsActive:     true,
		Group:        req.Group,
	}
	if req.IsActive != nil {
		plan.IsActive = *req.IsActive
	}

	created, err := s.repo.CreatePlan(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("plan created", slog.Int64("plan_id", created.ID), slog.String("type", string(created.Type)))
	s.store(ctx, created)
	return created, nil
}

// Get возвращает план по ID, используя кеш или репозиторий.
func (s *PlanService) Get(ctx context.Context, id int64) (*models.Plan, error) {
	const op = "services.plan.Get"

	key := cache.PlanKey(id)
	var cached models.Plan
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("failed to read plan from cache", slog.String("key", key), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	plan, err := s.repo.GetPlan(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.store(ctx, plan)
	return plan, nil
}

// List возвращает планы. Неактивные планы видит только администратор,
// и только если запросил их явно.
func (s *PlanService) List(ctx context.Context, principal *models.Principal, filter models.PlanFilter) ([]models.Plan, error) {
	const op = "services.plan.List"

	if filter.IncludeInactive && !principal.IsAdmin() {
		filter.IncludeInactive = false
	}
	plans, err := s.repo.ListPlans(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return plans, nil
}

// Update частично обновляет план и сбрасывает его из кеша.
func (s *PlanService) Update(ctx context.Context, principal *models.Principal, id int64, patch models.PlanPatch) (*models.Plan, error) {
	const op = "services.plan.Update"

	if err := access.RequireAdmin(principal); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if patch.IsEmpty() {
		return nil, fmt.Errorf("%s: %w: nothing to update", op, models.ErrValidation)
	}

	updated, err := s.repo.UpdatePlan(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, id)
	s.log.Info("plan updated", slog.Int64("plan_id", id))
	return updated, nil
}

// Delete удаляет план, на который не ссылается ни одна подписка.
func (s *PlanService) Delete(ctx context.Context, principal *models.Principal, id int64) error {
	const op = "services.plan.Delete"

	if err := access.RequireAdmin(principal); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.DeletePlan(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, id)
	s.log.Info("plan deleted", slog.Int64("plan_id", id))
	return nil
}

func (s *PlanService) store(ctx context.Context, plan *models.Plan) {
	key := cache.PlanKey(plan.ID)
	if err := s.cache.Set(ctx, key, plan, s.ttl); err != nil {
		s.log.Warn("failed to cache plan", slog.String("key", key), sl.Err(err))
	}
}

func (s *PlanService) invalidate(ctx context.Context, id int64) {
	key := cache.PlanKey(id)
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.log.Warn("failed to remove plan from cache", slog.String("key", key), sl.Err(err))
	}
}
