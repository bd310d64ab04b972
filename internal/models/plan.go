package models

import (
	"fmt"
	"time"
)

// PlanType — тип тарифного плана. По типу обеспечивается уникальность
// активной подписки пользователя.
type PlanType string

const (
	PlanTypeFree  PlanType = "free"
	PlanTypeBasic PlanType = "basic"
	PlanTypePro   PlanType = "pro"
)

// PlanTypes перечисляет все известные типы в порядке отображения.
var PlanTypes = []PlanType{PlanTypeFree, PlanTypeBasic, PlanTypePro}

// ParsePlanType преобразует строку в PlanType.
func ParsePlanType(s string) (PlanType, error) {
	switch PlanType(s) {
	case PlanTypeFree, PlanTypeBasic, PlanTypePro:
		return PlanType(s), nil
	}
	return "", fmt.Errorf("%w: unknown plan type %q", ErrValidation, s)
}

// Plan — тарифный план. DurationDays == nil означает бессрочный план,
// подписки на него создаются без даты окончания.
// Group — необязательная группа (владеющая сущность) плана, используется
// политикой апгрейда.
type Plan struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	Type         PlanType       `json:"type"`
	Description  *string        `json:"description,omitempty"`
	Price        float64        `json:"price"`
	DurationDays *int           `json:"duration_days,omitempty"`
	Features     map[string]any `json:"features,omitempty"`
	IsActive     bool           `json:"is_active"`
	Group        *string        `json:"group,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Term возвращает дату окончания подписки, начатой в start.
// Для бессрочного плана возвращает nil.
func (p *Plan) Term(start time.Time) *time.Time {
	if p.DurationDays == nil {
		return nil
	}
	end := start.UTC().AddDate(0, 0, *p.DurationDays)
	return &end
}

// DummyPlan используется для приёма данных создания плана из JSON-запроса.
type DummyPlan struct {
	Name         string         `json:"name" validate:"required,max=100"`
	Type         string         `json:"type" validate:"required,oneof=free basic pro"`
	Description  *string        `json:"description,omitempty"`
	Price        *float64       `json:"price" validate:"required,gte=0"`
	DurationDays *int           `json:"duration_days,omitempty" validate:"omitempty,gt=0"`
	Features     map[string]any `json:"features,omitempty"`
	IsActive     *bool          `json:"is_active,omitempty"`
	Group        *string        `json:"group,omitempty" validate:"omitempty,max=100"`
}

// PlanPatch описывает частичное обновление плана. nil‑поля не меняются.
type PlanPatch struct {
	Name         *string        `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Type         *string        `json:"type,omitempty" validate:"omitempty,oneof=free basic pro"`
	Description  *string        `json:"description,omitempty"`
	Price        *float64       `json:"price,omitempty" validate:"omitempty,gte=0"`
	DurationDays *int           `json:"duration_days,omitempty" validate:"omitempty,gt=0"`
	Features     map[string]any `json:"features,omitempty"`
	IsActive     *bool          `json:"is_active,omitempty"`
	Group        *string        `json:"group,omitempty" validate:"omitempty,max=100"`
}

// IsEmpty сообщает, что патч ничего не меняет.
func (p PlanPatch) IsEmpty() bool {
	return p.Name == nil && p.Type == nil && p.Description == nil && p.Price == nil &&
		p.DurationDays == nil && p.Features == nil && p.IsActive == nil && p.Group == nil
}

// Apply применяет патч к плану.
func (p PlanPatch) Apply(plan *Plan) error {
	if p.Name != nil {
		plan.Name = *p.Name
	}
	if p.Type != nil {
		t, err := ParsePlanType(*p.Type)
		if err != nil {
			return err
		}
		plan.Type = t
	}
	if p.Description != nil {
		plan.Description = p.Description
	}
	if p.Price != nil {
		if *p.Price < 0 {
			return fmt.Errorf("%w: price must not be negative", ErrValidation)
		}
		plan.Price = *p.Price
	}
	if p.DurationDays != nil {
		plan.DurationDays = p.DurationDays
	}
	if p.Features != nil {
		plan.Features = p.Features
	}
	if p.IsActive != nil {
		plan.IsActive = *p.IsActive
	}
	if p.Group != nil {
		plan.Group = p.Group
	}
	return nil
}

// PlanFilter — параметры выборки списка планов.
type PlanFilter struct {
	Type            *PlanType
	IncludeInactive bool
}

// PlanTypeStatistics — агрегат по типу плана.
type PlanTypeStatistics struct {
	Type                PlanType `json:"type"`
	DistinctUsers       int      `json:"distinct_users"`
	ActiveSubscriptions int      `json:"active_subscriptions"`
}
