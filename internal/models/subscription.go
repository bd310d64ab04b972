package models

import (
	"fmt"
	"time"
)

// Status — статус подписки.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// ParseStatus преобразует строку в Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusCancelled, StatusExpired:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
}

// IsTerminal сообщает, что из статуса нет переходов.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

// Subscription — подписка пользователя на тарифный план.
// Все даты хранятся в UTC, EndDate == nil означает бессрочную подписку.
// Подписки не удаляются физически: отмена и истечение только меняют статус.
type Subscription struct {
	ID        int64      `json:"id"`
	UserUID   string     `json:"user_uid"`
	PlanID    int64      `json:"plan_id"`
	PlanType  PlanType   `json:"plan_type"`
	Status    Status     `json:"status"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	AutoRenew bool       `json:"auto_renew"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsActiveAt сообщает, активна ли подписка в момент now:
// статус active и дата окончания отсутствует или в будущем.
func (s *Subscription) IsActiveAt(now time.Time) bool {
	if s.Status != StatusActive {
		return false
	}
	return s.EndDate == nil || s.EndDate.UTC().After(now.UTC())
}

// IsOverdueAt сообщает, что подписка ещё помечена active, но срок уже вышел.
func (s *Subscription) IsOverdueAt(now time.Time) bool {
	return s.Status == StatusActive && s.EndDate != nil && !s.EndDate.UTC().After(now.UTC())
}

// SubscriptionWithPlan — подписка вместе с данными плана, выбранными одним JOIN.
type SubscriptionWithPlan struct {
	Subscription
	PlanName  string  `json:"plan_name"`
	PlanPrice float64 `json:"plan_price"`
}

// HistoryFilter — параметры выборки истории подписок пользователя.
type HistoryFilter struct {
	UserUID  string
	PlanType *PlanType
	Limit    int
	Offset   int
}

// HistoryPage — страница истории подписок.
type HistoryPage struct {
	Items  []SubscriptionWithPlan `json:"subscriptions"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

// DummySubscribe — тело запроса на оформление подписки.
type DummySubscribe struct {
	PlanID    int64 `json:"plan_id" validate:"required,gt=0"`
	AutoRenew *bool `json:"auto_renew,omitempty"`
}

// DummyUpgrade — тело запроса на смену плана подписки.
type DummyUpgrade struct {
	SubscriptionID int64 `json:"subscription_id" validate:"required,gt=0"`
	NewPlanID      int64 `json:"new_plan_id" validate:"required,gt=0"`
}

// DummyCancel — тело запроса на отмену подписки.
type DummyCancel struct {
	SubscriptionID int64 `json:"subscription_id" validate:"required,gt=0"`
}
