package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/plan-subscriptions/internal/models"
)

const subscriptionColumns = `s.id, s.user_uid, s.plan_id, s.plan_type, s.status, s.start_date, s.end_date,
		s.auto_renew, s.created_at, s.updated_at`

func subscriptionDest(sub *models.Subscription, endDate *sql.NullTime) []any {
	return []any{&sub.ID, &sub.UserUID, &sub.PlanID, &sub.PlanType, &sub.Status,
		&sub.StartDate, endDate, &sub.AutoRenew, &sub.CreatedAt, &sub.UpdatedAt}
}

func normalizeSubscription(sub *models.Subscription, endDate sql.NullTime) {
	sub.StartDate = sub.StartDate.UTC()
	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.UpdatedAt = sub.UpdatedAt.UTC()
	sub.EndDate = nil
	if endDate.Valid {
		t := endDate.Time.UTC()
		sub.EndDate = &t
	}
}

func scanSubscription(row interface{ Scan(dest ...any) error }) (*models.Subscription, error) {
	var (
		sub     models.Subscription
		endDate sql.NullTime
	)
	if err := row.Scan(subscriptionDest(&sub, &endDate)...); err != nil {
		return nil, err
	}
	normalizeSubscription(&sub, endDate)
	return &sub, nil
}

// GetSubscription возвращает подписку по ID.
func (e executor) GetSubscription(ctx context.Context, id int64) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, classifyError(ctx.Err()))
	default:
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions s WHERE s.id = $1`
	sub, err := scanSubscription(e.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, models.ErrSubscriptionNotFound))
	}
	return sub, nil
}

// LockSubscription читает подписку с блокировкой строки до конца транзакции.
func (e executor) LockSubscription(ctx context.Context, id int64) (*models.Subscription, error) {
	const op = "storage.LockSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, classifyError(ctx.Err()))
	default:
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions s WHERE s.id = $1 FOR UPDATE`
	sub, err := scanSubscription(e.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, models.ErrSubscriptionNotFound))
	}
	return sub, nil
}

// HasActiveOfType сообщает, есть ли у пользователя активная подписка типа
// planType, кроме подписки excludeID.
func (e executor) HasActiveOfType(ctx context.Context, userUID string, planType models.PlanType, excludeID int64) (bool, error) {
	const op = "storage.HasActiveOfType"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, classifyError(ctx.Err()))
	default:
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var exists bool
	err := e.q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM subscriptions
			WHERE user_uid = $1 AND plan_type = $2 AND status = 'active' AND id <> $3
		)`, userUID, planType, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, classifyError(err))
	}
	return exists, nil
}

// ExpireOverdueForUser переводит просроченные активные подписки пользователя в expired.
func (e executor) ExpireOverdueForUser(ctx context.Context, userUID string, now time.Time) (int64, error) {
	const op = "storage.ExpireOverdueForUser"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, classifyError(ctx.Err()))
	default:
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	res, err := e.q.ExecContext(ctx, `
		UPDATE subscriptions
		SET status = 'expired', auto_renew = false, updated_at = NOW()
		WHERE user_uid = $1 AND status = 'active' AND end_date IS NOT NULL AND end_date <= $2`,
		userUID, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, classifyError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// ExpireOverdue переводит в expired все просроченные активные подписки
// одним запросом и возвращает их количество.
func (e executor) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.ExpireOverdue"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, classifyError(ctx.Err()))
	default:
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	res, err := e.q.ExecContext(ctx, `
		UPDATE subscriptions
		SET status = 'expired', auto_renew = false, updated_at = NOW()
		WHERE status = 'active' AND end_date IS NOT NULL AND end_date <= $1`,
		now.UTC())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, classifyError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// InsertSubscription сохраняет новую подписку. Нарушение уникальности
// активной подписки по типу плана возвращается как ErrDuplicateActiveSubscription.
func (e executor) InsertSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error) {
	const op = "storage.InsertSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, classifyError(ctx.Err()))
	default:
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	query := `INSERT INTO subscriptions AS s (user_uid, plan_id, plan_type, status, start_date,
			      end_date, auto_renew)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING ` + subscriptionColumns
	created, err := scanSubscription(e.q.QueryRowContext(ctx, query,
		sub.UserUID, sub.PlanID, sub.PlanType, sub.Status, sub.StartDate.UTC(),
		utcOrNil(sub.EndDate), sub.AutoRenew))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classifyError(err))
	}
	return created, nil
}

// UpdateSubscription перезаписывает изменяемые поля подписки sub.ID.
func (e executor) UpdateSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error) {
	const op = "storage.UpdateSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, classifyError(ctx.Err()))
	default:
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	query := `UPDATE subscriptions AS s
			  SET plan_id = $1, plan_type = $2, status = $3, start_date = $4, end_date = $5,
			      auto_renew = $6, updated_at = NOW()
			  WHERE s.id = $7
			  RETURNING ` + subscriptionColumns
	updated, err := scanSubscription(e.q.QueryRowContext(ctx, query,
		sub.PlanID, sub.PlanType, sub.Status, sub.StartDate.UTC(), utcOrNil(sub.EndDate),
		sub.AutoRenew, sub.ID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, models.ErrSubscriptionNotFound))
	}
	return updated, nil
}

func utcOrNil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
