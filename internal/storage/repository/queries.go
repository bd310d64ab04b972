package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/plan-subscriptions/internal/models"
)

func scanSubscriptionWithPlan(row interface{ Scan(dest ...any) error }) (*models.SubscriptionWithPlan, error) {
	var (
		item    models.SubscriptionWithPlan
		endDate sql.NullTime
	)
	dest := append(subscriptionDest(&item.Subscription, &endDate), &item.PlanName, &item.PlanPrice)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	normalizeSubscription(&item.Subscription, endDate)
	return &item, nil
}

// ActiveSubscriptions возвращает действующие на момент now подписки
// пользователя вместе с данными плана, новые первыми.
func (e executor) ActiveSubscriptions(ctx context.Context, userUID string, now time.Time) ([]models.SubscriptionWithPlan, error) {
	const op = "storage.ActiveSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, classifyError(ctx.Err()))
	default:
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + subscriptionColumns + `, p.name, p.price::float8
			  FROM subscriptions s
			  JOIN subscription_plans p ON p.id = s.plan_id
			  WHERE s.user_uid = $1
			    AND s.status = 'active'
			    AND (s.end_date IS NULL OR s.end_date > $2)
			  ORDER BY s.start_date DESC, s.id DESC`
	rows, err := e.q.QueryContext(ctx, query, userUID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classifyError(err))
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.SubscriptionWithPlan, 0)
	for rows.Next() {
		item, err := scanSubscriptionWithPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, classifyError(err))
	}
	return result, nil
}

// History возвращает страницу истории подписок пользователя в любом статусе
// и общее число записей под фильтром. Страница и счётчик читаются из одного снимка.
// Limit и Offset должны быть уже проверены вызывающей стороной.
func (s *Storage) History(ctx context.Context, filter models.HistoryFilter) (*models.HistoryPage, error) {
	const op = "storage.History"

	var planType *string
	if filter.PlanType != nil {
		t := string(*filter.PlanType)
		planType = &t
	}

	page := &models.HistoryPage{
		Items:  make([]models.SubscriptionWithPlan, 0),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err := s.inTx(ctx, opts, func(ctx context.Context, e executor) error {
		err := e.q.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM subscriptions
			WHERE user_uid = $1 AND ($2::text IS NULL OR plan_type = $2)`,
			filter.UserUID, planType).Scan(&page.Total)
		if err != nil {
			return classifyError(err)
		}

		rows, err := e.q.QueryContext(ctx, `SELECT `+subscriptionColumns+`, p.name, p.price::float8
			FROM subscriptions s
			JOIN subscription_plans p ON p.id = s.plan_id
			WHERE s.user_uid = $1 AND ($2::text IS NULL OR s.plan_type = $2)
			ORDER BY s.start_date DESC, s.id DESC
			LIMIT $3 OFFSET $4`,
			filter.UserUID, planType, filter.Limit, filter.Offset)
		if err != nil {
			return classifyError(err)
		}
		defer func() {
			_ = rows.Close()
		}()
		for rows.Next() {
			item, err := scanSubscriptionWithPlan(rows)
			if err != nil {
				return err
			}
			page.Items = append(page.Items, *item)
		}
		return classifyError(rows.Err())
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return page, nil
}

// PlanStatistics возвращает по строке на каждый тип плана: число различных
// пользователей, когда‑либо подписанных на планы этого типа, и число
// действующих на момент now подписок. Типы без подписок дают нули.
func (e executor) PlanStatistics(ctx context.Context, now time.Time) ([]models.PlanTypeStatistics, error) {
	const op = "storage.PlanStatistics"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, classifyError(ctx.Err()))
	default:
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	query := `SELECT t.type,
			         COUNT(DISTINCT s.user_uid),
			         COUNT(s.id) FILTER (WHERE s.status = 'active' AND (s.end_date IS NULL OR s.end_date > $1))
			  FROM (VALUES ('free', 1), ('basic', 2), ('pro', 3)) AS t(type, ord)
			  LEFT JOIN subscription_plans p ON p.type = t.type
			  LEFT JOIN subscriptions s ON s.plan_id = p.id
			  GROUP BY t.type, t.ord
			  ORDER BY t.ord`
	rows, err := e.q.QueryContext(ctx, query, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classifyError(err))
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.PlanTypeStatistics, 0, len(models.PlanTypes))
	for rows.Next() {
		var st models.PlanTypeStatistics
		if err = rows.Scan(&st.Type, &st.DistinctUsers, &st.ActiveSubscriptions); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, st)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, classifyError(err))
	}
	return result, nil
}
