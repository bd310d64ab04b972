package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/plan-subscriptions/internal/models"
)

const planColumns = `id, name, type, description, price::float8, duration_days, features,
		is_active, plan_group, created_at, updated_at`

func scanPlan(row interface{ Scan(dest ...any) error }) (*models.Plan, error) {
	var (
		p            models.Plan
		description  sql.NullString
		durationDays sql.NullInt64
		features     []byte
		group        sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Type, &description, &p.Price, &durationDays,
		&features, &p.IsActive, &group, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if description.Valid {
		p.Description = &description.String
	}
	if durationDays.Valid {
		d := int(durationDays.Int64)
		p.DurationDays = &d
	}
	if group.Valid {
		p.Group = &group.String
	}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &p.Features); err != nil {
			return nil, fmt.Errorf("decode features: %w", err)
		}
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func encodeFeatures(features map[string]any) (string, error) {
	if features == nil {
		return "{}", nil
	}
	b, err := json.Marshal(features)
	if err != nil {
		return "", fmt.Errorf("%w: features: %v", models.ErrValidation, err)
	}
	return string(b), nil
}

// CreatePlan сохраняет новый тарифный план и возвращает его с присвоенным ID.
func (e executor) CreatePlan(ctx context.Context, plan models.Plan) (*models.Plan, error) {
	const op = "storage.CreatePlan"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, classifyError(ctx.Err()))
	default:
	}
	features, err := encodeFeatures(plan.Features)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	query := `INSERT INTO subscription_plans (name, type, description, price, duration_days,
			      features, is_active, plan_group)
			  VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)
			  RETURNING ` + planColumns
	p, err := scanPlan(e.q.QueryRowContext(ctx, query,
		plan.Name, plan.Type, plan.Description, plan.Price, plan.DurationDays,
		features, plan.IsActive, plan.Group))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classifyError(err))
	}
	return p, nil
}

// GetPlan возвращает план по ID.
func (e executor) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	const op = "storage.GetPlan"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, classifyError(ctx.Err()))
	default:
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + planColumns + ` FROM subscription_plans WHERE id = $1`
	p, err := scanPlan(e.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, models.ErrPlanNotFound))
	}
	return p, nil
}

// SharePlan читает план с разделяемой блокировкой: до конца транзакции
// план нельзя изменить или удалить.
func (e executor) SharePlan(ctx context.Context, id int64) (*models.Plan, error) {
	const op = "storage.SharePlan"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, classifyError(ctx.Err()))
	default:
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + planColumns + ` FROM subscription_plans WHERE id = $1 FOR SHARE`
	p, err := scanPlan(e.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, models.ErrPlanNotFound))
	}
	return p, nil
}

// ListPlans возвращает планы, отсортированные по ID. Неактивные планы
// попадают в выборку только при filter.IncludeInactive.
func (e executor) ListPlans(ctx context.Context, filter models.PlanFilter) ([]models.Plan, error) {
	const op = "storage.ListPlans"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, classifyError(ctx.Err()))
	default:
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var planType *string
	if filter.Type != nil {
		t := string(*filter.Type)
		planType = &t
	}
	query := `SELECT ` + planColumns + `
			  FROM subscription_plans
			  WHERE ($1::text IS NULL OR type = $1)
			    AND ($2 OR is_active)
			  ORDER BY id`
	rows, err := e.q.QueryContext(ctx, query, planType, filter.IncludeInactive)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classifyError(err))
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.Plan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, classifyError(err))
	}
	return result, nil
}

// UpdatePlan применяет patch к плану id под блокировкой строки. При смене
// типа плана тип переписывается и во всех его подписках в той же транзакции.
func (s *Storage) UpdatePlan(ctx context.Context, id int64, patch models.PlanPatch) (*models.Plan, error) {
	const op = "storage.UpdatePlan"

	var updated *models.Plan
	err := s.inTx(ctx, nil, func(ctx context.Context, e executor) error {
		current, err := scanPlan(e.q.QueryRowContext(ctx,
			`SELECT `+planColumns+` FROM subscription_plans WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return notFound(err, models.ErrPlanNotFound)
		}

		next := *current
		if err = patch.Apply(&next); err != nil {
			return err
		}
		features, err := encodeFeatures(next.Features)
		if err != nil {
			return err
		}

		updated, err = scanPlan(e.q.QueryRowContext(ctx, `
			UPDATE subscription_plans
			SET name = $1, type = $2, description = $3, price = $4, duration_days = $5,
			    features = $6::jsonb, is_active = $7, plan_group = $8, updated_at = NOW()
			WHERE id = $9
			RETURNING `+planColumns,
			next.Name, next.Type, next.Description, next.Price, next.DurationDays,
			features, next.IsActive, next.Group, id))
		if err != nil {
			return classifyError(err)
		}

		if next.Type != current.Type {
			_, err = e.q.ExecContext(ctx,
				`UPDATE subscriptions SET plan_type = $1, updated_at = NOW() WHERE plan_id = $2`,
				next.Type, id)
			if err != nil {
				err = classifyError(err)
				// Пользователь уже держит активную подписку нового типа.
				if errors.Is(err, models.ErrDuplicateActiveSubscription) {
					return fmt.Errorf("%w: %v", models.ErrConflict, err)
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

// DeletePlan удаляет план. План, на который ссылается хотя бы одна подписка
// (в любом статусе), удалить нельзя: возвращается ErrConflict.
func (s *Storage) DeletePlan(ctx context.Context, id int64) error {
	const op = "storage.DeletePlan"

	err := s.inTx(ctx, nil, func(ctx context.Context, e executor) error {
		var referenced bool
		err := e.q.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM subscriptions WHERE plan_id = $1)`, id).Scan(&referenced)
		if err != nil {
			return classifyError(err)
		}
		if referenced {
			return fmt.Errorf("%w: plan %d is referenced by subscriptions", models.ErrConflict, id)
		}

		res, err := e.q.ExecContext(ctx, `DELETE FROM subscription_plans WHERE id = $1`, id)
		if err != nil {
			return classifyError(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return models.ErrPlanNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
