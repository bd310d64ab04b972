package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/plan-subscriptions/internal/models"
)

const userColumns = `uid, email, password_hash, role, created_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.UUID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// CreateUser сохраняет нового пользователя. Email должен быть уже нормализован.
func (e executor) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, classifyError(ctx.Err()))
	default:
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	query := `INSERT INTO users (email, password_hash, role)
			  VALUES ($1, $2, $3)
			  RETURNING ` + userColumns
	u, err := scanUser(e.q.QueryRowContext(ctx, query, user.Email, user.PasswordHash, user.Role))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classifyError(err))
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по email.
func (e executor) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, classifyError(ctx.Err()))
	default:
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(e.q.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, models.ErrUserNotFound))
	}
	return u, nil
}

// GetUser возвращает пользователя по его UID.
func (e executor) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, classifyError(ctx.Err()))
	default:
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`
	u, err := scanUser(e.q.QueryRowContext(ctx, query, userUID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, models.ErrUserNotFound))
	}
	return u, nil
}

// SetUserRole меняет роль пользователя.
func (e executor) SetUserRole(ctx context.Context, userUID string, role models.Role) error {
	const op = "storage.SetUserRole"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, classifyError(ctx.Err()))
	default:
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	res, err := e.q.ExecContext(ctx, `UPDATE users SET role = $1 WHERE uid = $2`, role, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, classifyError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	return nil
}

// ListUsers возвращает всех пользователей в порядке регистрации.
func (e executor) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "storage.ListUsers"
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at, uid`
	rows, err := e.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classifyError(err))
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, classifyError(err))
		}
		users = append(users, *u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, classifyError(err))
	}
	return users, nil
}
