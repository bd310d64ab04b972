// Package services содержит логику бизнес-уровня для работы с пользователями и аутентификацией.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/plan-subscriptions/internal/access"
	"github.com/magabrotheeeer/plan-subscriptions/internal/lib/jwt"
	"github.com/magabrotheeeer/plan-subscriptions/internal/lib/password"
	"github.com/magabrotheeeer/plan-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/plan-subscriptions/internal/models"
)

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// CreateUser сохраняет нового пользователя и возвращает его с присвоенным UID.
	CreateUser(ctx context.Context, user models.User) (*models.User, error)

	// GetUserByEmail возвращает пользователя по email или ErrUserNotFound.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUser возвращает пользователя по UID или ErrUserNotFound.
	GetUser(ctx context.Context, userUID string) (*models.User, error)

	// SetUserRole меняет роль пользователя.
	SetUserRole(ctx context.Context, userUID string, role models.Role) error

	// ListUsers возвращает всех пользователей.
	ListUsers(ctx context.Context) ([]models.User, error)
}

// AdminOutcome — результат начальной инициализации администратора.
type AdminOutcome string

const (
	AdminCreated  AdminOutcome = "created"
	AdminPromoted AdminOutcome = "promoted"
	AdminExists   AdminOutcome = "already_exists"
)

// AuthService отвечает за регистрацию, вход и разбор токенов в Principal.
type AuthService struct {
	users    UserRepository
	jwtMaker jwt.Maker
	log      *slog.Logger
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(users UserRepository, jwtMaker jwt.Maker, log *slog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		jwtMaker: jwtMaker,
		log:      log,
	}
}

// Register создает пользователя с ролью user. Email приводится к нижнему регистру.
func (s *AuthService) Register(ctx context.Context, email, rawPassword string) (*models.User, error) {
	const op = "services.auth.Register"

	email = models.NormalizeEmail(email)
	if email == "" || rawPassword == "" {
		return nil, fmt.Errorf("%s: %w: email and password are required", op, models.ErrValidation)
	}
	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrValidation, err)
	}
	user, err := s.users.CreateUser(ctx, models.User{
		Email:        email,
		PasswordHash: hashed,
		Role:         models.RoleUser,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user registered", slog.String("user_uid", user.UUID))
	return user, nil
}

// Login проверяет пароль и выпускает токен доступа. Неизвестный email и
// неверный пароль неразличимы для клиента.
func (s *AuthService) Login(ctx context.Context, email, rawPassword string) (string, *models.User, error) {
	const op = "services.auth.Login"

	user, err := s.users.GetUserByEmail(ctx, models.NormalizeEmail(email))
	if errors.Is(err, models.ErrUserNotFound) {
		return "", nil, fmt.Errorf("%s: %w", op, models.ErrInvalidCredentials)
	}
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		if !errors.Is(err, password.ErrMismatch) {
			s.log.Error("stored password hash is unreadable", slog.String("user_uid", user.UUID), sl.Err(err))
		}
		return "", nil, fmt.Errorf("%s: %w", op, models.ErrInvalidCredentials)
	}
	token, err := s.jwtMaker.GenerateToken(user.UUID, string(user.Role))
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return token, user, nil
}

// ValidateToken проверяет токен и возвращает субъект запроса.
// Токен с неизвестной ролью или субъектом не в формате UUID отклоняется.
func (s *AuthService) ValidateToken(_ context.Context, token string) (*models.Principal, error) {
	const op = "services.auth.ValidateToken"

	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrUnauthenticated, err)
	}
	role, err := models.ParseRole(claims.Role)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrUnauthenticated, err)
	}
	userUID, err := uuid.Parse(claims.UserUID())
	if err != nil {
		return nil, fmt.Errorf("%s: %w: malformed subject", op, models.ErrUnauthenticated)
	}
	return &models.Principal{UserUID: userUID.String(), Role: role}, nil
}

// GetUser возвращает профиль аутентифицированного пользователя.
func (s *AuthService) GetUser(ctx context.Context, principal *models.Principal) (*models.User, error) {
	const op = "services.auth.GetUser"

	if err := access.RequirePrincipal(principal); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user, err := s.users.GetUser(ctx, principal.UserUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// ListUsers возвращает всех пользователей. Доступно только администратору.
func (s *AuthService) ListUsers(ctx context.Context, principal *models.Principal) ([]models.User, error) {
	const op = "services.auth.ListUsers"

	if err := access.RequireAdmin(principal); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// EnsureAdmin создаёт администратора с указанными данными либо повышает
// существующего пользователя до администратора.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, rawPassword string) (AdminOutcome, error) {
	const op = "services.auth.EnsureAdmin"

	email = models.NormalizeEmail(email)
	if email == "" || rawPassword == "" {
		return "", fmt.Errorf("%s: %w: admin email and password are required", op, models.ErrValidation)
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil && existing.IsAdmin():
		return AdminExists, nil
	case err == nil:
		if err = s.users.SetUserRole(ctx, existing.UUID, models.RoleAdmin); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		s.log.Info("user promoted to admin", slog.String("user_uid", existing.UUID))
		return AdminPromoted, nil
	case !errors.Is(err, models.ErrUserNotFound):
		return "", fmt.Errorf("%s: %w", op, err)
	}

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, models.ErrValidation, err)
	}
	admin, err := s.users.CreateUser(ctx, models.User{
		Email:        email,
		PasswordHash: hashed,
		Role:         models.RoleAdmin,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("admin created", slog.String("user_uid", admin.UUID))
	return AdminCreated, nil
}
