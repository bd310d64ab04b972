// Package models содержит доменные структуры сервиса подписок: пользователей,
// тарифные планы, подписки, фильтры выборок, а также доменные ошибки.
// Структуры используются в бизнес‑логике, хранилище и HTTP‑слое.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Role — роль пользователя. Закрытое перечисление, произвольные строки
// не должны попадать в проверку прав доступа.
type Role string

const (
	// RoleUser — обычный пользователь.
	RoleUser Role = "user"
	// RoleAdmin — администратор, может управлять тарифными планами.
	RoleAdmin Role = "admin"
)

// ParseRole преобразует строку в Role. Неизвестное значение даёт ErrValidation.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrValidation, s)
}

// User представляет зарегистрированного пользователя системы.
type User struct {
	UUID         string    `json:"uid"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsAdmin сообщает, является ли пользователь администратором.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// NormalizeEmail приводит email к каноничному виду для хранения и поиска.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Principal — аутентифицированный субъект запроса, полученный из bearer‑токена.
type Principal struct {
	UserUID string
	Role    Role
}

// IsAdmin сообщает, действует ли субъект с ролью администратора.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}
