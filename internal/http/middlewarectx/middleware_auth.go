// Package middlewarectx содержит HTTP middleware для обработки и проверки JWT токенов
// и ограничения частоты запросов.
//
// JWTMiddleware проверяет наличие и валидность JWT токена в заголовке Authorization
// и в случае успеха кладёт в контекст субъекта запроса (идентификатор и роль).
// OptionalJWTMiddleware делает то же для открытых маршрутов: запрос без заголовка
// проходит анонимно, но неверный токен отклоняется. AdminOnly закрывает
// административные маршруты.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/plan-subscriptions/internal/access"
	"github.com/magabrotheeeer/plan-subscriptions/internal/http/response"
	"github.com/magabrotheeeer/plan-subscriptions/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// Principal — ключ субъекта запроса в контексте.
const Principal Key = "principal"

const bearerPrefix = "Bearer "

// Service описывает интерфейс сервиса для валидации JWT токена.
type Service interface {
	ValidateToken(ctx context.Context, token string) (*models.Principal, error)
}

// PrincipalFromContext возвращает субъекта запроса или nil для анонимного запроса.
func PrincipalFromContext(ctx context.Context) *models.Principal {
	p, _ := ctx.Value(Principal).(*models.Principal)
	return p
}

// WithPrincipal кладёт субъекта в контекст.
func WithPrincipal(ctx context.Context, p *models.Principal) context.Context {
	return context.WithValue(ctx, Principal, p)
}

// JWTMiddleware возвращает HTTP middleware, который требует валидный JWT
// в заголовке Authorization. Иначе отвечает 401 Unauthorized.
func JWTMiddleware(authService Service, log *slog.Logger) func(http.Handler) http.Handler {
	return jwtMiddleware(authService, log, true)
}

// OptionalJWTMiddleware пропускает запросы без заголовка Authorization.
func OptionalJWTMiddleware(authService Service, log *slog.Logger) func(http.Handler) http.Handler {
	return jwtMiddleware(authService, log, false)
}

func jwtMiddleware(authService Service, log *slog.Logger, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" && !required {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(authHeader, bearerPrefix) {
				response.FromError(w, r, log, models.ErrUnauthenticated)
				return
			}

			principal, err := authService.ValidateToken(r.Context(), strings.TrimPrefix(authHeader, bearerPrefix))
			if err != nil {
				response.FromError(w, r, log, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// AdminOnly пропускает дальше только администратора. Ставится после JWTMiddleware.
func AdminOnly(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := access.RequireAdmin(PrincipalFromContext(r.Context())); err != nil {
				log := log.With(
					slog.String("op", "middlewarectx.AdminOnly"),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				)
				response.FromError(w, r, log, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
