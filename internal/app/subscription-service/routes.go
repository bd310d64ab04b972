// Package subscriptionservice собирает HTTP-приложение сервиса подписок:
// хранилище, кеш, сервисы, маршруты и сервер.
package subscriptionservice

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/magabrotheeeer/plan-subscriptions/docs" // swagger docs
	"github.com/magabrotheeeer/plan-subscriptions/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/plan-subscriptions/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/plan-subscriptions/internal/http/handlers/health"
	plancreate "github.com/magabrotheeeer/plan-subscriptions/internal/http/handlers/plan/create"
	planlist "github.com/magabrotheeeer/plan-subscriptions/internal/http/handlers/plan/list"
	planread "github.com/magabrotheeeer/plan-subscriptions/internal/http/handlers/plan/read"
	planremove "github.com/magabrotheeeer/plan-subscriptions/internal/http/handlers/plan/remove"
	"github.com/magabrotheeeer/plan-subscriptions/internal/http/handlers/plan/statistics"
	planupdate "github.com/magabrotheeeer/plan-subscriptions/internal/http/handlers/plan/update"
	"github.com/magabrotheeeer/plan-subscriptions/internal/http/handlers/subscription/active"
	"github.com/magabrotheeeer/plan-subscriptions/internal/http/handlers/subscription/cancel"
	"github.com/magabrotheeeer/plan-subscriptions/internal/http/handlers/subscription/history"
	subread "github.com/magabrotheeeer/plan-subscriptions/internal/http/handlers/subscription/read"
	"github.com/magabrotheeeer/plan-subscriptions/internal/http/handlers/subscription/subscribe"
	"github.com/magabrotheeeer/plan-subscriptions/internal/http/handlers/subscription/upgrade"
	userlist "github.com/magabrotheeeer/plan-subscriptions/internal/http/handlers/user/list"
	"github.com/magabrotheeeer/plan-subscriptions/internal/http/handlers/user/me"
	"github.com/magabrotheeeer/plan-subscriptions/internal/http/middlewarectx"
	"github.com/magabrotheeeer/plan-subscriptions/internal/metrics"
	authservice "github.com/magabrotheeeer/plan-subscriptions/internal/services/auth"
	planservice "github.com/magabrotheeeer/plan-subscriptions/internal/services/plan"
	subservice "github.com/magabrotheeeer/plan-subscriptions/internal/services/subscription"
)

// Services — зависимости маршрутов.
type Services struct {
	Auth         *authservice.AuthService
	Plans        *planservice.PlanService
	Subscription *subservice.SubscriptionService
	DB           health.Pinger
	Limiter      *middlewarectx.RateLimiter
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, s Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		metrics.Middleware,
	)

	r.Get("/health", health.New(logger, s.DB).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)

	r.Group(func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(s.Limiter, logger))

		// Открытые конечные точки
		r.Post("/auth/register", register.New(logger, s.Auth).ServeHTTP)
		r.Post("/auth/login", login.New(logger, s.Auth).ServeHTTP)

		// Каталог планов открыт, токен нужен только администратору для include_inactive
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.OptionalJWTMiddleware(s.Auth, logger))
			r.Get("/subscriptions/plans", planlist.New(logger, s.Plans).ServeHTTP)
			r.Get("/subscriptions/plans/{id}", planread.New(logger, s.Plans).ServeHTTP)
		})

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(s.Auth, logger))

			// Управление планами, статистика и список пользователей только для администратора
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.AdminOnly(logger))
				r.Post("/subscriptions/plans", plancreate.New(logger, s.Plans).ServeHTTP)
				r.Put("/subscriptions/plans/{id}", planupdate.New(logger, s.Plans).ServeHTTP)
				r.Delete("/subscriptions/plans/{id}", planremove.New(logger, s.Plans).ServeHTTP)
				r.Get("/subscriptions/plans/statistics", statistics.New(logger, s.Subscription).ServeHTTP)
				r.Get("/users", userlist.New(logger, s.Auth).ServeHTTP)
			})

			r.Post("/subscriptions/subscribe", subscribe.New(logger, s.Subscription).ServeHTTP)
			r.Post("/subscriptions/upgrade", upgrade.New(logger, s.Subscription).ServeHTTP)
			r.Post("/subscriptions/cancel", cancel.New(logger, s.Subscription).ServeHTTP)
			r.Get("/subscriptions/my-subscriptions", active.New(logger, s.Subscription).ServeHTTP)
			r.Get("/subscriptions/history", history.New(logger, s.Subscription).ServeHTTP)
			r.Get("/subscriptions/{id}", subread.New(logger, s.Subscription).ServeHTTP)

			r.Get("/users/me", me.New(logger, s.Auth).ServeHTTP)
		})
	})
}
