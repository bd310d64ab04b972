// Package list реализует HTTP-обработчик списка пользователей для администратора.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/plan-subscriptions/internal/http/middlewarectx"
	"github.com/magabrotheeeer/plan-subscriptions/internal/http/response"
	"github.com/magabrotheeeer/plan-subscriptions/internal/models"
)

// Handler обрабатывает запросы GET /users.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс получения списка пользователей.
type Service interface {
	ListUsers(ctx context.Context, principal *models.Principal) ([]models.User, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Список пользователей
// @Tags Users
// @Security BearerAuth
// @Produce  json
// @Success 200 {object} response.Response "Пользователи"
// @Failure 401 {object} response.ErrorResponse "Не аутентифицирован"
// @Failure 403 {object} response.ErrorResponse "Нужна роль admin"
// @Failure 503 {object} response.ErrorResponse "Хранилище недоступно"
// @Router /users [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	users, err := h.service.ListUsers(r.Context(), middlewarectx.PrincipalFromContext(r.Context()))
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}

	log.Debug("users listed", slog.Int("count", len(users)))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"users": users,
	}))
}
