// Package me реализует HTTP-обработчик получения текущего пользователя.
package me

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

// Handler обрабатывает запросы /users/me.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс получения пользователя по субъекту запроса.
type Service interface {
	GetUser(ctx context.Context, principal *models.Principal) (*models.User, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Текущий пользователь
// @Tags Users
// @Security BearerAuth
// @Produce  json
// @Success 200 {object} response.Response "Пользователь"
// @Failure 401 {object} response.ErrorResponse "Не аутентифицирован"
// @Failure 404 {object} response.ErrorResponse "Пользователь удалён"
// @Router /users/me [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.me"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, err := h.service.GetUser(r.Context(), middlewarectx.PrincipalFromContext(r.Context()))
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user": user,
	}))
}
