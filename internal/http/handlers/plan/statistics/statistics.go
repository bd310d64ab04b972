// Package statistics реализует HTTP-обработчик статистики по типам планов.
package statistics

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

// Handler обрабатывает запросы статистики.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики статистики.
type Service interface {
	Statistics(ctx context.Context, principal *models.Principal) ([]models.PlanTypeStatistics, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Статистика по типам планов
// @Description Для каждого типа: число различных пользователей и число действующих подписок.
// @Tags Plans
// @Security BearerAuth
// @Produce  json
// @Success 200 {object} response.Response "Статистика"
// @Failure 403 {object} response.ErrorResponse "Нужна роль admin"
// @Router /subscriptions/plans/statistics [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.statistics"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	stats, err := h.service.Statistics(r.Context(), middlewarectx.PrincipalFromContext(r.Context()))
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"statistics": stats,
	}))
}
