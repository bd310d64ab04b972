// Package active реализует HTTP-обработчик списка действующих подписок пользователя.
package active

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

// Handler обрабатывает запросы на получение действующих подписок.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики выборки действующих подписок.
type Service interface {
	Active(ctx context.Context, principal *models.Principal) ([]models.SubscriptionWithPlan, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Мои действующие подписки
// @Description Подписки со статусом active и датой окончания в будущем или без неё, вместе с данными плана.
// @Tags Subscriptions
// @Security BearerAuth
// @Produce  json
// @Success 200 {object} response.Response "Подписки"
// @Failure 401 {object} response.ErrorResponse "Не аутентифицирован"
// @Router /subscriptions/my-subscriptions [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.active"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	items, err := h.service.Active(r.Context(), middlewarectx.PrincipalFromContext(r.Context()))
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	if items == nil {
		items = []models.SubscriptionWithPlan{}
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscriptions": items,
	}))
}
