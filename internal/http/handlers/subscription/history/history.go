// Package history реализует HTTP-обработчик постраничной истории подписок.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/plan-subscriptions/internal/http/middlewarectx"
	"github.com/magabrotheeeer/plan-subscriptions/internal/http/response"
	"github.com/magabrotheeeer/plan-subscriptions/internal/models"
)

// Handler обрабатывает запросы истории подписок.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики истории подписок.
type Service interface {
	History(ctx context.Context, principal *models.Principal, planType *models.PlanType, limit, offset int) (*models.HistoryPage, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary История подписок
// @Description Все подписки пользователя, новые первыми. Фильтр по типу плана не меняет порядок.
// @Tags Subscriptions
// @Security BearerAuth
// @Produce  json
// @Param type query string false "Тип плана" Enums(free, basic, pro)
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response "Страница истории"
// @Failure 422 {object} response.ErrorResponse "Некорректные параметры"
// @Router /subscriptions/history [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.history"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	q := r.URL.Query()
	var planType *models.PlanType
	if raw := q.Get("type"); raw != "" {
		t, err := models.ParsePlanType(raw)
		if err != nil {
			response.FromError(w, r, log, err)
			return
		}
		planType = &t
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		response.FromError(w, r, log, fmt.Errorf("%w: limit must be an integer", models.ErrValidation))
		return
	}
	offset, err := intParam(q.Get("offset"))
	if err != nil {
		response.FromError(w, r, log, fmt.Errorf("%w: offset must be an integer", models.ErrValidation))
		return
	}

	page, err := h.service.History(r.Context(), middlewarectx.PrincipalFromContext(r.Context()), planType, limit, offset)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	if page.Items == nil {
		page.Items = []models.SubscriptionWithPlan{}
	}

	render.JSON(w, r, response.StatusOKWithData(page))
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
