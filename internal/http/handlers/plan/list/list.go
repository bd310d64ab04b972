// Package list реализует HTTP-обработчик списка тарифных планов.
//
// Маршрут открытый. Параметр type фильтрует по типу плана,
// include_inactive=true учитывается только для администратора.
package list

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

// Handler обрабатывает запросы на получение списка планов.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики выборки планов.
type Service interface {
	List(ctx context.Context, principal *models.Principal, filter models.PlanFilter) ([]models.Plan, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Список тарифных планов
// @Tags Plans
// @Produce  json
// @Param type query string false "Тип плана" Enums(free, basic, pro)
// @Param include_inactive query bool false "Показать неактивные (только admin)"
// @Success 200 {object} response.Response "Список планов"
// @Failure 422 {object} response.ErrorResponse "Неизвестный тип"
// @Router /subscriptions/plans [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var filter models.PlanFilter
	q := r.URL.Query()
	if raw := q.Get("type"); raw != "" {
		planType, err := models.ParsePlanType(raw)
		if err != nil {
			response.FromError(w, r, log, err)
			return
		}
		filter.Type = &planType
	}
	if raw := q.Get("include_inactive"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.FromError(w, r, log, fmt.Errorf("%w: include_inactive must be a boolean", models.ErrValidation))
			return
		}
		filter.IncludeInactive = v
	}

	plans, err := h.service.List(r.Context(), middlewarectx.PrincipalFromContext(r.Context()), filter)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}

	log.Debug("plans listed", slog.Int("count", len(plans)))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"plans": plans,
	}))
}
