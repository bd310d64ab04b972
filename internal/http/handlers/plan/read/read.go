// Package read реализует HTTP-обработчик получения тарифного плана по ID.
package read

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/plan-subscriptions/internal/http/middlewarectx"
	"github.com/magabrotheeeer/plan-subscriptions/internal/http/response"
	"github.com/magabrotheeeer/plan-subscriptions/internal/models"
)

// Handler обрабатывает запросы на получение плана.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики чтения плана.
type Service interface {
	Get(ctx context.Context, id int64) (*models.Plan, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Получить тарифный план
// @Tags Plans
// @Produce  json
// @Param id path int true "ID плана"
// @Success 200 {object} response.Response "План"
// @Failure 404 {object} response.ErrorResponse "План не найден"
// @Failure 422 {object} response.ErrorResponse "Некорректный ID"
// @Router /subscriptions/plans/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.read"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.FromError(w, r, log, fmt.Errorf("%w: invalid plan id", models.ErrValidation))
		return
	}

	plan, err := h.service.Get(r.Context(), id)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}
	// неактивный план виден только администратору
	if !plan.IsActive && !middlewarectx.PrincipalFromContext(r.Context()).IsAdmin() {
		response.FromError(w, r, log, fmt.Errorf("%w: plan %d is inactive", models.ErrPlanNotFound, id))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"plan": plan,
	}))
}
