// Package update реализует HTTP-обработчик частичного обновления плана.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/plan-subscriptions/internal/access"
	"github.com/magabrotheeeer/plan-subscriptions/internal/http/middlewarectx"
	"github.com/magabrotheeeer/plan-subscriptions/internal/http/response"
	"github.com/magabrotheeeer/plan-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/plan-subscriptions/internal/models"
)

// Handler обрабатывает запросы на обновление плана.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики обновления плана.
type Service interface {
	Update(ctx context.Context, principal *models.Principal, id int64, patch models.PlanPatch) (*models.Plan, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Обновить тарифный план
// @Description Меняет только переданные поля. Смена типа переносится на подписки плана.
// @Tags Plans
// @Security BearerAuth
// @Accept  json
// @Produce  json
// @Param id path int true "ID плана"
// @Param request body models.PlanPatch true "Изменяемые поля"
// @Success 200 {object} response.Response "Обновлённый план"
// @Failure 403 {object} response.ErrorResponse "Нужна роль admin"
// @Failure 404 {object} response.ErrorResponse "План не найден"
// @Failure 409 {object} response.ErrorResponse "Конфликт с активными подписками"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /subscriptions/plans/{id} [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.update"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principal := middlewarectx.PrincipalFromContext(r.Context())
	if err := access.RequireAdmin(principal); err != nil {
		response.FromError(w, r, log, err)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.FromError(w, r, log, fmt.Errorf("%w: invalid plan id", models.ErrValidation))
		return
	}

	var patch models.PlanPatch
	if err = json.NewDecoder(r.Body).Decode(&patch); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.BadBody(w, r)
		return
	}
	if err = h.validate.Struct(patch); err != nil {
		log.Info("validation failed", sl.Err(err))
		response.Validation(w, r, err)
		return
	}

	plan, err := h.service.Update(r.Context(), principal, id, patch)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}

	log.Info("plan updated", slog.Int64("plan_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"plan": plan,
	}))
}
