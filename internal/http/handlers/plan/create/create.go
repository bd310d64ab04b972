// Package create реализует HTTP-обработчик создания тарифного плана.
// Доступен только администратору.
package create

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/plan-subscriptions/internal/access"
	"github.com/magabrotheeeer/plan-subscriptions/internal/http/middlewarectx"
	"github.com/magabrotheeeer/plan-subscriptions/internal/http/response"
	"github.com/magabrotheeeer/plan-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/plan-subscriptions/internal/models"
)

// Handler обрабатывает запросы на создание плана.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики создания плана.
type Service interface {
	Create(ctx context.Context, principal *models.Principal, req models.DummyPlan) (*models.Plan, error)
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
// @Summary Создать тарифный план
// @Tags Plans
// @Security BearerAuth
// @Accept  json
// @Produce  json
// @Param request body models.DummyPlan true "План"
// @Success 201 {object} response.Response "План создан"
// @Failure 401 {object} response.ErrorResponse "Не аутентифицирован"
// @Failure 403 {object} response.ErrorResponse "Нужна роль admin"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /subscriptions/plans [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.create"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principal := middlewarectx.PrincipalFromContext(r.Context())
	if err := access.RequireAdmin(principal); err != nil {
		response.FromError(w, r, log, err)
		return
	}

	var req models.DummyPlan
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.BadBody(w, r)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		response.Validation(w, r, err)
		return
	}

	plan, err := h.service.Create(r.Context(), principal, req)
	if err != nil {
		response.FromError(w, r, log, err)
		return
	}

	log.Info("plan created", slog.Int64("plan_id", plan.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"plan": plan,
	}))
}
