// Package remove реализует HTTP-обработчик удаления тарифного плана.
// План, на который ссылается хотя бы одна подписка, не удаляется (409).
package remove

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

// Handler обрабатывает запросы на удаление плана.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики удаления плана.
type Service interface {
	Delete(ctx context.Context, principal *models.Principal, id int64) error
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Удалить тарифный план
// @Tags Plans
// @Security BearerAuth
// @Produce  json
// @Param id path int true "ID плана"
// @Success 200 {object} response.Response "План удалён"
// @Failure 403 {object} response.ErrorResponse "Нужна роль admin"
// @Failure 404 {object} response.ErrorResponse "План не найден"
// @Failure 409 {object} response.ErrorResponse "На план ссылаются подписки"
// @Router /subscriptions/plans/{id} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.remove"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.FromError(w, r, log, fmt.Errorf("%w: invalid plan id", models.ErrValidation))
		return
	}

	if err = h.service.Delete(r.Context(), middlewarectx.PrincipalFromContext(r.Context()), id); err != nil {
		response.FromError(w, r, log, err)
		return
	}

	log.Info("plan deleted", slog.Int64("plan_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"deleted_id": id,
	}))
}
