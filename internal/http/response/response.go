// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков. Пакет упрощает возврат
// успешных ответов, ошибок и сообщений валидации в едином формате,
// а также сопоставляет доменные ошибки с HTTP-статусами.
package response

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/plan-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/plan-subscriptions/internal/models"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Status — статус запроса ("OK" или "Error").
// Поле Code — машиночитаемый код ошибки (при неуспехе).
// Поле Error — текст ошибки (опционально, при неуспехе).
// Поле Data — данные ответа (опционально, при успехе).
type Response struct {
	Status string `json:"status"`
	Code   string `json:"code,omitempty"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse — структура ошибки для Swagger-документации.
// Используется в аннотациях @Failure как возвращаемый тип ошибки.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Code   string `json:"code" example:"validation_error"`
	Error  string `json:"error" example:"invalid request body"`
}

const (
	// StatusOK — значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError — значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// Машиночитаемые коды ошибок.
const (
	CodeUnauthenticated             = "unauthenticated"
	CodeForbidden                   = "forbidden"
	CodeUserNotFound                = "user_not_found"
	CodePlanNotFound                = "plan_not_found"
	CodeSubscriptionNotFound        = "subscription_not_found"
	CodeValidation                  = "validation_error"
	CodeDuplicateActiveSubscription = "duplicate_active_subscription"
	CodeConflict                    = "conflict"
	CodeEmailTaken                  = "email_taken"
	CodeInvalidCredentials          = "invalid_credentials"
	CodeNotActive                   = "not_active"
	CodePlanUnavailable             = "plan_unavailable"
	CodeInvalidUpgradeTarget        = "invalid_upgrade_target"
	CodeStorageUnavailable          = "storage_unavailable"
	CodeRateLimited                 = "rate_limited"
	CodeInternal                    = "internal_error"
)

// RetryAfterSeconds — значение заголовка Retry-After при недоступном хранилище.
const RetryAfterSeconds = "1"

type mapping struct {
	err    error
	status int
	code   string
}

// Порядок важен: первая совпавшая ошибка определяет ответ.
var mappings = []mapping{
	{models.ErrUnauthenticated, http.StatusUnauthorized, CodeUnauthenticated},
	{models.ErrInvalidCredentials, http.StatusUnauthorized, CodeInvalidCredentials},
	{models.ErrForbidden, http.StatusForbidden, CodeForbidden},
	{models.ErrUserNotFound, http.StatusNotFound, CodeUserNotFound},
	{models.ErrPlanNotFound, http.StatusNotFound, CodePlanNotFound},
	{models.ErrSubscriptionNotFound, http.StatusNotFound, CodeSubscriptionNotFound},
	{models.ErrValidation, http.StatusUnprocessableEntity, CodeValidation},
	{models.ErrPlanUnavailable, http.StatusUnprocessableEntity, CodePlanUnavailable},
	{models.ErrInvalidUpgradeTarget, http.StatusUnprocessableEntity, CodeInvalidUpgradeTarget},
	{models.ErrDuplicateActiveSubscription, http.StatusConflict, CodeDuplicateActiveSubscription},
	{models.ErrEmailTaken, http.StatusConflict, CodeEmailTaken},
	{models.ErrNotActive, http.StatusConflict, CodeNotActive},
	{models.ErrConflict, http.StatusConflict, CodeConflict},
	{models.ErrStorageUnavailable, http.StatusServiceUnavailable, CodeStorageUnavailable},
}

// OK возвращает успешный Response без данных.
func OK() Response {
	return Response{Status: StatusOK}
}

// StatusOKWithData возвращает успешный Response с переданными данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой, кодом и переданным сообщением.
func Error(code, msg string) Response {
	return Response{
		Status: StatusError,
		Code:   code,
		Error:  msg,
	}
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
// Каждое нарушение формируется в человеко‑читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of [%s]", err.Field(), err.Param()))
		case "gt", "gte", "min":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at least %s", err.Field(), err.Param()))
		case "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at most %s", err.Field(), err.Param()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Code:   CodeValidation,
		Error:  strings.Join(errsMsgs, ", "),
	}
}

// Classify возвращает HTTP-статус и код для ошибки. Неизвестные ошибки
// отображаются в 500.
func Classify(err error) (int, string) {
	m := lookup(err)
	return m.status, m.code
}

func lookup(err error) mapping {
	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return m
		}
	}
	return mapping{status: http.StatusInternalServerError, code: CodeInternal}
}

// FromError пишет ответ для ошибки сервисного слоя. Клиент получает текст
// доменной ошибки без внутренних деталей, полная цепочка уходит в лог.
func FromError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	m := lookup(err)
	status, code := m.status, m.code

	msg := "internal error"
	if m.err != nil {
		msg = m.err.Error()
		// для 422 клиенту полезна причина, она идёт сразу после текста ошибки.
		// Причину из хранилища не раскрываем.
		var storageErr *models.StorageError
		if status == http.StatusUnprocessableEntity && !errors.As(err, &storageErr) {
			full := err.Error()
			if i := strings.Index(full, msg); i >= 0 {
				msg = full[i:]
			}
		}
	}

	switch {
	case status >= http.StatusInternalServerError:
		log.Error("request failed", slog.String("code", code), sl.Err(err))
	default:
		log.Info("request rejected", slog.String("code", code), sl.Err(err))
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", RetryAfterSeconds)
	}

	render.Status(r, status)
	render.JSON(w, r, Error(code, msg))
}

// Validation пишет 422 для ошибки валидации тела запроса.
func Validation(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, ValidationError(verrs))
		return
	}
	render.Status(r, http.StatusUnprocessableEntity)
	render.JSON(w, r, Error(CodeValidation, err.Error()))
}

// BadBody пишет 422 для тела запроса, которое не удалось разобрать.
func BadBody(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusUnprocessableEntity)
	render.JSON(w, r, Error(CodeValidation, "invalid request body"))
}
