package response_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/plan-subscriptions/internal/http/response"
	"github.com/magabrotheeeer/plan-subscriptions/internal/models"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"unauthenticated", models.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated", "unauthenticated"},
		{"invalid credentials", models.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "invalid credentials"},
		{"forbidden", fmt.Errorf("op: %w", models.ErrForbidden), http.StatusForbidden, "forbidden", "forbidden"},
		{"plan not found", models.ErrPlanNotFound, http.StatusNotFound, "plan_not_found", "plan not found"},
		{"subscription not found", models.ErrSubscriptionNotFound, http.StatusNotFound, "subscription_not_found", "subscription not found"},
		{"user not found", models.ErrUserNotFound, http.StatusNotFound, "user_not_found", "user not found"},
		{
			name:       "validation keeps reason",
			err:        fmt.Errorf("services.plan.Create: %w: price must be a non-negative number", models.ErrValidation),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "validation_error",
			wantMsg:    "validation error: price must be a non-negative number",
		},
		{"plan unavailable", models.ErrPlanUnavailable, http.StatusUnprocessableEntity, "plan_unavailable", "plan is not available for subscription"},
		{"invalid upgrade target", models.ErrInvalidUpgradeTarget, http.StatusUnprocessableEntity, "invalid_upgrade_target", "invalid upgrade target"},
		{"duplicate", models.ErrDuplicateActiveSubscription, http.StatusConflict, "duplicate_active_subscription", "active subscription of this plan type already exists"},
		{"email taken", models.ErrEmailTaken, http.StatusConflict, "email_taken", "email already registered"},
		{"not active", models.ErrNotActive, http.StatusConflict, "not_active", "subscription is not active"},
		{
			name:       "conflict hides storage details",
			err:        fmt.Errorf("op: %w: ERROR: update or delete violates foreign key", models.ErrConflict),
			wantStatus: http.StatusConflict,
			wantCode:   "conflict",
			wantMsg:    "conflict",
		},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error", "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rr := httptest.NewRecorder()

			response.FromError(rr, req, newNoopLogger(), tt.err)

			assert.Equal(t, tt.wantStatus, rr.Code)
			var resp response.Response
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.Equal(t, response.StatusError, resp.Status)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantMsg, resp.Error)
			assert.Empty(t, rr.Header().Get("Retry-After"))
		})
	}
}

func TestFromError_StorageValidationHidesDriverText(t *testing.T) {
	driverErr := errors.New(`ERROR: new row for relation "subscription_plans" violates check constraint "subscription_plans_price_check" (SQLSTATE 23514)`)
	err := fmt.Errorf("services.plan.Update: %w", &models.StorageError{Domain: models.ErrValidation, Cause: driverErr})
	req := httptest.NewRequest(http.MethodPut, "/subscriptions/plans/1", nil)
	rr := httptest.NewRecorder()

	response.FromError(rr, req, newNoopLogger(), err)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var resp response.Response
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "validation_error", resp.Code)
	assert.Equal(t, "validation error", resp.Error)
	assert.NotContains(t, resp.Error, "SQLSTATE")
}

func TestFromError_StorageUnavailable(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	response.FromError(rr, req, newNoopLogger(), fmt.Errorf("op: %w: context deadline exceeded", models.ErrStorageUnavailable))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, response.RetryAfterSeconds, rr.Header().Get("Retry-After"))
	var resp response.Response
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "storage_unavailable", resp.Code)
	assert.Equal(t, "storage unavailable", resp.Error)
}

func TestValidation(t *testing.T) {
	type body struct {
		Email string `json:"email" validate:"required,email"`
		Type  string `json:"type" validate:"oneof=free basic pro"`
	}

	err := validator.New().Struct(body{Type: "gold"})
	require.Error(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rr := httptest.NewRecorder()
	response.Validation(rr, req, err)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var resp response.Response
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "validation_error", resp.Code)
	assert.Contains(t, resp.Error, "field Email is a required field")
	assert.Contains(t, resp.Error, "field Type must be one of [free basic pro]")
}

func TestStatusOKWithData(t *testing.T) {
	resp := response.StatusOKWithData(map[string]int{"id": 1})
	assert.Equal(t, response.StatusOK, resp.Status)
	assert.Empty(t, resp.Error)
	assert.Equal(t, response.Response{Status: "OK"}, response.OK())
}
