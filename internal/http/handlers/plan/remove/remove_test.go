package remove

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/plan-subscriptions/internal/http/middlewarectx"
	"github.com/magabrotheeeer/plan-subscriptions/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Delete(ctx context.Context, principal *models.Principal, id int64) error {
	args := m.Called(ctx, principal, id)
	return args.Error(0)
}

func TestRemoveHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	admin := &models.Principal{UserUID: "adm", Role: models.RoleAdmin}

	tests := []struct {
		name           string
		id             string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "deleted",
			id:   "1",
			setupMock: func(m *MockService) {
				m.On("Delete", mock.Anything, admin, int64(1)).Return(nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"deleted_id":1`,
		},
		{
			name: "referenced by subscriptions",
			id:   "2",
			setupMock: func(m *MockService) {
				m.On("Delete", mock.Anything, admin, int64(2)).Return(models.ErrConflict).Once()
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"code":"conflict"`,
		},
		{
			name:           "bad id",
			id:             "x",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `"code":"validation_error"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)
			handler := New(logger, svc)

			req := httptest.NewRequest(http.MethodDelete, "/subscriptions/plans/"+tt.id, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.id)
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			req = req.WithContext(middlewarectx.WithPrincipal(ctx, admin))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())
			svc.AssertExpectations(t)
		})
	}
}
