package cancel

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/plan-subscriptions/internal/http/middlewarectx"
	"github.com/magabrotheeeer/plan-subscriptions/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Cancel(ctx context.Context, principal *models.Principal, req models.DummyCancel) (*models.Subscription, error) {
	args := m.Called(ctx, principal, req)
	s, _ := args.Get(0).(*models.Subscription)
	return s, args.Error(1)
}

func TestCancelHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	user := &models.Principal{UserUID: "u1", Role: models.RoleUser}

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "cancelled",
			body: `{"subscription_id":7}`,
			setupMock: func(m *MockService) {
				m.On("Cancel", mock.Anything, user, models.DummyCancel{SubscriptionID: 7}).
					Return(&models.Subscription{ID: 7, Status: models.StatusCancelled}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"cancelled"`,
		},
		{
			name: "not found",
			body: `{"subscription_id":8}`,
			setupMock: func(m *MockService) {
				m.On("Cancel", mock.Anything, user, models.DummyCancel{SubscriptionID: 8}).
					Return(nil, models.ErrSubscriptionNotFound).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"code":"subscription_not_found"`,
		},
		{
			name:           "zero id",
			body:           `{"subscription_id":0}`,
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

			r := httptest.NewRequest(http.MethodPost, "/subscriptions/cancel", bytes.NewBufferString(tt.body))
			r = r.WithContext(middlewarectx.WithPrincipal(r.Context(), user))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())
			svc.AssertExpectations(t)
		})
	}
}
