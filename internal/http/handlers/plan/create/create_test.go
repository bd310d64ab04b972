package create

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/plan-subscriptions/internal/http/middlewarectx"
	"github.com/magabrotheeeer/plan-subscriptions/internal/http/response"
	"github.com/magabrotheeeer/plan-subscriptions/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Create(ctx context.Context, principal *models.Principal, req models.DummyPlan) (*models.Plan, error) {
	args := m.Called(ctx, principal, req)
	p, _ := args.Get(0).(*models.Plan)
	return p, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateHandler(t *testing.T) {
	admin := &models.Principal{UserUID: "adm", Role: models.RoleAdmin}
	user := &models.Principal{UserUID: "u1", Role: models.RoleUser}

	tests := []struct {
		name           string
		principal      *models.Principal
		body           string
		setupMock      func(m *MockService)
		expectedStatus int
		expectedCode   string
	}{
		{
			name:      "admin creates plan",
			principal: admin,
			body:      `{"name":"Basic","type":"basic","price":10}`,
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, admin, mock.MatchedBy(func(p models.DummyPlan) bool {
					return p.Name == "Basic" && p.Type == "basic" && *p.Price == 10
				})).Return(&models.Plan{ID: 1, Name: "Basic", Type: models.PlanTypeBasic, Price: 10, IsActive: true}, nil).Once()
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "regular user is forbidden",
			principal:      user,
			body:           `{"name":"Basic","type":"basic","price":10}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusForbidden,
			expectedCode:   response.CodeForbidden,
		},
		{
			name:           "anonymous",
			body:           `{"name":"Basic","type":"basic","price":10}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   response.CodeUnauthenticated,
		},
		{
			name:           "unknown type",
			principal:      admin,
			body:           `{"name":"Gold","type":"gold","price":10}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   response.CodeValidation,
		},
		{
			name:           "negative price",
			principal:      admin,
			body:           `{"name":"Basic","type":"basic","price":-1}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   response.CodeValidation,
		},
		{
			name:           "missing price",
			principal:      admin,
			body:           `{"name":"Basic","type":"basic"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   response.CodeValidation,
		},
		{
			name:           "broken json",
			principal:      admin,
			body:           `{"name":`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   response.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)
			handler := New(newNoopLogger(), svc)

			req := httptest.NewRequest(http.MethodPost, "/subscriptions/plans", bytes.NewBufferString(tt.body))
			req = req.WithContext(middlewarectx.WithPrincipal(req.Context(), tt.principal))
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			var resp response.Response
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.Equal(t, tt.expectedCode, resp.Code)
			svc.AssertExpectations(t)
		})
	}
}
