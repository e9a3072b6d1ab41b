package register

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subscriber-desk/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) SignUp(ctx context.Context, email, password string) error {
	return m.Called(ctx, email, password).Error(0)
}

func TestRegisterHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setupMock  func(m *ServiceMock)
		wantStatus int
		wantBody   string
	}{
		{
			name: "успешная регистрация",
			body: `{"email":"new@example.com","password":"secret"}`,
			setupMock: func(m *ServiceMock) {
				m.On("SignUp", mock.Anything, "new@example.com", "secret").Return(nil).Once()
			},
			wantStatus: http.StatusCreated,
			wantBody:   `{"status":"OK","data":{"email":"new@example.com","message":"account created, please sign in"}}`,
		},
		{
			name:       "неверный email",
			body:       `{"email":"nope","password":"secret"}`,
			setupMock:  func(_ *ServiceMock) {},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `{"status":"Error","error":"field Email must be a valid email"}`,
		},
		{
			name: "пользователь уже существует",
			body: `{"email":"dup@example.com","password":"secret"}`,
			setupMock: func(m *ServiceMock) {
				m.On("SignUp", mock.Anything, "dup@example.com", "secret").
					Return(&models.AuthError{Status: 422, Message: "User already registered"}).Once()
			},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"status":"Error","error":"User already registered"}`,
		},
		{
			name:       "битое тело",
			body:       `{`,
			setupMock:  func(_ *ServiceMock) {},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"status":"Error","error":"invalid request body"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setupMock(svc)
			h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/session/register", bytes.NewBufferString(tt.body))
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
			svc.AssertExpectations(t)
		})
	}
}

