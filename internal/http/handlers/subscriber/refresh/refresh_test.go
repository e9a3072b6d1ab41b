package refresh

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subscriber-desk/internal/models"
	"github.com/magabrotheeeer/subscriber-desk/internal/viewmodel"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Refresh(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *ServiceMock) View(mode models.FilterMode) viewmodel.View {
	return m.Called(mode).Get(0).(viewmodel.View)
}

func TestRefreshHandler(t *testing.T) {
	tests := []struct {
		name       string
		refreshErr error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "успешно",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"OK","data":{"filter":"active","subscribers":[],"summary":{"count":0,"total_amount":0}}}`,
		},
		{
			name:       "ошибка загрузки",
			refreshErr: &models.DataError{Op: "storage.rest.List", Err: errors.New("timeout")},
			wantStatus: http.StatusBadGateway,
			wantBody:   `{"status":"Error","error":"error loading subscribers"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			svc.On("Refresh", mock.Anything).Return(tt.refreshErr).Once()
			if tt.refreshErr == nil {
				svc.On("View", models.FilterMode("")).
					Return(viewmodel.View{Filter: models.FilterActive, Cards: []viewmodel.Card{}}).Once()
			}

			rec := httptest.NewRecorder()
			New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).
				ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/subscribers/refresh", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
			svc.AssertExpectations(t)
		})
	}
}
