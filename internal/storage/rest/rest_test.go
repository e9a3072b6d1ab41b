package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscriber-desk/internal/models"
)

const apiKey = "anon-key"

func newTestStorage(t *testing.T, handler http.HandlerFunc) *Storage {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, apiKey, 5*time.Second)
}

func TestStorage_Insert(t *testing.T) {
	storage := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/subscribers", r.URL.Path)
		assert.Equal(t, apiKey, r.Header.Get("apikey"))
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		assert.Equal(t, "return=minimal", r.Header.Get("Prefer"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user-1", body["user_id"])
		assert.Equal(t, "Sara", body["first_name"])
		assert.Equal(t, 1500.5, body["amount"])
		assert.Equal(t, "2026-10-01", body["start_date"])
		assert.Equal(t, "2026-11-01", body["end_date"])
		assert.NotContains(t, body, "id")
		assert.NotContains(t, body, "created_at")

		w.WriteHeader(http.StatusCreated)
	})

	err := storage.Insert(context.Background(), "user-token", models.Subscriber{
		UserID:    "user-1",
		FirstName: "Sara",
		LastName:  "Haddad",
		Phone:     "0555",
		Amount:    1500.5,
		StartDate: models.NewDate(2026, time.October, 1),
		EndDate:   models.NewDate(2026, time.November, 1),
	})
	assert.NoError(t, err)
}

func TestStorage_List(t *testing.T) {
	storage := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "*", r.URL.Query().Get("select"))
		assert.Equal(t, "created_at.desc", r.URL.Query().Get("order"))
		_, _ = w.Write([]byte(`[
			{"id":"2","user_id":"u","first_name":"B","last_name":"Two","phone":"2","amount":50.5,
			 "start_date":"2026-01-01","end_date":"2026-10-20","created_at":"2026-10-02T10:00:00+00:00"},
			{"id":"1","user_id":"u","first_name":"A","last_name":"One","phone":"1","amount":100,
			 "start_date":"2026-01-01","end_date":"2026-10-01","created_at":"2026-10-01T10:00:00+00:00"}
		]`))
	})

	subs, err := storage.List(context.Background(), "user-token")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "2", subs[0].ID)
	assert.Equal(t, 50.5, subs[0].Amount)
	assert.Equal(t, "2026-10-20", subs[0].EndDate.String())
	assert.Equal(t, "1", subs[1].ID)
}

func TestStorage_List_Empty(t *testing.T) {
	storage := newTestStorage(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	subs, err := storage.List(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, subs)
	assert.Empty(t, subs)
}

func TestStorage_Delete(t *testing.T) {
	storage := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "eq.abc-123", r.URL.Query().Get("id"))
		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, storage.Delete(context.Background(), "user-token", "abc-123"))
	assert.Error(t, storage.Delete(context.Background(), "user-token", ""))
}

func TestStorage_AnonymousUsesAPIKey(t *testing.T) {
	storage := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+apiKey, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := storage.List(context.Background(), "")
	assert.NoError(t, err)
}

func TestStorage_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{
			name:    "postgrest error",
			status:  http.StatusForbidden,
			body:    `{"code":"42501","message":"new row violates row-level security policy","details":null,"hint":null}`,
			wantMsg: "status 403: new row violates row-level security policy (42501)",
		},
		{
			name:    "plain failure",
			status:  http.StatusBadGateway,
			body:    `oops`,
			wantMsg: "status 502: Bad Gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := newTestStorage(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := storage.List(context.Background(), "user-token")
			require.Error(t, err)

			var dataErr *models.DataError
			require.True(t, errors.As(err, &dataErr))
			assert.Equal(t, "storage.rest.List", dataErr.Op)
			assert.Equal(t, tt.wantMsg, dataErr.Err.Error())
		})
	}
}
