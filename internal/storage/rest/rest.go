// Package rest — драйвер хранилища подписчиков поверх PostgREST-совместимого API
// размещённого сервиса. Все запросы идут к таблице subscribers.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/magabrotheeeer/subscriber-desk/internal/metrics"
	"github.com/magabrotheeeer/subscriber-desk/internal/models"
)

const (
	service = "record_store"
	table   = "subscribers"
)

// Storage обращается к REST API таблицы subscribers.
type Storage struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New создаёт драйвер. baseURL — адрес проекта без суффикса /rest/v1.
func New(baseURL, apiKey string, timeout time.Duration) *Storage {
	return &Storage{
		baseURL: strings.TrimRight(baseURL, "/") + "/rest/v1/" + table,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type insertRow struct {
	UserID    string      `json:"user_id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Phone     string      `json:"phone"`
	Amount    float64     `json:"amount"`
	StartDate models.Date `json:"start_date"`
	EndDate   models.Date `json:"end_date"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// Insert добавляет запись. ID и created_at назначает хранилище.
func (s *Storage) Insert(ctx context.Context, accessToken string, sub models.Subscriber) error {
	const op = "storage.rest.Insert"

	row := insertRow{
		UserID:    sub.UserID,
		FirstName: sub.FirstName,
		LastName:  sub.LastName,
		Phone:     sub.Phone,
		Amount:    sub.Amount,
		StartDate: sub.StartDate,
		EndDate:   sub.EndDate,
	}
	headers := map[string]string{"Prefer": "return=minimal"}
	return s.do(ctx, op, http.MethodPost, nil, accessToken, headers, row, nil)
}

// List возвращает все записи, новые первыми.
func (s *Storage) List(ctx context.Context, accessToken string) ([]models.Subscriber, error) {
	const op = "storage.rest.List"

	query := url.Values{}
	query.Set("select", "*")
	query.Set("order", "created_at.desc")

	result := []models.Subscriber{}
	if err := s.do(ctx, op, http.MethodGet, query, accessToken, nil, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete удаляет запись по ID.
func (s *Storage) Delete(ctx context.Context, accessToken, id string) error {
	const op = "storage.rest.Delete"

	if id == "" {
		return &models.DataError{Op: op, Err: fmt.Errorf("empty id")}
	}
	query := url.Values{}
	query.Set("id", "eq."+id)
	return s.do(ctx, op, http.MethodDelete, query, accessToken, nil, nil, nil)
}

func (s *Storage) do(ctx context.Context, op, method string, query url.Values, accessToken string,
	headers map[string]string, body, target any) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveRemote(service, op, start, err) }()

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &models.DataError{Op: op, Err: err}
		}
		reqBody = bytes.NewReader(payload)
	}

	endpoint := s.baseURL
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return &models.DataError{Op: op, Err: err}
	}
	bearer := accessToken
	if bearer == "" {
		bearer = s.apiKey
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &models.DataError{Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &models.DataError{Op: op, Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return &models.DataError{Op: op, Err: remoteError(resp.StatusCode, data)}
	}

	if target == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return &models.DataError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func remoteError(status int, body []byte) error {
	var e errorResponse
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		if e.Code != "" {
			return fmt.Errorf("status %d: %s (%s)", status, e.Message, e.Code)
		}
		return fmt.Errorf("status %d: %s", status, e.Message)
	}
	return fmt.Errorf("status %d: %s", status, http.StatusText(status))
}
