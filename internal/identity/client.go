// Package identity — клиент размещённого сервиса идентификации (GoTrue-совместимый REST API).
//
// Клиент выполняет регистрацию, вход по паролю, обновление и отзыв токена,
// а также запрос текущего пользователя. Ошибки сервиса возвращаются как
// *models.AuthError с сообщением сервиса без изменений.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/magabrotheeeer/subscriber-desk/internal/lib/jwt"
	"github.com/magabrotheeeer/subscriber-desk/internal/metrics"
	"github.com/magabrotheeeer/subscriber-desk/internal/models"
)

const service = "identity"

// Client ходит в сервис идентификации.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tokens     *jwt.Parser
	now        func() time.Time
}

// New создаёт клиента. baseURL — адрес проекта без суффикса /auth/v1.
func New(baseURL, apiKey string, timeout time.Duration, tokens *jwt.Parser) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/auth/v1",
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tokens: tokens,
		now:    time.Now,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	User         models.User `json:"user"`
}

// signUpResponse покрывает оба варианта ответа: с сессией (user вложен)
// и без неё, когда требуется подтверждение почты (user на верхнем уровне).
type signUpResponse struct {
	tokenResponse
	ID    string `json:"id"`
	Email string `json:"email"`
}

type errorResponse struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
	Error            string `json:"error"`
}

// SignUp регистрирует пользователя. Сессию, даже если сервис её выдал, клиент не возвращает.
func (c *Client) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	const op = "identity.SignUp"

	var resp signUpResponse
	if err := c.do(ctx, op, http.MethodPost, "/signup", "", credentials{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}

	user := resp.User
	if user.ID == "" {
		user = models.User{ID: resp.ID, Email: resp.Email}
	}
	return &user, nil
}

// SignIn выполняет вход по email и паролю.
func (c *Client) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	const op = "identity.SignIn"

	var resp tokenResponse
	if err := c.do(ctx, op, http.MethodPost, "/token?grant_type=password", "", credentials{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	return c.session(op, resp)
}

// Refresh обменивает refresh-токен на новую пару.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	const op = "identity.Refresh"

	body := map[string]string{"refresh_token": refreshToken}
	var resp tokenResponse
	if err := c.do(ctx, op, http.MethodPost, "/token?grant_type=refresh_token", "", body, &resp); err != nil {
		return nil, err
	}
	return c.session(op, resp)
}

// SignOut отзывает сессию на стороне сервиса.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	const op = "identity.SignOut"
	return c.do(ctx, op, http.MethodPost, "/logout", accessToken, nil, nil)
}

// GetUser возвращает владельца access-токена.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*models.User, error) {
	const op = "identity.GetUser"

	var user models.User
	if err := c.do(ctx, op, http.MethodGet, "/user", accessToken, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) session(op string, resp tokenResponse) (*models.Session, error) {
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%s: empty access token in response", op)
	}

	sess := &models.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User:         resp.User,
	}

	switch {
	case resp.ExpiresAt > 0:
		sess.ExpiresAt = time.Unix(resp.ExpiresAt, 0)
	case resp.ExpiresIn > 0:
		sess.ExpiresAt = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	claims, err := c.tokens.ParseToken(resp.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sess.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	if sess.User.ID == "" {
		sess.User.ID = claims.Subject
	}
	if sess.User.Email == "" {
		sess.User.Email = claims.Email
	}
	return sess, nil
}

func (c *Client) do(ctx context.Context, op, method, path, accessToken string, body, target any) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveRemote(service, op, start, err) }()

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return authError(resp.StatusCode, data)
	}

	if target == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func authError(status int, body []byte) error {
	var e errorResponse
	msg := ""
	if json.Unmarshal(body, &e) == nil {
		for _, m := range []string{e.Msg, e.ErrorDescription, e.Message, e.Error} {
			if m != "" {
				msg = m
				break
			}
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &models.AuthError{Status: status, Message: msg}
}

// IsAuthError сообщает, является ли err ответом сервиса идентификации.
func IsAuthError(err error) bool {
	var authErr *models.AuthError
	return errors.As(err, &authErr)
}
