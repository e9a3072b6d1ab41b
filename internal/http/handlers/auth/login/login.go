// Package login реализует вход оператора через JSON API.
//
// Запрос декодируется и валидируется, затем вход делегируется Session Gate.
// Ошибка сервиса идентификации возвращается клиенту без изменений.
package login

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscriber-desk/internal/http/response"
	"github.com/magabrotheeeer/subscriber-desk/internal/lib/sl"
	"github.com/magabrotheeeer/subscriber-desk/internal/models"
)

// Request — учётные данные для входа.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SessionData — ответ при успешном входе. Токены наружу не отдаются.
type SessionData struct {
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Service описывает вход и чтение текущей сессии.
type Service interface {
	SignIn(ctx context.Context, email, password string) error
	Current() (models.Session, bool)
}

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	if err := h.service.SignIn(r.Context(), req.Email, req.Password); err != nil {
		status, msg := response.Describe(err, "sign in failed")
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}

	s, ok := h.service.Current()
	if !ok {
		// сессию сбросили между входом и ответом
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error(models.ErrNoSession.Error()))
		return
	}

	log.Info("login success", slog.String("email", req.Email))
	render.JSON(w, r, response.OKWithData(SessionData{
		User:      s.User,
		ExpiresAt: s.ExpiresAt,
	}))
}
