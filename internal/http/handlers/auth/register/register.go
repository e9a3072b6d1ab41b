// Package register реализует регистрацию оператора через JSON API.
// Регистрация не открывает сессию: после неё нужно войти отдельно.
package register

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscriber-desk/internal/http/response"
	"github.com/magabrotheeeer/subscriber-desk/internal/lib/sl"
)

// Message сопровождает успешную регистрацию.
const Message = "account created, please sign in"

type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Service interface {
	SignUp(ctx context.Context, email, password string) error
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
	const op = "handlers.auth.register"

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

	if err := h.service.SignUp(r.Context(), req.Email, req.Password); err != nil {
		status, msg := response.Describe(err, "sign up failed")
		if status == http.StatusUnauthorized {
			// отказ в регистрации отдаётся как 400
			status = http.StatusBadRequest
		}
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}

	log.Info("account created", slog.String("email", req.Email))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(map[string]string{
		"email":   req.Email,
		"message": Message,
	}))
}
