// Package create добавляет подписчика через JSON API.
package create

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscriber-desk/internal/http/response"
	"github.com/magabrotheeeer/subscriber-desk/internal/lib/sl"
	"github.com/magabrotheeeer/subscriber-desk/internal/models"
	"github.com/magabrotheeeer/subscriber-desk/internal/viewmodel"
)

type Service interface {
	Add(ctx context.Context, form models.SubscriberForm) error
	View(mode models.FilterMode) viewmodel.View
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP принимает поля формы строками. Проверку обязательных полей,
// разбор суммы и дат выполняет контроллер.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscriber.create"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var form models.SubscriberForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.service.Add(r.Context(), form); err != nil {
		status, msg := response.Describe(err, "error adding subscriber")
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}

	log.Info("subscriber created")
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(h.service.View("")))
}
