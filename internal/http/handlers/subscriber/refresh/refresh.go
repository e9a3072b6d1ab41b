// Package refresh принудительно перезагружает список подписчиков.
package refresh

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscriber-desk/internal/http/response"
	"github.com/magabrotheeeer/subscriber-desk/internal/models"
	"github.com/magabrotheeeer/subscriber-desk/internal/viewmodel"
)

type Service interface {
	Refresh(ctx context.Context) error
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

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscriber.refresh"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if err := h.service.Refresh(r.Context()); err != nil {
		status, msg := response.Describe(err, "error loading subscribers")
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}

	log.Debug("refresh requested")
	render.JSON(w, r, response.OKWithData(h.service.View("")))
}
