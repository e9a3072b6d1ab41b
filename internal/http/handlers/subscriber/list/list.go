// Package list отдаёт карточки подписчиков по фильтру и сводку по всему набору.
package list

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscriber-desk/internal/http/response"
	"github.com/magabrotheeeer/subscriber-desk/internal/models"
	"github.com/magabrotheeeer/subscriber-desk/internal/viewmodel"
)

type Service interface {
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

// ServeHTTP читает фильтр из ?filter=all|active|expired. Неизвестное значение трактуется как all.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscriber.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	raw := r.URL.Query().Get("filter")
	mode, ok := viewmodel.ParseFilter(raw)
	if !ok {
		log.Warn("unknown filter, using all", slog.String("filter", raw))
	}

	view := h.service.View(mode)
	log.Debug("subscribers listed", slog.Int("count", len(view.Cards)))
	render.JSON(w, r, response.OKWithData(view))
}
