package current

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscriber-desk/internal/http/response"
	"github.com/magabrotheeeer/subscriber-desk/internal/models"
)

type Service interface {
	Current() (models.Session, bool)
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

// ServeHTTP отдаёт текущего пользователя или 401.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s, ok := h.service.Current()
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error(models.ErrNoSession.Error()))
		return
	}
	render.JSON(w, r, response.OKWithData(struct {
		User      models.User `json:"user"`
		ExpiresAt time.Time   `json:"expires_at"`
	}{
		User:      s.User,
		ExpiresAt: s.ExpiresAt,
	}))
}
