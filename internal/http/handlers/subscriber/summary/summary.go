package summary

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscriber-desk/internal/http/response"
	"github.com/magabrotheeeer/subscriber-desk/internal/models"
)

type Service interface {
	Summary() models.Summary
}

// Formatter форматирует сумму по локали.
type Formatter interface {
	Money(v float64) string
}

type Handler struct {
	log       *slog.Logger
	service   Service
	formatter Formatter
}

func New(log *slog.Logger, service Service, formatter Formatter) *Handler {
	return &Handler{
		log:       log,
		service:   service,
		formatter: formatter,
	}
}

// ServeHTTP отдаёт количество и общую сумму по всем записям, без учёта фильтра.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s := h.service.Summary()
	render.JSON(w, r, response.OKWithData(struct {
		models.Summary
		TotalFormatted string `json:"total_formatted"`
	}{
		Summary:        s,
		TotalFormatted: h.formatter.Money(s.TotalAmount),
	}))
}
