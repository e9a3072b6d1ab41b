// Package subscriberdesk собирает приложение и регистрирует его маршруты.
package subscriberdesk

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/subscriber-desk/internal/http/handlers/auth/current"
	"github.com/magabrotheeeer/subscriber-desk/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/subscriber-desk/internal/http/handlers/auth/logout"
	"github.com/magabrotheeeer/subscriber-desk/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/subscriber-desk/internal/http/handlers/subscriber/create"
	"github.com/magabrotheeeer/subscriber-desk/internal/http/handlers/subscriber/list"
	"github.com/magabrotheeeer/subscriber-desk/internal/http/handlers/subscriber/refresh"
	"github.com/magabrotheeeer/subscriber-desk/internal/http/handlers/subscriber/remove"
	"github.com/magabrotheeeer/subscriber-desk/internal/http/handlers/subscriber/summary"
	"github.com/magabrotheeeer/subscriber-desk/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscriber-desk/internal/http/web"
	"github.com/magabrotheeeer/subscriber-desk/internal/lib/locale"
	"github.com/magabrotheeeer/subscriber-desk/internal/services/session"
	"github.com/magabrotheeeer/subscriber-desk/internal/services/subscriber"
)

// RegisterRoutes регистрирует HTML-интерфейс, JSON API и служебные маршруты.
func RegisterRoutes(r chi.Router, logger *slog.Logger, gate *session.Gate, ctrl *subscriber.Controller,
	formatter *locale.Formatter, page *web.Handler, limiter *rate.Limiter) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	page.Routes(r)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/session", login.New(logger, gate).ServeHTTP)
		r.Post("/session/register", register.New(logger, gate).ServeHTTP)
		r.Delete("/session", logout.New(logger, gate).ServeHTTP)
		r.Get("/session", current.New(logger, gate).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RequireSession(logger, gate))
			r.Use(middlewarectx.RateLimitMiddleware(logger, limiter))
			r.Get("/subscribers", list.New(logger, ctrl).ServeHTTP)
			r.Post("/subscribers", create.New(logger, ctrl).ServeHTTP)
			r.Get("/subscribers/summary", summary.New(logger, ctrl, formatter).ServeHTTP)
			r.Post("/subscribers/refresh", refresh.New(logger, ctrl).ServeHTTP)
			r.Delete("/subscribers/{id}", remove.New(logger, ctrl).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, "ok")
	})
}
