// Package middlewarectx содержит HTTP middleware JSON API: проверку сессии
// и ограничение частоты запросов.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscriber-desk/internal/http/response"
	"github.com/magabrotheeeer/subscriber-desk/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// User — ключ для models.User в контексте.
const User Key = "user"

// Sessions отдаёт текущую сессию.
type Sessions interface {
	Current() (models.Session, bool)
}

// RequireSession пропускает запрос дальше, только если оператор вошёл в систему,
// и кладёт пользователя в контекст.
func RequireSession(log *slog.Logger, sessions Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.RequireSession"

			s, ok := sessions.Current()
			if !ok {
				log.With(
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				).Info("request without session rejected")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error(models.ErrNoSession.Error()))
				return
			}

			ctx := context.WithValue(r.Context(), User, s.User)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext достаёт пользователя, положенного RequireSession.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(User).(models.User)
	return user, ok
}
