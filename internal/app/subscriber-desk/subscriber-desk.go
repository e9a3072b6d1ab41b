package subscriberdesk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/subscriber-desk/internal/cache"
	"github.com/magabrotheeeer/subscriber-desk/internal/config"
	"github.com/magabrotheeeer/subscriber-desk/internal/http/web"
	"github.com/magabrotheeeer/subscriber-desk/internal/identity"
	"github.com/magabrotheeeer/subscriber-desk/internal/lib/jwt"
	"github.com/magabrotheeeer/subscriber-desk/internal/lib/locale"
	"github.com/magabrotheeeer/subscriber-desk/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscriber-desk/internal/lib/sl"
	"github.com/magabrotheeeer/subscriber-desk/internal/migrations"
	"github.com/magabrotheeeer/subscriber-desk/internal/services/notifier"
	"github.com/magabrotheeeer/subscriber-desk/internal/services/session"
	"github.com/magabrotheeeer/subscriber-desk/internal/services/subscriber"
	"github.com/magabrotheeeer/subscriber-desk/internal/storage/postgresql"
	"github.com/magabrotheeeer/subscriber-desk/internal/storage/rest"
)

type App struct {
	server  *http.Server
	logger  *slog.Logger
	gate    *session.Gate
	ctrl    *subscriber.Controller
	refresh time.Duration
	closers []io.Closer
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.New"

	a := &App{logger: logger, refresh: cfg.Refresh.Interval}

	identityClient := identity.New(cfg.Backend.URL, cfg.APIKey, cfg.Backend.Timeout, jwt.NewParser(cfg.JWTSecret))

	records, err := a.recordStore(cfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sessions, err := a.sessionStore(ctx, cfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var notify subscriber.Notifier
	if cfg.RabbitMQURL != "" {
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.closers = append(a.closers, publisher)
		notify = notifier.New(logger, publisher)
	}

	a.gate = session.New(logger, identityClient, sessions, session.Options{
		TTL:          cfg.SessionTTL,
		Leeway:       cfg.TokenLeeway,
		RetryBackoff: cfg.RetryBackoff,
	})
	a.ctrl = subscriber.New(logger, records, a.gate, notify)
	a.gate.Subscribe(a.ctrl.OnSessionChange)

	formatter, err := locale.New(cfg.Tag, cfg.Currency)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	page, err := web.New(logger, a.gate, a.ctrl, formatter, cfg.Refresh.Interval)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	router := chi.NewRouter()
	limiter := rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)
	RegisterRoutes(router, logger, a.gate, a.ctrl, formatter, page, limiter)

	a.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return a, nil
}

func (a *App) recordStore(cfg *config.Config) (subscriber.Store, error) {
	if cfg.RecordStore.Driver != config.RecordStorePostgres {
		return rest.New(cfg.Backend.URL, cfg.APIKey, cfg.Backend.Timeout), nil
	}

	db, err := postgresql.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db)
	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}
	return db, nil
}

func (a *App) sessionStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	if cfg.SessionStore.Driver != config.SessionStoreRedis {
		return cache.NewMemory(), nil
	}

	redisCache, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, redisCache)
	return redisCache, nil
}

// Run поднимает сохранённую сессию, запускает фоновые циклы и HTTP-сервер.
// Блокируется до отмены ctx или ошибки сервера.
func (a *App) Run(ctx context.Context) error {
	if err := a.gate.Restore(ctx); err != nil {
		a.logger.Warn("failed to restore session", sl.Err(err))
	}

	bgCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.gate.Run(bgCtx)
	}()
	go func() {
		defer wg.Done()
		a.ctrl.Run(bgCtx, a.refresh)
	}()
	defer func() {
		cancel()
		wg.Wait()
		a.close()
	}()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		return a.server.Shutdown(timeoutCtx)
	}
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("failed to close resource", sl.Err(err))
		}
	}
	a.closers = nil
}
