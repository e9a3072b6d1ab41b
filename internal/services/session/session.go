// Package session отслеживает, вошёл ли оператор в систему.
// Gate выполняет вход, регистрацию и выход через сервис идентификации,
// сохраняет пару токенов и рассылает слушателям события смены сессии.
// События Gate — единственный источник истины о состоянии входа.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/subscriber-desk/internal/lib/sl"
	"github.com/magabrotheeeer/subscriber-desk/internal/models"
)

// StoreKey — ключ, под которым в хранилище лежит пара токенов.
const StoreKey = "session:current"

// Identity — операции сервиса идентификации.
type Identity interface {
	SignUp(ctx context.Context, email, password string) (*models.User, error)
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*models.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*models.User, error)
}

// Store сохраняет пару токенов между перезапусками.
type Store interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// EventType описывает вид смены сессии.
type EventType int

const (
	EventSignedIn EventType = iota + 1
	EventSignedOut
	EventTokenRefreshed
)

func (t EventType) String() string {
	switch t {
	case EventSignedIn:
		return "signed_in"
	case EventSignedOut:
		return "signed_out"
	case EventTokenRefreshed:
		return "token_refreshed"
	default:
		return "unknown"
	}
}

// Event доставляется слушателям. Для EventSignedOut Session пустая.
type Event struct {
	Type    EventType
	Session models.Session
}

// Listener вызывается синхронно, без удержания блокировок Gate.
type Listener func(ctx context.Context, ev Event)

// Options — параметры продления и хранения сессии.
type Options struct {
	// срок хранения пары токенов в Store
	TTL time.Duration
	// за сколько до истечения access-токена его продлевать
	Leeway time.Duration
	// пауза перед повтором продления после сетевой ошибки
	RetryBackoff time.Duration
}

// persisted — то, что кладётся в Store. Записи подписчиков туда не попадают.
type persisted struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type Gate struct {
	log      *slog.Logger
	identity Identity
	store    Store
	opts     Options
	now      func() time.Time

	mu        sync.Mutex
	current   *models.Session
	retryAt   time.Time
	listeners []Listener

	wake chan struct{}
}

func New(log *slog.Logger, identity Identity, store Store, opts Options) *Gate {
	return &Gate{
		log:      log,
		identity: identity,
		store:    store,
		opts:     opts,
		now:      time.Now,
		wake:     make(chan struct{}, 1),
	}
}

// Subscribe добавляет слушателя событий сессии.
func (g *Gate) Subscribe(l Listener) {
	g.mu.Lock()
	g.listeners = append(g.listeners, l)
	g.mu.Unlock()
}

// Current возвращает копию текущей сессии.
func (g *Gate) Current() (models.Session, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil {
		return models.Session{}, false
	}
	return *g.current, true
}

// SignIn выполняет вход по паролю. Ошибка сервиса возвращается как есть,
// состояние при этом не меняется.
func (g *Gate) SignIn(ctx context.Context, email, password string) error {
	const op = "services.session.SignIn"
	log := g.log.With(slog.String("op", op))

	s, err := g.identity.SignIn(ctx, email, password)
	if err != nil {
		log.Info("sign in failed", sl.Err(err))
		return err
	}

	g.set(s)
	g.persist(ctx, s)
	log.Info("signed in", slog.String("user_id", s.User.ID))
	g.emit(ctx, Event{Type: EventSignedIn, Session: *s})
	return nil
}

// SignUp регистрирует пользователя. Сессия не устанавливается, даже если сервис её выдал.
func (g *Gate) SignUp(ctx context.Context, email, password string) error {
	const op = "services.session.SignUp"
	log := g.log.With(slog.String("op", op))

	user, err := g.identity.SignUp(ctx, email, password)
	if err != nil {
		log.Info("sign up failed", sl.Err(err))
		return err
	}
	log.Info("account created", slog.String("user_id", user.ID))
	return nil
}

// SignOut отзывает сессию на стороне сервиса (ошибка только логируется)
// и сбрасывает её локально.
func (g *Gate) SignOut(ctx context.Context) {
	const op = "services.session.SignOut"
	log := g.log.With(slog.String("op", op))

	s, ok := g.Current()
	if !ok {
		return
	}
	if err := g.identity.SignOut(ctx, s.AccessToken); err != nil {
		log.Warn("remote sign out failed", sl.Err(err))
	}
	if g.drop(ctx, s.AccessToken) {
		log.Info("signed out", slog.String("user_id", s.User.ID))
	}
}

// Restore поднимает сохранённую сессию при старте. Сессия проверяется запросом
// текущего пользователя, при неудаче продлевается, иначе удаляется из Store.
func (g *Gate) Restore(ctx context.Context) error {
	const op = "services.session.Restore"
	log := g.log.With(slog.String("op", op))

	var saved persisted
	found, err := g.store.Get(ctx, StoreKey, &saved)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !found || saved.AccessToken == "" {
		return nil
	}

	var s *models.Session
	if user, err := g.identity.GetUser(ctx, saved.AccessToken); err == nil {
		s = &models.Session{
			AccessToken:  saved.AccessToken,
			RefreshToken: saved.RefreshToken,
			ExpiresAt:    saved.ExpiresAt,
			User:         *user,
		}
	} else if saved.RefreshToken != "" {
		log.Debug("saved access token rejected, refreshing", sl.Err(err))
		s, err = g.identity.Refresh(ctx, saved.RefreshToken)
		if err != nil {
			s = nil
			log.Info("saved session discarded", sl.Err(err))
		}
	}

	if s == nil {
		if err := g.store.Invalidate(ctx, StoreKey); err != nil {
			log.Warn("failed to drop saved session", sl.Err(err))
		}
		return nil
	}

	g.set(s)
	g.persist(ctx, s)
	log.Info("session restored", slog.String("user_id", s.User.ID))
	g.emit(ctx, Event{Type: EventSignedIn, Session: *s})
	return nil
}

// Run продлевает access-токен за Leeway до истечения. Если сервис отверг
// refresh-токен, сессия сбрасывается с событием EventSignedOut.
// Блокируется до отмены ctx.
func (g *Gate) Run(ctx context.Context) {
	for {
		var fire <-chan time.Time
		var timer *time.Timer
		if delay, ok := g.nextRefresh(); ok {
			timer = time.NewTimer(delay)
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-g.wake:
			if timer != nil {
				timer.Stop()
			}
		case <-fire:
			g.refresh(ctx)
		}
	}
}

func (g *Gate) refresh(ctx context.Context) {
	const op = "services.session.refresh"
	log := g.log.With(slog.String("op", op))

	s, ok := g.Current()
	if !ok {
		return
	}

	next, err := g.identity.Refresh(ctx, s.RefreshToken)
	if err != nil {
		var authErr *models.AuthError
		if errors.As(err, &authErr) {
			log.Info("refresh token rejected, signing out", sl.Err(err))
			g.drop(ctx, s.AccessToken)
			return
		}
		log.Warn("token refresh failed, will retry", sl.Err(err))
		g.mu.Lock()
		if g.current != nil && g.current.AccessToken == s.AccessToken {
			g.retryAt = g.now().Add(g.opts.RetryBackoff)
		}
		g.mu.Unlock()
		return
	}

	if next.User.ID == "" {
		next.User = s.User
	}

	g.mu.Lock()
	if g.current == nil || g.current.AccessToken != s.AccessToken {
		// сессия сменилась, пока шёл запрос
		g.mu.Unlock()
		return
	}
	g.current = next
	g.retryAt = time.Time{}
	g.mu.Unlock()

	g.persist(ctx, next)
	log.Debug("token refreshed", slog.Time("expires_at", next.ExpiresAt))
	g.emit(ctx, Event{Type: EventTokenRefreshed, Session: *next})
}

// nextRefresh возвращает задержку до следующего продления.
func (g *Gate) nextRefresh() (time.Duration, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current == nil {
		return 0, false
	}
	at := g.retryAt
	if at.IsZero() {
		if g.current.ExpiresAt.IsZero() {
			return 0, false
		}
		at = g.current.ExpiresAt.Add(-g.opts.Leeway)
	}
	return max(at.Sub(g.now()), 0), true
}

func (g *Gate) set(s *models.Session) {
	g.mu.Lock()
	g.current = s
	g.retryAt = time.Time{}
	g.mu.Unlock()
	g.poke()
}

// drop сбрасывает сессию, если она всё ещё та же, и рассылает EventSignedOut.
func (g *Gate) drop(ctx context.Context, accessToken string) bool {
	g.mu.Lock()
	if g.current == nil || g.current.AccessToken != accessToken {
		g.mu.Unlock()
		return false
	}
	g.current = nil
	g.retryAt = time.Time{}
	g.mu.Unlock()
	g.poke()

	if err := g.store.Invalidate(ctx, StoreKey); err != nil {
		g.log.Warn("failed to drop saved session", sl.Op("services.session.drop"), sl.Err(err))
	}
	g.emit(ctx, Event{Type: EventSignedOut})
	return true
}

func (g *Gate) persist(ctx context.Context, s *models.Session) {
	saved := persisted{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
	}
	if err := g.store.Set(ctx, StoreKey, saved, g.opts.TTL); err != nil {
		g.log.Warn("failed to save session", sl.Op("services.session.persist"), sl.Err(err))
	}
}

func (g *Gate) poke() {
	select {
	case g.wake <- struct{}{}:
	default:
	}
}

func (g *Gate) emit(ctx context.Context, ev Event) {
	g.mu.Lock()
	listeners := make([]Listener, len(g.listeners))
	copy(listeners, g.listeners)
	g.mu.Unlock()

	for _, l := range listeners {
		l(ctx, ev)
	}
}
