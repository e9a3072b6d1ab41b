// Package subscriber содержит контроллер приложения: явное состояние экрана
// (пользователь, записи, фильтр, черновик формы, уведомление), операции над
// хранилищем и периодическое обновление списка.
package subscriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscriber-desk/internal/lib/sl"
	"github.com/magabrotheeeer/subscriber-desk/internal/metrics"
	"github.com/magabrotheeeer/subscriber-desk/internal/models"
	"github.com/magabrotheeeer/subscriber-desk/internal/services/session"
	"github.com/magabrotheeeer/subscriber-desk/internal/viewmodel"
)

// Тексты уведомлений об ошибках хранилища.
const (
	NoticeAddFailed    = "error adding subscriber"
	NoticeLoadFailed   = "error loading subscribers"
	NoticeDeleteFailed = "error deleting subscriber"
)

// Store хранит записи подписчиков.
type Store interface {
	Insert(ctx context.Context, accessToken string, sub models.Subscriber) error
	List(ctx context.Context, accessToken string) ([]models.Subscriber, error)
	Delete(ctx context.Context, accessToken, id string) error
}

// Sessions отдаёт текущую сессию.
type Sessions interface {
	Current() (models.Session, bool)
}

// Notifier получает каждый применённый снимок списка.
type Notifier interface {
	Notify(ctx context.Context, subs []models.Subscriber, now time.Time)
}

// State — состояние экрана. Снимок отдаётся копией.
type State struct {
	User        *models.User
	Subscribers []models.Subscriber
	Filter      models.FilterMode
	Draft       models.SubscriberForm
	AuthMode    models.AuthMode
	Notice      string
	LastRefresh time.Time
}

// Authenticated сообщает, есть ли вошедший пользователь.
func (s State) Authenticated() bool {
	return s.User != nil
}

type Controller struct {
	log      *slog.Logger
	store    Store
	sessions Sessions
	notifier Notifier
	validate *validator.Validate
	now      func() time.Time

	// issued выдаётся каждому обновлению до запроса, applied — номер последнего применённого.
	issued atomic.Uint64

	mu      sync.Mutex
	applied uint64
	state   State
}

// New создаёт контроллер. notifier может быть nil.
func New(log *slog.Logger, store Store, sessions Sessions, notifier Notifier) *Controller {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return &Controller{
		log:      log,
		store:    store,
		sessions: sessions,
		notifier: notifier,
		validate: validate,
		now:      time.Now,
		state: State{
			Filter:   models.FilterAll,
			AuthMode: models.AuthModeLogin,
		},
	}
}

// OnSessionChange — слушатель событий Gate.
func (c *Controller) OnSessionChange(ctx context.Context, ev session.Event) {
	const op = "services.subscriber.OnSessionChange"
	log := c.log.With(slog.String("op", op), slog.String("event", ev.Type.String()))

	switch ev.Type {
	case session.EventSignedIn:
		user := ev.Session.User
		c.mu.Lock()
		c.state.User = &user
		c.state.AuthMode = models.AuthModeLogin
		c.mu.Unlock()
		log.Debug("session started, loading subscribers")
		_ = c.Refresh(ctx)
	case session.EventTokenRefreshed:
		user := ev.Session.User
		c.mu.Lock()
		if c.state.User != nil && user.ID != "" {
			c.state.User = &user
		}
		c.mu.Unlock()
	case session.EventSignedOut:
		c.mu.Lock()
		// обновления, выданные до выхода, применяться не должны
		c.applied = c.issued.Load()
		c.state.User = nil
		c.state.Subscribers = nil
		c.state.Draft = models.SubscriberForm{}
		c.state.Filter = models.FilterAll
		c.state.LastRefresh = time.Time{}
		c.mu.Unlock()
		metrics.SetSubscribers(0, 0, 0)
		log.Debug("session ended, state cleared")
	}
}

// Refresh загружает полный снимок списка. Результат применяется, только если
// его номер больше номера последнего применённого обновления.
func (c *Controller) Refresh(ctx context.Context) error {
	const op = "services.subscriber.Refresh"
	log := c.log.With(slog.String("op", op))

	s, ok := c.sessions.Current()
	if !ok {
		return models.ErrNoSession
	}

	seq := c.issued.Add(1)
	subs, err := c.store.List(ctx, s.AccessToken)
	if err != nil {
		metrics.Refresh(metrics.RefreshFailed)
		log.Error("failed to load subscribers", slog.Uint64("seq", seq), sl.Err(err))
		c.mu.Lock()
		if c.state.User != nil {
			c.state.Notice = NoticeLoadFailed
		}
		c.mu.Unlock()
		return err
	}

	now := c.now()
	c.mu.Lock()
	if seq <= c.applied {
		applied := c.applied
		c.mu.Unlock()
		metrics.Refresh(metrics.RefreshStale)
		log.Debug("stale refresh discarded", slog.Uint64("seq", seq), slog.Uint64("applied", applied))
		return nil
	}
	c.applied = seq
	c.state.Subscribers = subs
	c.state.LastRefresh = now
	c.mu.Unlock()

	metrics.Refresh(metrics.RefreshApplied)
	metrics.SetSubscribers(viewmodel.StatusCounts(subs, now))
	log.Debug("subscribers loaded", slog.Uint64("seq", seq), slog.Int("count", len(subs)))

	if c.notifier != nil {
		c.notifier.Notify(ctx, subs, now)
	}
	return nil
}

// Add проверяет форму, сохраняет запись от имени текущего пользователя и
// перезагружает список. При любой ошибке черновик формы сохраняется.
func (c *Controller) Add(ctx context.Context, form models.SubscriberForm) error {
	const op = "services.subscriber.Add"
	log := c.log.With(slog.String("op", op))

	c.mu.Lock()
	c.state.Draft = form
	c.mu.Unlock()

	sub, err := c.parseForm(form)
	if err != nil {
		log.Info("invalid subscriber form", sl.Err(err))
		c.SetNotice(err.Error())
		return err
	}

	s, ok := c.sessions.Current()
	if !ok {
		return models.ErrNoSession
	}
	sub.UserID = s.User.ID

	if err := c.store.Insert(ctx, s.AccessToken, sub); err != nil {
		log.Error("failed to add subscriber", sl.Err(err))
		c.SetNotice(NoticeAddFailed)
		return err
	}

	c.mu.Lock()
	if c.state.Draft == form {
		c.state.Draft = models.SubscriberForm{}
	}
	c.mu.Unlock()
	log.Info("subscriber added", slog.String("name", sub.FullName()))

	_ = c.Refresh(ctx)
	return nil
}

// Delete удаляет запись по ID и перезагружает список.
func (c *Controller) Delete(ctx context.Context, id string) error {
	const op = "services.subscriber.Delete"
	log := c.log.With(slog.String("op", op), slog.String("id", id))

	s, ok := c.sessions.Current()
	if !ok {
		return models.ErrNoSession
	}

	if err := c.store.Delete(ctx, s.AccessToken, id); err != nil {
		log.Error("failed to delete subscriber", sl.Err(err))
		c.SetNotice(NoticeDeleteFailed)
		return err
	}
	log.Info("subscriber deleted")

	_ = c.Refresh(ctx)
	return nil
}

// Find ищет запись в текущем снимке.
func (c *Controller) Find(id string) (models.Subscriber, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sub := range c.state.Subscribers {
		if sub.ID == id {
			return sub, true
		}
	}
	return models.Subscriber{}, false
}

func (c *Controller) parseForm(form models.SubscriberForm) (models.Subscriber, error) {
	var fields []string
	if err := c.validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return models.Subscriber{}, fmt.Errorf("validate form: %w", err)
		}
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
	}

	amount, err := strconv.ParseFloat(strings.TrimSpace(form.Amount), 64)
	if form.Amount != "" && err != nil {
		fields = append(fields, "amount")
	}
	start, err := models.ParseDate(form.StartDate)
	if form.StartDate != "" && err != nil {
		fields = append(fields, "start_date")
	}
	end, err := models.ParseDate(form.EndDate)
	if form.EndDate != "" && err != nil {
		fields = append(fields, "end_date")
	}

	if len(fields) > 0 {
		return models.Subscriber{}, &models.ValidationError{Fields: fields}
	}

	return models.Subscriber{
		FirstName: strings.TrimSpace(form.FirstName),
		LastName:  strings.TrimSpace(form.LastName),
		Phone:     strings.TrimSpace(form.Phone),
		Amount:    amount,
		StartDate: start,
		EndDate:   end,
	}, nil
}

// SetFilter меняет режим фильтра. Неизвестный режим трактуется как all.
func (c *Controller) SetFilter(mode models.FilterMode) {
	if mode != models.FilterActive && mode != models.FilterExpired {
		mode = models.FilterAll
	}
	c.mu.Lock()
	c.state.Filter = mode
	c.mu.Unlock()
}

func (c *Controller) SetAuthMode(mode models.AuthMode) {
	if mode != models.AuthModeRegister {
		mode = models.AuthModeLogin
	}
	c.mu.Lock()
	c.state.AuthMode = mode
	c.mu.Unlock()
}

// ToggleAuthMode переключает экран между входом и регистрацией.
func (c *Controller) ToggleAuthMode() models.AuthMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.AuthMode == models.AuthModeRegister {
		c.state.AuthMode = models.AuthModeLogin
	} else {
		c.state.AuthMode = models.AuthModeRegister
	}
	return c.state.AuthMode
}

// SetNotice ставит уведомление для следующей отрисованной страницы.
func (c *Controller) SetNotice(msg string) {
	c.mu.Lock()
	c.state.Notice = msg
	c.mu.Unlock()
}

// TakeNotice возвращает уведомление и сбрасывает его.
func (c *Controller) TakeNotice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := c.state.Notice
	c.state.Notice = ""
	return msg
}

// Snapshot возвращает копию состояния.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state
	st.Subscribers = slices.Clone(c.state.Subscribers)
	if c.state.User != nil {
		user := *c.state.User
		st.User = &user
	}
	return st
}

// View строит представление текущего снимка. Пустой mode означает текущий фильтр.
func (c *Controller) View(mode models.FilterMode) viewmodel.View {
	st := c.Snapshot()
	if mode == "" {
		mode = st.Filter
	}
	return viewmodel.Build(st.Subscribers, mode, c.now())
}

// Summary считает сводку по полному набору записей.
func (c *Controller) Summary() models.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return viewmodel.Summarize(c.state.Subscribers)
}

// Run обновляет список каждые interval, пока есть сессия. Блокируется до отмены ctx.
func (c *Controller) Run(ctx context.Context, interval time.Duration) {
	const op = "services.subscriber.Run"
	log := c.log.With(slog.String("op", op))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("periodic refresh started", slog.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			log.Info("periodic refresh stopped")
			return
		case <-ticker.C:
			if _, ok := c.sessions.Current(); !ok {
				continue
			}
			_ = c.Refresh(ctx)
		}
	}
}
