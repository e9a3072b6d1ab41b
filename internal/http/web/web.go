// Package web отдаёт HTML-интерфейс: экран входа и регистрации, список
// подписчиков с фильтром и сводкой, форму добавления и подтверждение удаления.
// Все изменения выполняются POST-запросом с последующим редиректом на страницу.
package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscriber-desk/internal/lib/sl"
	"github.com/magabrotheeeer/subscriber-desk/internal/models"
	"github.com/magabrotheeeer/subscriber-desk/internal/services/subscriber"
	"github.com/magabrotheeeer/subscriber-desk/internal/viewmodel"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Тексты уведомлений интерфейса.
const (
	noticeAccountCreated = "تم إنشاء الحساب بنجاح! يمكنك الآن تسجيل الدخول."
	noticeNotFound       = "المشترك غير موجود"
	noticeCredentials    = "يرجى إدخال البريد الإلكتروني وكلمة المرور"
)

// noticeText переводит уведомления контроллера. Прочие сообщения, в том числе
// ошибки сервиса идентификации, показываются как есть.
var noticeText = map[string]string{
	subscriber.NoticeAddFailed:    "حدث خطأ أثناء إضافة المشترك",
	subscriber.NoticeLoadFailed:   "حدث خطأ أثناء تحميل المشتركين",
	subscriber.NoticeDeleteFailed: "حدث خطأ أثناء حذف المشترك",
}

// Gate управляет сессией оператора.
type Gate interface {
	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password string) error
	SignOut(ctx context.Context)
}

// Controller — состояние экрана и операции над записями.
type Controller interface {
	Snapshot() subscriber.State
	View(mode models.FilterMode) viewmodel.View
	Find(id string) (models.Subscriber, bool)
	Add(ctx context.Context, form models.SubscriberForm) error
	Delete(ctx context.Context, id string) error
	SetFilter(mode models.FilterMode)
	SetAuthMode(mode models.AuthMode)
	ToggleAuthMode() models.AuthMode
	SetNotice(msg string)
	TakeNotice() string
}

// Formatter форматирует суммы и даты по локали.
type Formatter interface {
	Tag() string
	Money(v float64) string
	Date(d models.Date) string
}

type credentials struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

type Handler struct {
	log       *slog.Logger
	gate      Gate
	ctrl      Controller
	formatter Formatter
	refresh   time.Duration
	validate  *validator.Validate
	pages     map[string]*template.Template
}

// New разбирает встроенные шаблоны. refresh задаёт период автообновления страницы.
func New(log *slog.Logger, gate Gate, ctrl Controller, formatter Formatter, refresh time.Duration) (*Handler, error) {
	const op = "web.New"

	pages := make(map[string]*template.Template, 3)
	for _, name := range []string{"auth", "app", "confirm"} {
		t, err := template.ParseFS(templatesFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		pages[name] = t
	}

	return &Handler{
		log:       log,
		gate:      gate,
		ctrl:      ctrl,
		formatter: formatter,
		refresh:   refresh,
		validate:  validator.New(),
		pages:     pages,
	}, nil
}

// Routes монтирует страницы на r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.index)
	r.Post("/auth/login", h.login)
	r.Post("/auth/register", h.register)
	r.Post("/auth/mode", h.toggleMode)
	r.Post("/auth/logout", h.logout)
	r.Post("/subscribers", h.create)
	r.Get("/subscribers/{id}/delete", h.confirmDelete)
	r.Post("/subscribers/{id}/delete", h.remove)
}

type layoutData struct {
	Lang           string
	Notice         string
	RefreshSeconds int
}

type authPage struct {
	layoutData
	Register bool
}

type cardData struct {
	Name       string
	Phone      string
	Amount     string
	StartDate  string
	EndDate    string
	Expired    bool
	EndingSoon bool
	DeleteURL  string
}

type appPage struct {
	layoutData
	Email  string
	Draft  models.SubscriberForm
	Filter models.FilterMode
	Cards  []cardData
	Count  int
	Total  string
}

type confirmPage struct {
	layoutData
	Name      string
	Phone     string
	DeleteURL string
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("filter"); raw != "" {
		mode, _ := viewmodel.ParseFilter(raw)
		h.ctrl.SetFilter(mode)
	}

	st := h.ctrl.Snapshot()
	layout := h.layout()

	if !st.Authenticated() {
		layout.RefreshSeconds = 0
		h.render(w, r, "auth", authPage{
			layoutData: layout,
			Register:   st.AuthMode == models.AuthModeRegister,
		})
		return
	}

	view := h.ctrl.View(st.Filter)
	cards := make([]cardData, 0, len(view.Cards))
	for _, c := range view.Cards {
		cards = append(cards, cardData{
			Name:       c.FullName(),
			Phone:      c.Phone,
			Amount:     h.formatter.Money(c.Amount),
			StartDate:  h.formatter.Date(c.StartDate),
			EndDate:    h.formatter.Date(c.EndDate),
			Expired:    c.Status.Expired,
			EndingSoon: c.Status.EndingSoon,
			DeleteURL:  deleteURL(c.ID),
		})
	}

	h.render(w, r, "app", appPage{
		layoutData: layout,
		Email:      st.User.Email,
		Draft:      st.Draft,
		Filter:     view.Filter,
		Cards:      cards,
		Count:      view.Summary.Count,
		Total:      h.formatter.Money(view.Summary.TotalAmount),
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	creds, ok := h.credentials(r)
	if ok {
		if err := h.gate.SignIn(r.Context(), creds.Email, creds.Password); err != nil {
			h.ctrl.SetNotice(err.Error())
		}
	}
	h.back(w, r)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	creds, ok := h.credentials(r)
	if ok {
		if err := h.gate.SignUp(r.Context(), creds.Email, creds.Password); err != nil {
			h.ctrl.SetNotice(err.Error())
		} else {
			h.ctrl.SetAuthMode(models.AuthModeLogin)
			h.ctrl.SetNotice(noticeAccountCreated)
		}
	}
	h.back(w, r)
}

func (h *Handler) toggleMode(w http.ResponseWriter, r *http.Request) {
	h.ctrl.ToggleAuthMode()
	h.back(w, r)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.gate.SignOut(r.Context())
	h.back(w, r)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	const op = "web.create"

	if err := r.ParseForm(); err != nil {
		h.logger(r, op).Error("failed to parse form", sl.Err(err))
		h.back(w, r)
		return
	}
	form := models.SubscriberForm{
		FirstName: r.PostForm.Get("first_name"),
		LastName:  r.PostForm.Get("last_name"),
		Phone:     r.PostForm.Get("phone"),
		Amount:    r.PostForm.Get("amount"),
		StartDate: r.PostForm.Get("start_date"),
		EndDate:   r.PostForm.Get("end_date"),
	}
	// ошибки уже записаны контроллером в уведомление
	_ = h.ctrl.Add(r.Context(), form)
	h.back(w, r)
}

func (h *Handler) confirmDelete(w http.ResponseWriter, r *http.Request) {
	if !h.ctrl.Snapshot().Authenticated() {
		h.back(w, r)
		return
	}
	id := chi.URLParam(r, "id")
	sub, ok := h.ctrl.Find(id)
	if !ok {
		h.ctrl.SetNotice(noticeNotFound)
		h.back(w, r)
		return
	}

	layout := h.layout()
	layout.RefreshSeconds = 0
	h.render(w, r, "confirm", confirmPage{
		layoutData: layout,
		Name:       sub.FullName(),
		Phone:      sub.Phone,
		DeleteURL:  deleteURL(sub.ID),
	})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	_ = h.ctrl.Delete(r.Context(), chi.URLParam(r, "id"))
	h.back(w, r)
}

func (h *Handler) credentials(r *http.Request) (credentials, bool) {
	const op = "web.credentials"

	if err := r.ParseForm(); err != nil {
		h.logger(r, op).Error("failed to parse form", sl.Err(err))
		h.ctrl.SetNotice(noticeCredentials)
		return credentials{}, false
	}
	creds := credentials{
		Email:    strings.TrimSpace(r.PostForm.Get("email")),
		Password: r.PostForm.Get("password"),
	}
	if err := h.validate.Struct(creds); err != nil {
		h.ctrl.SetNotice(noticeCredentials)
		return credentials{}, false
	}
	return creds, true
}

func (h *Handler) layout() layoutData {
	notice := h.ctrl.TakeNotice()
	if text, ok := noticeText[notice]; ok {
		notice = text
	}
	return layoutData{
		Lang:           h.formatter.Tag(),
		Notice:         notice,
		RefreshSeconds: int(h.refresh.Seconds()),
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, page string, data any) {
	const op = "web.render"

	var buf bytes.Buffer
	if err := h.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		h.logger(r, op).Error("failed to render page", slog.String("page", page), sl.Err(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (h *Handler) back(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func deleteURL(id string) string {
	return "/subscribers/" + url.PathEscape(id) + "/delete"
}
