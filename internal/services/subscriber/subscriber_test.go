package subscriber

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscriber-desk/internal/models"
	"github.com/magabrotheeeer/subscriber-desk/internal/services/session"
)

type StoreMock struct{ mock.Mock }

func (m *StoreMock) Insert(ctx context.Context, accessToken string, sub models.Subscriber) error {
	return m.Called(ctx, accessToken, sub).Error(0)
}

func (m *StoreMock) List(ctx context.Context, accessToken string) ([]models.Subscriber, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Subscriber), args.Error(1)
}

func (m *StoreMock) Delete(ctx context.Context, accessToken, id string) error {
	return m.Called(ctx, accessToken, id).Error(0)
}

type fakeSessions struct {
	mu sync.Mutex
	s  *models.Session
}

func (f *fakeSessions) Current() (models.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.s == nil {
		return models.Session{}, false
	}
	return *f.s, true
}

func (f *fakeSessions) set(s *models.Session) {
	f.mu.Lock()
	f.s = s
	f.mu.Unlock()
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) Notify(ctx context.Context, subs []models.Subscriber, now time.Time) {
	m.Called(ctx, subs, now)
}

var (
	testNow     = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	testSession = &models.Session{
		AccessToken: "token",
		User:        models.User{ID: "user-1", Email: "op@example.com"},
	}
)

func newTestController(t *testing.T) (*Controller, *StoreMock, *fakeSessions) {
	t.Helper()
	store := &StoreMock{}
	sessions := &fakeSessions{}
	c := New(slog.New(slog.NewTextHandler(io.Discard, nil)), store, sessions, nil)
	c.now = func() time.Time { return testNow }
	return c, store, sessions
}

func signIn(ctx context.Context, c *Controller, sessions *fakeSessions) {
	sessions.set(testSession)
	c.OnSessionChange(ctx, session.Event{Type: session.EventSignedIn, Session: *testSession})
}

func sub(id string, amount float64, end models.Date) models.Subscriber {
	return models.Subscriber{
		ID: id, UserID: "user-1", FirstName: "First" + id, LastName: "Last",
		Phone: "0555", Amount: amount,
		StartDate: models.NewDate(2026, time.January, 1), EndDate: end,
	}
}

func validForm() models.SubscriberForm {
	return models.SubscriberForm{
		FirstName: "Sara",
		LastName:  "Haddad",
		Phone:     "0555123456",
		Amount:    "2500.50",
		StartDate: "2026-10-01",
		EndDate:   "2026-11-01",
	}
}

func TestController_SignInLoadsSubscribers(t *testing.T) {
	c, store, sessions := newTestController(t)
	ctx := context.Background()
	list := []models.Subscriber{sub("1", 100, models.NewDate(2026, time.December, 1))}
	store.On("List", mock.Anything, "token").Return(list, nil).Once()

	signIn(ctx, c, sessions)

	st := c.Snapshot()
	require.True(t, st.Authenticated())
	assert.Equal(t, "user-1", st.User.ID)
	assert.Equal(t, list, st.Subscribers)
	assert.Equal(t, testNow, st.LastRefresh)
	store.AssertExpectations(t)
}

func TestController_RefreshWithoutSession(t *testing.T) {
	c, store, _ := newTestController(t)
	err := c.Refresh(context.Background())
	assert.ErrorIs(t, err, models.ErrNoSession)
	store.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestController_StaleRefreshIsDiscarded(t *testing.T) {
	c, store, sessions := newTestController(t)
	ctx := context.Background()
	sessions.set(testSession)

	older := []models.Subscriber{sub("old", 1, models.NewDate(2026, time.December, 1))}
	newer := []models.Subscriber{sub("new", 2, models.NewDate(2026, time.December, 1))}

	started := make(chan struct{})
	release := make(chan struct{})
	store.On("List", mock.Anything, "token").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(older, nil).Once()
	store.On("List", mock.Anything, "token").Return(newer, nil).Once()

	done := make(chan error)
	go func() { done <- c.Refresh(ctx) }()
	<-started

	require.NoError(t, c.Refresh(ctx))
	assert.Equal(t, newer, c.Snapshot().Subscribers)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, newer, c.Snapshot().Subscribers, "older response must not overwrite newer")
}

func TestController_RefreshFailureKeepsList(t *testing.T) {
	c, store, sessions := newTestController(t)
	ctx := context.Background()
	list := []models.Subscriber{sub("1", 100, models.NewDate(2026, time.December, 1))}
	store.On("List", mock.Anything, "token").Return(list, nil).Once()
	signIn(ctx, c, sessions)

	storeErr := &models.DataError{Op: "storage.rest.List", Err: errors.New("status 500")}
	store.On("List", mock.Anything, "token").Return(nil, storeErr).Once()

	err := c.Refresh(ctx)
	require.Error(t, err)
	st := c.Snapshot()
	assert.Equal(t, list, st.Subscribers)
	assert.Equal(t, NoticeLoadFailed, c.TakeNotice())
	assert.Empty(t, c.TakeNotice(), "notice is consumed once")
}

func TestController_Add(t *testing.T) {
	c, store, sessions := newTestController(t)
	ctx := context.Background()
	store.On("List", mock.Anything, "token").Return([]models.Subscriber{}, nil).Once()
	signIn(ctx, c, sessions)

	want := models.Subscriber{
		UserID:    "user-1",
		FirstName: "Sara",
		LastName:  "Haddad",
		Phone:     "0555123456",
		Amount:    2500.50,
		StartDate: models.NewDate(2026, time.October, 1),
		EndDate:   models.NewDate(2026, time.November, 1),
	}
	store.On("Insert", mock.Anything, "token", want).Return(nil).Once()
	created := want
	created.ID = "new-id"
	store.On("List", mock.Anything, "token").Return([]models.Subscriber{created}, nil).Once()

	require.NoError(t, c.Add(ctx, validForm()))

	st := c.Snapshot()
	assert.Equal(t, models.SubscriberForm{}, st.Draft, "draft cleared on success")
	require.Len(t, st.Subscribers, 1)
	assert.Equal(t, "new-id", st.Subscribers[0].ID)
	store.AssertExpectations(t)
}

func TestController_Add_ValidationKeepsDraft(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(f *models.SubscriberForm)
		wantFields []string
	}{
		{
			name:       "missing first name",
			mutate:     func(f *models.SubscriberForm) { f.FirstName = "" },
			wantFields: []string{"first_name"},
		},
		{
			name:       "bad amount",
			mutate:     func(f *models.SubscriberForm) { f.Amount = "lots" },
			wantFields: []string{"amount"},
		},
		{
			name: "missing phone and bad end date",
			mutate: func(f *models.SubscriberForm) {
				f.Phone = ""
				f.EndDate = "01/11/2026"
			},
			wantFields: []string{"phone", "end_date"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store, sessions := newTestController(t)
			sessions.set(testSession)
			form := validForm()
			tt.mutate(&form)

			err := c.Add(context.Background(), form)

			var verr *models.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantFields, verr.Fields)
			assert.Equal(t, form, c.Snapshot().Draft)
			assert.NotEmpty(t, c.TakeNotice())
			store.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestController_Add_InsertFailureKeepsDraftAndSkipsRefresh(t *testing.T) {
	c, store, sessions := newTestController(t)
	ctx := context.Background()
	list := []models.Subscriber{sub("1", 100, models.NewDate(2026, time.December, 1))}
	store.On("List", mock.Anything, "token").Return(list, nil).Once()
	signIn(ctx, c, sessions)

	store.On("Insert", mock.Anything, "token", mock.Anything).
		Return(&models.DataError{Op: "storage.rest.Insert", Err: errors.New("status 403")}).Once()

	form := validForm()
	err := c.Add(ctx, form)
	require.Error(t, err)

	st := c.Snapshot()
	assert.Equal(t, form, st.Draft)
	assert.Equal(t, list, st.Subscribers)
	assert.Equal(t, NoticeAddFailed, st.Notice)
	store.AssertNumberOfCalls(t, "List", 1)
}

func TestController_Add_WithoutSession(t *testing.T) {
	c, _, _ := newTestController(t)
	err := c.Add(context.Background(), validForm())
	assert.ErrorIs(t, err, models.ErrNoSession)
}

func TestController_Delete(t *testing.T) {
	c, store, sessions := newTestController(t)
	ctx := context.Background()
	a := sub("a", 10, models.NewDate(2026, time.December, 1))
	b := sub("b", 20, models.NewDate(2026, time.December, 1))
	store.On("List", mock.Anything, "token").Return([]models.Subscriber{a, b}, nil).Once()
	signIn(ctx, c, sessions)

	store.On("Delete", mock.Anything, "token", "b").Return(nil).Once()
	store.On("List", mock.Anything, "token").Return([]models.Subscriber{a}, nil).Once()

	require.NoError(t, c.Delete(ctx, "b"))
	assert.Equal(t, []models.Subscriber{a}, c.Snapshot().Subscribers)
	store.AssertExpectations(t)
}

func TestController_Delete_Failure(t *testing.T) {
	c, store, sessions := newTestController(t)
	ctx := context.Background()
	a := sub("a", 10, models.NewDate(2026, time.December, 1))
	store.On("List", mock.Anything, "token").Return([]models.Subscriber{a}, nil).Once()
	signIn(ctx, c, sessions)

	store.On("Delete", mock.Anything, "token", "a").
		Return(&models.DataError{Op: "storage.rest.Delete", Err: errors.New("status 500")}).Once()

	require.Error(t, c.Delete(ctx, "a"))
	assert.Equal(t, []models.Subscriber{a}, c.Snapshot().Subscribers)
	assert.Equal(t, NoticeDeleteFailed, c.TakeNotice())
	store.AssertNumberOfCalls(t, "List", 1)
}

func TestController_SignOutClearsState(t *testing.T) {
	c, store, sessions := newTestController(t)
	ctx := context.Background()
	store.On("List", mock.Anything, "token").
		Return([]models.Subscriber{sub("1", 5, models.NewDate(2026, time.December, 1))}, nil).Once()
	signIn(ctx, c, sessions)

	c.SetFilter(models.FilterExpired)
	c.mu.Lock()
	c.state.Draft = validForm()
	c.mu.Unlock()

	sessions.set(nil)
	c.OnSessionChange(ctx, session.Event{Type: session.EventSignedOut})

	st := c.Snapshot()
	assert.False(t, st.Authenticated())
	assert.Empty(t, st.Subscribers)
	assert.Equal(t, models.SubscriberForm{}, st.Draft)
	assert.Equal(t, models.FilterAll, st.Filter)
}

func TestController_RefreshInFlightAtSignOutIsDiscarded(t *testing.T) {
	c, store, sessions := newTestController(t)
	ctx := context.Background()
	sessions.set(testSession)

	started := make(chan struct{})
	release := make(chan struct{})
	store.On("List", mock.Anything, "token").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return([]models.Subscriber{sub("1", 5, models.NewDate(2026, time.December, 1))}, nil).Once()

	done := make(chan error)
	go func() { done <- c.Refresh(ctx) }()
	<-started

	sessions.set(nil)
	c.OnSessionChange(ctx, session.Event{Type: session.EventSignedOut})
	close(release)
	require.NoError(t, <-done)

	assert.Empty(t, c.Snapshot().Subscribers)
}

func TestController_ViewAndSummary(t *testing.T) {
	c, store, sessions := newTestController(t)
	ctx := context.Background()
	list := []models.Subscriber{
		sub("soon", 100, models.NewDate(2026, time.October, 18)),
		sub("past", 50.5, models.NewDate(2026, time.October, 1)),
		sub("later", 200, models.NewDate(2027, time.January, 1)),
	}
	store.On("List", mock.Anything, "token").Return(list, nil).Once()
	signIn(ctx, c, sessions)

	assert.Equal(t, models.Summary{Count: 3, TotalAmount: 350.5}, c.Summary())

	c.SetFilter(models.FilterActive)
	view := c.View("")
	assert.Equal(t, models.FilterActive, view.Filter)
	require.Len(t, view.Cards, 2)
	assert.Equal(t, "soon", view.Cards[0].ID)
	assert.True(t, view.Cards[0].Status.EndingSoon)
	assert.Equal(t, "later", view.Cards[1].ID)
	assert.Equal(t, 3, view.Summary.Count, "summary ignores the filter")

	expired := c.View(models.FilterExpired)
	require.Len(t, expired.Cards, 1)
	assert.Equal(t, "past", expired.Cards[0].ID)

	c.SetFilter("bogus")
	assert.Equal(t, models.FilterAll, c.Snapshot().Filter)

	found, ok := c.Find("past")
	require.True(t, ok)
	assert.Equal(t, 50.5, found.Amount)
	_, ok = c.Find("missing")
	assert.False(t, ok)
}

func TestController_AuthMode(t *testing.T) {
	c, _, _ := newTestController(t)
	assert.Equal(t, models.AuthModeLogin, c.Snapshot().AuthMode)
	assert.Equal(t, models.AuthModeRegister, c.ToggleAuthMode())
	assert.Equal(t, models.AuthModeLogin, c.ToggleAuthMode())

	c.SetAuthMode(models.AuthModeRegister)
	assert.Equal(t, models.AuthModeRegister, c.Snapshot().AuthMode)
	c.SetAuthMode("other")
	assert.Equal(t, models.AuthModeLogin, c.Snapshot().AuthMode)
}

func TestController_NotifierReceivesAppliedSnapshot(t *testing.T) {
	store := &StoreMock{}
	sessions := &fakeSessions{}
	notifier := &NotifierMock{}
	c := New(slog.New(slog.NewTextHandler(io.Discard, nil)), store, sessions, notifier)
	c.now = func() time.Time { return testNow }

	list := []models.Subscriber{sub("1", 5, models.NewDate(2026, time.October, 16))}
	store.On("List", mock.Anything, "token").Return(list, nil).Once()
	notifier.On("Notify", mock.Anything, list, testNow).Return().Once()

	signIn(context.Background(), c, sessions)
	notifier.AssertExpectations(t)
}

func TestController_Run(t *testing.T) {
	c, store, sessions := newTestController(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions.set(testSession)
	store.On("List", mock.Anything, "token").Return([]models.Subscriber{}, nil)

	go c.Run(ctx, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.applied >= 2
	}, time.Second, 5*time.Millisecond)
}
