package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tasklane/tasklane/internal/auth"
	"github.com/tasklane/tasklane/internal/config"
	"github.com/tasklane/tasklane/internal/handler"
	"github.com/tasklane/tasklane/internal/metrics"
	"github.com/tasklane/tasklane/internal/model"
	"github.com/tasklane/tasklane/internal/repository"
	"github.com/tasklane/tasklane/internal/service"
	"github.com/tasklane/tasklane/internal/webhook"
	"github.com/tasklane/tasklane/internal/webhook/webhooktest"
)

const testWebhookSecret = webhooktest.Secret

var errGatewayDown = errors.New("identity provider unavailable")

// tokenGateway accepts "Bearer <user>:<role>" and fails on "Bearer broken".
func tokenGateway() auth.Gateway {
	return auth.GatewayFunc(func(r *http.Request) (*model.Caller, error) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			return nil, nil
		}
		if token == "broken" {
			return nil, errGatewayDown
		}
		id, role, _ := strings.Cut(token, ":")
		return &model.Caller{UserID: id, Role: model.Role(role)}, nil
	})
}

// fakeApp is an in-memory stand-in for the todo, subscription and admin
// services.
type fakeApp struct {
	mu     sync.Mutex
	now    time.Time
	users  map[string]*model.User
	todos  []*model.Todo
	nextID int
}

func newFakeApp(userIDs ...string) *fakeApp {
	a := &fakeApp{
		now:   time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC),
		users: make(map[string]*model.User),
	}
	for _, id := range userIDs {
		a.users[id] = &model.User{ID: id, Email: id + "@example.com", CreatedAt: a.now, UpdatedAt: a.now}
	}
	return a
}

func (a *fakeApp) List(_ context.Context, userID string, page int, search string) (*model.TodoPage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if page < 1 {
		page = 1
	}
	var matched []*model.Todo
	for i := len(a.todos) - 1; i >= 0; i-- {
		t := a.todos[i]
		if t.UserID == userID && strings.Contains(strings.ToLower(t.Title), strings.ToLower(search)) {
			matched = append(matched, t)
		}
	}
	start := (page - 1) * model.TodosPerPage
	end := min(start+model.TodosPerPage, len(matched))
	var out []*model.Todo
	if start < len(matched) {
		out = matched[start:end]
	}
	return &model.TodoPage{Todos: out, CurrentPage: page, TotalPages: model.TotalPages(int64(len(matched)))}, nil
}

func (a *fakeApp) Create(_ context.Context, userID, title string) (*model.Todo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, service.ErrMissingTitle
	}
	user, ok := a.users[userID]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	if !user.IsSubscribed {
		owned := 0
		for _, t := range a.todos {
			if t.UserID == userID {
				owned++
			}
		}
		if owned >= model.FreeTodoLimit {
			return nil, service.ErrQuotaExceeded
		}
	}
	a.nextID++
	t := &model.Todo{ID: fmt.Sprintf("todo_%d", a.nextID), Title: title, UserID: userID, CreatedAt: a.now, UpdatedAt: a.now}
	a.todos = append(a.todos, t)
	return t, nil
}

func (a *fakeApp) find(userID, todoID string) (int, error) {
	for i, t := range a.todos {
		if t.ID == todoID {
			if t.UserID != userID {
				return -1, service.ErrForbidden
			}
			return i, nil
		}
	}
	return -1, service.ErrTodoNotFound
}

func (a *fakeApp) Toggle(_ context.Context, userID, todoID string) (*model.Todo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i, err := a.find(userID, todoID)
	if err != nil {
		return nil, err
	}
	a.todos[i].Completed = !a.todos[i].Completed
	return a.todos[i], nil
}

func (a *fakeApp) Delete(_ context.Context, userID, todoID string) (*model.Todo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i, err := a.find(userID, todoID)
	if err != nil {
		return nil, err
	}
	t := a.todos[i]
	a.todos = append(a.todos[:i], a.todos[i+1:]...)
	return t, nil
}

func (a *fakeApp) Activate(_ context.Context, userID string) (*model.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	user, ok := a.users[userID]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	ends := model.AddMonth(a.now)
	user.IsSubscribed, user.SubscriptionEnds = true, &ends
	return user, nil
}

func (a *fakeApp) ReconcileExpiry(context.Context, string) (bool, error) {
	return false, nil
}

func (a *fakeApp) Status(_ context.Context, userID string) (*model.SubscriptionStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	user, ok := a.users[userID]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	return &model.SubscriptionStatus{IsSubscribed: user.IsSubscribed, SubscriptionEnds: user.SubscriptionEnds}, nil
}

func (a *fakeApp) Overview(context.Context) (*repository.Stats, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return &repository.Stats{Users: int64(len(a.users)), Todos: int64(len(a.todos))}, nil
}

func (a *fakeApp) ListUsers(_ context.Context, page int) (*service.UserList, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	users := make([]*model.UserSummary, 0, len(a.users))
	for _, u := range a.users {
		users = append(users, &model.UserSummary{User: *u})
	}
	return &service.UserList{Users: users, CurrentPage: 1, TotalPages: 1, Total: int64(len(users))}, nil
}

func (a *fakeApp) Activity(context.Context, int) ([]model.Event, error) {
	return []model.Event{{Type: model.EventTodoCreated, UserID: "user_a", OccurredAt: a.now}}, nil
}

type acceptingProvisioner struct{}

func (acceptingProvisioner) Handle(context.Context, string, *webhook.Event) (*service.ProvisioningResult, error) {
	return &service.ProvisioningResult{Outcome: metrics.WebhookProvisioned}, nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:             "test",
		MaxRequestBodySize: 1 << 20,
	}
}

func newTestRouter(app *fakeApp, verifier *webhook.Verifier) (http.Handler, *metrics.InMemoryRecorder) {
	recorder := metrics.NewInMemory()
	return NewRouter(Deps{
		Config:        testConfig(),
		Logger:        discardLogger(),
		Gateway:       tokenGateway(),
		Metrics:       recorder,
		Health:        map[string]handler.HealthChecker{"database": pinger{}, "redis": pinger{}},
		Todos:         app,
		Subscriptions: app,
		Verifier:      verifier,
		Provisioner:   acceptingProvisioner{},
		Admin:         app,
	}), recorder
}
