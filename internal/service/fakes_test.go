package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tasklane/tasklane/internal/model"
	"github.com/tasklane/tasklane/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// memoryStore is an in-memory stand-in for repository.Repository.
type memoryStore struct {
	mu    sync.Mutex
	users map[string]*model.User
	todos map[string]*model.Todo
	err   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users: make(map[string]*model.User),
		todos: make(map[string]*model.Todo),
	}
}

func (m *memoryStore) addUser(u *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
}

func (m *memoryStore) addTodo(t *model.Todo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.todos[t.ID] = &cp
}

func (m *memoryStore) CreateUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.users[user.ID]; ok {
		return repository.ErrUserExists
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrEmailExists
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memoryStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryStore) CountTodosByUser(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for _, t := range m.todos {
		if t.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) ActivateSubscription(_ context.Context, userID string, ends time.Time) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	u.IsSubscribed = true
	u.SubscriptionEnds = &ends
	cp := *u
	return &cp, nil
}

func (m *memoryStore) ReconcileSubscription(_ context.Context, userID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.SubscriptionEnds == nil || !u.SubscriptionEnds.Before(now) {
		return false, nil
	}
	u.IsSubscribed = false
	u.SubscriptionEnds = nil
	return true, nil
}

func (m *memoryStore) ReconcileExpiredSubscriptions(_ context.Context, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var ids []string
	for _, u := range m.users {
		if u.SubscriptionEnds != nil && u.SubscriptionEnds.Before(now) {
			u.IsSubscribed = false
			u.SubscriptionEnds = nil
			ids = append(ids, u.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memoryStore) CreateTodoWithinQuota(_ context.Context, todo *model.Todo, limit int, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[todo.UserID]
	if !ok {
		return repository.ErrUserNotFound
	}
	active := u.IsSubscribed && (u.SubscriptionEnds == nil || !u.SubscriptionEnds.Before(now))
	if !active {
		count := 0
		for _, t := range m.todos {
			if t.UserID == todo.UserID {
				count++
			}
		}
		if count >= limit {
			return repository.ErrTodoQuotaExceeded
		}
	}
	todo.CreatedAt = now
	todo.UpdatedAt = now
	cp := *todo
	m.todos[todo.ID] = &cp
	return nil
}

func (m *memoryStore) GetTodoByID(_ context.Context, id string) (*model.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.todos[id]
	if !ok {
		return nil, repository.ErrTodoNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memoryStore) ToggleTodo(_ context.Context, id, userID string) (*model.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.todos[id]
	if !ok || t.UserID != userID {
		return nil, repository.ErrTodoNotFound
	}
	t.Completed = !t.Completed
	cp := *t
	return &cp, nil
}

func (m *memoryStore) DeleteTodo(_ context.Context, id, userID string) (*model.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.todos[id]
	if !ok || t.UserID != userID {
		return nil, repository.ErrTodoNotFound
	}
	delete(m.todos, id)
	return t, nil
}

func (m *memoryStore) ListTodos(_ context.Context, filter model.TodoFilter) ([]*model.Todo, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, 0, m.err
	}
	var matched []*model.Todo
	for _, t := range m.todos {
		if t.UserID == filter.UserID && containsFold(t.Title, filter.Search) {
			cp := *t
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := int64(len(matched))
	start := filter.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + model.TodosPerPage
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (m *memoryStore) GetStats(context.Context) (*repository.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var s repository.Stats
	for _, u := range m.users {
		s.Users++
		if u.IsSubscribed {
			s.SubscribedUsers++
		}
	}
	for _, t := range m.todos {
		s.Todos++
		if t.Completed {
			s.CompletedTodos++
		}
	}
	return &s, nil
}

func (m *memoryStore) ListUserSummaries(_ context.Context, limit, offset int) ([]*model.UserSummary, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	total := int64(len(ids))
	if offset > len(ids) {
		offset = len(ids)
	}
	ids = ids[offset:]
	if len(ids) > limit {
		ids = ids[:limit]
	}
	var out []*model.UserSummary
	for _, id := range ids {
		s := &model.UserSummary{User: *m.users[id]}
		for _, t := range m.todos {
			if t.UserID == id {
				s.TodoCount++
				if t.Completed {
					s.CompletedCount++
				}
			}
		}
		out = append(out, s)
	}
	return out, total, nil
}

// recordingSink captures emitted events.
type recordingSink struct {
	mu     sync.Mutex
	events []model.Event
}

func (s *recordingSink) Emit(e model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) EmitSync(_ context.Context, e model.Event) { s.Emit(e) }

func (s *recordingSink) types() []model.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.EventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}

// memoryLedger is an in-memory DeliveryLedger.
type memoryLedger struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (l *memoryLedger) WebhookProcessed(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	return l.seen[id], nil
}

func (l *memoryLedger) MarkWebhookProcessed(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	if l.seen == nil {
		l.seen = make(map[string]bool)
	}
	l.seen[id] = true
	return nil
}

// staticReader is a fixed events.Reader.
type staticReader struct {
	events []model.Event
	limit  int64
}

func (r *staticReader) Recent(_ context.Context, limit int64) ([]model.Event, error) {
	r.limit = limit
	if int64(len(r.events)) > limit {
		return r.events[:limit], nil
	}
	return r.events, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
