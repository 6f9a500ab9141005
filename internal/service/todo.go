package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tasklane/tasklane/internal/metrics"
	"github.com/tasklane/tasklane/internal/model"
	"github.com/tasklane/tasklane/internal/repository"
)

// TodoStore is the persistence needed by TodoService.
type TodoStore interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	CountTodosByUser(ctx context.Context, userID string) (int64, error)
	CreateTodoWithinQuota(ctx context.Context, todo *model.Todo, limit int, now time.Time) error
	GetTodoByID(ctx context.Context, id string) (*model.Todo, error)
	ToggleTodo(ctx context.Context, id, userID string) (*model.Todo, error)
	DeleteTodo(ctx context.Context, id, userID string) (*model.Todo, error)
	ListTodos(ctx context.Context, filter model.TodoFilter) ([]*model.Todo, int64, error)
}

// TodoService handles todo business logic.
type TodoService struct {
	store   TodoStore
	events  EventSink
	metrics metrics.Recorder
	now     Clock
}

// NewTodoService creates a new TodoService.
func NewTodoService(store TodoStore, events EventSink, recorder metrics.Recorder) *TodoService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if events == nil {
		events = nopSink{}
	}
	return &TodoService{
		store:   store,
		events:  events,
		metrics: recorder,
		now:     utcNow,
	}
}

// List returns one page of the user's todos matching search. Pages below
// 1 are treated as page 1 and pages past model.MaxPage as model.MaxPage.
func (s *TodoService) List(ctx context.Context, userID string, page int, search string) (*model.TodoPage, error) {
	if page < 1 {
		page = 1
	}
	if page > model.MaxPage {
		page = model.MaxPage
	}

	todos, total, err := s.store.ListTodos(ctx, model.TodoFilter{
		UserID: userID,
		Search: search,
		Page:   page,
	})
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}

	return &model.TodoPage{
		Todos:       todos,
		CurrentPage: page,
		TotalPages:  model.TotalPages(total),
	}, nil
}

// Create adds a todo for userID, enforcing the free-tier quota. An unknown
// owner or an exhausted quota is reported ahead of an invalid title.
func (s *TodoService) Create(ctx context.Context, userID, title string) (*model.Todo, error) {
	title = strings.TrimSpace(title)
	if err := validateTitle(title); err != nil {
		if qerr := s.checkQuota(ctx, userID); qerr != nil {
			return nil, qerr
		}
		return nil, err
	}

	todo := &model.Todo{
		ID:     uuid.NewString(),
		Title:  title,
		UserID: userID,
	}

	err := s.store.CreateTodoWithinQuota(ctx, todo, model.FreeTodoLimit, s.now())
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrUserNotFound), errors.Is(err, repository.ErrTodoOwnerNotExists):
		return nil, ErrUserNotFound
	case errors.Is(err, repository.ErrTodoQuotaExceeded):
		s.metrics.IncTodoQuotaRejected()
		return nil, ErrQuotaExceeded
	default:
		return nil, fmt.Errorf("create todo: %w", err)
	}

	s.metrics.IncTodoCreated()
	s.events.Emit(model.NewEvent(model.EventTodoCreated, userID).WithTodo(todo.ID))
	return todo, nil
}

func validateTitle(title string) error {
	if title == "" {
		return ErrMissingTitle
	}
	if utf8.RuneCountInString(title) > model.MaxTitleLength {
		return ErrTitleTooLong
	}
	return nil
}

// checkQuota reports ErrUserNotFound or ErrQuotaExceeded for userID without
// locking anything. CreateTodoWithinQuota remains the authoritative check.
func (s *TodoService) checkQuota(ctx context.Context, userID string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	now := s.now()
	if user.IsSubscribed && !user.SubscriptionExpired(now) {
		return nil
	}
	count, err := s.store.CountTodosByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("count todos: %w", err)
	}
	if count >= model.FreeTodoLimit {
		s.metrics.IncTodoQuotaRejected()
		return ErrQuotaExceeded
	}
	return nil
}

// Toggle flips the completed flag of a todo owned by userID.
func (s *TodoService) Toggle(ctx context.Context, userID, todoID string) (*model.Todo, error) {
	if err := s.authorize(ctx, userID, todoID); err != nil {
		return nil, err
	}

	todo, err := s.store.ToggleTodo(ctx, todoID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrTodoNotFound) {
			return nil, ErrTodoNotFound
		}
		return nil, fmt.Errorf("toggle todo: %w", err)
	}

	s.metrics.IncTodoToggled()
	s.events.Emit(model.NewEvent(model.EventTodoToggled, userID).
		WithTodo(todo.ID).
		With("completed", fmt.Sprint(todo.Completed)))
	return todo, nil
}

// Delete removes a todo owned by userID and returns the removed record.
func (s *TodoService) Delete(ctx context.Context, userID, todoID string) (*model.Todo, error) {
	if err := s.authorize(ctx, userID, todoID); err != nil {
		return nil, err
	}

	todo, err := s.store.DeleteTodo(ctx, todoID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrTodoNotFound) {
			return nil, ErrTodoNotFound
		}
		return nil, fmt.Errorf("delete todo: %w", err)
	}

	s.metrics.IncTodoDeleted()
	s.events.Emit(model.NewEvent(model.EventTodoDeleted, userID).WithTodo(todo.ID))
	return todo, nil
}

// authorize distinguishes a missing todo from one owned by someone else.
// The mutation itself is still conditioned on ownership.
func (s *TodoService) authorize(ctx context.Context, userID, todoID string) error {
	if strings.TrimSpace(todoID) == "" {
		return ErrMissingTodoID
	}

	todo, err := s.store.GetTodoByID(ctx, todoID)
	if err != nil {
		if errors.Is(err, repository.ErrTodoNotFound) {
			return ErrTodoNotFound
		}
		return fmt.Errorf("get todo: %w", err)
	}
	if !todo.IsOwnedBy(userID) {
		return ErrForbidden
	}
	return nil
}
