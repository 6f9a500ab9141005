package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tasklane/tasklane/internal/model"
)

// Common errors for todo repository operations.
var (
	ErrTodoNotFound       = errors.New("todo not found")
	ErrTodoQuotaExceeded  = errors.New("todo quota exceeded")
	ErrTodoOwnerNotExists = errors.New("todo owner does not exist")
)

const todoColumns = `id, title, completed, user_id, created_at, updated_at`

// CreateTodoWithinQuota inserts todo unless its owner is unsubscribed and
// already owns limit or more todos. The owner row is locked for the
// duration of the transaction so concurrent creates cannot both pass the
// count check. A subscription whose expiry lies before now counts as
// unsubscribed.
func (r *Repository) CreateTodoWithinQuota(ctx context.Context, todo *model.Todo, limit int, now time.Time) error {
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var (
			subscribed bool
			ends       *time.Time
		)
		err := tx.QueryRow(ctx,
			`SELECT is_subscribed, subscription_ends FROM users WHERE id = $1 FOR UPDATE`,
			todo.UserID,
		).Scan(&subscribed, &ends)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to lock user: %w", err)
		}

		active := subscribed && (ends == nil || !ends.Before(now))
		if !active {
			var count int64
			if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM todos WHERE user_id = $1`, todo.UserID).Scan(&count); err != nil {
				return fmt.Errorf("failed to count todos: %w", err)
			}
			if count >= int64(limit) {
				return ErrTodoQuotaExceeded
			}
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO todos (id, title, completed, user_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			RETURNING created_at, updated_at
		`,
			todo.ID,
			todo.Title,
			todo.Completed,
			todo.UserID,
			now,
		).Scan(&todo.CreatedAt, &todo.UpdatedAt)
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrTodoOwnerNotExists
			}
			return fmt.Errorf("failed to create todo: %w", err)
		}

		return nil
	})
}

// GetTodoByID retrieves a todo by its ID.
func (r *Repository) GetTodoByID(ctx context.Context, id string) (*model.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE id = $1`

	todo, err := scanTodo(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTodoNotFound
		}
		return nil, fmt.Errorf("failed to get todo by ID: %w", err)
	}

	return todo, nil
}

// ToggleTodo flips completed on a todo owned by userID and returns the
// updated row. A todo that is missing or owned by someone else yields
// ErrTodoNotFound.
func (r *Repository) ToggleTodo(ctx context.Context, id, userID string) (*model.Todo, error) {
	query := `
		UPDATE todos
		SET completed = NOT completed, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + todoColumns

	todo, err := scanTodo(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTodoNotFound
		}
		return nil, fmt.Errorf("failed to toggle todo: %w", err)
	}

	return todo, nil
}

// DeleteTodo removes a todo owned by userID and returns the deleted row.
func (r *Repository) DeleteTodo(ctx context.Context, id, userID string) (*model.Todo, error) {
	query := `
		DELETE FROM todos
		WHERE id = $1 AND user_id = $2
		RETURNING ` + todoColumns

	todo, err := scanTodo(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTodoNotFound
		}
		return nil, fmt.Errorf("failed to delete todo: %w", err)
	}

	return todo, nil
}

// ListTodos returns one page of the user's todos whose title contains
// filter.Search case-insensitively, newest first, plus the total count of
// matching todos.
func (r *Repository) ListTodos(ctx context.Context, filter model.TodoFilter) ([]*model.Todo, int64, error) {
	pattern := containsPattern(filter.Search)

	query := `
		SELECT ` + todoColumns + `
		FROM todos
		WHERE user_id = $1 AND title ILIKE $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.pool.Query(ctx, query, filter.UserID, pattern, model.TodosPerPage, filter.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list todos: %w", err)
	}
	defer rows.Close()

	todos := make([]*model.Todo, 0, model.TodosPerPage)
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan todo: %w", err)
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating todos: %w", err)
	}

	var total int64
	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM todos WHERE user_id = $1 AND title ILIKE $2`,
		filter.UserID, pattern,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count todos: %w", err)
	}

	return todos, total, nil
}

// CountTodosByUser returns how many todos the user owns.
func (r *Repository) CountTodosByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM todos WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count todos: %w", err)
	}
	return count, nil
}

func scanTodo(row pgx.Row) (*model.Todo, error) {
	var todo model.Todo
	err := row.Scan(
		&todo.ID,
		&todo.Title,
		&todo.Completed,
		&todo.UserID,
		&todo.CreatedAt,
		&todo.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &todo, nil
}
