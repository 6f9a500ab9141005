package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tasklane/tasklane/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
	ErrEmailExists  = errors.New("email already exists")
)

const userColumns = `id, email, is_subscribed, subscription_ends, created_at, updated_at`

// CreateUser inserts a new user. A duplicate id is rejected with
// ErrUserExists and never merged into the existing row.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, email, is_subscribed, subscription_ends, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING created_at, updated_at
	`

	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.IsSubscribed,
		user.SubscriptionEnds,
		now,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if constraint == "users_email_key" {
				return ErrEmailExists
			}
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by their ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return user, nil
}

// ActivateSubscription marks the user subscribed until ends.
func (r *Repository) ActivateSubscription(ctx context.Context, userID string, ends time.Time) (*model.User, error) {
	query := `
		UPDATE users
		SET is_subscribed = TRUE, subscription_ends = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, userID, ends))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to activate subscription: %w", err)
	}

	return user, nil
}

// ReconcileSubscription clears the subscription of one user whose expiry
// lies before now. Returns true when a lapsed subscription was cleared.
// The conditional UPDATE makes repeated or concurrent calls harmless.
func (r *Repository) ReconcileSubscription(ctx context.Context, userID string, now time.Time) (bool, error) {
	query := `
		UPDATE users
		SET is_subscribed = FALSE, subscription_ends = NULL, updated_at = NOW()
		WHERE id = $1 AND subscription_ends IS NOT NULL AND subscription_ends < $2
	`

	tag, err := r.pool.Exec(ctx, query, userID, now)
	if err != nil {
		return false, fmt.Errorf("failed to reconcile subscription: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ReconcileExpiredSubscriptions clears every lapsed subscription and
// returns the affected user IDs.
func (r *Repository) ReconcileExpiredSubscriptions(ctx context.Context, now time.Time) ([]string, error) {
	query := `
		UPDATE users
		SET is_subscribed = FALSE, subscription_ends = NULL, updated_at = NOW()
		WHERE subscription_ends IS NOT NULL AND subscription_ends < $1
		RETURNING id
	`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile subscriptions: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect reconciled users: %w", err)
	}

	return ids, nil
}

// ListUserSummaries returns users with their todo counts, newest first.
func (r *Repository) ListUserSummaries(ctx context.Context, limit, offset int) ([]*model.UserSummary, int64, error) {
	query := `
		SELECT u.id, u.email, u.is_subscribed, u.subscription_ends, u.created_at, u.updated_at,
		       COUNT(t.id) AS todo_count,
		       COUNT(t.id) FILTER (WHERE t.completed) AS completed_count
		FROM users u
		LEFT JOIN todos t ON t.user_id = u.id
		GROUP BY u.id
		ORDER BY u.created_at DESC, u.id
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var summaries []*model.UserSummary
	for rows.Next() {
		var s model.UserSummary
		if err := rows.Scan(
			&s.ID,
			&s.Email,
			&s.IsSubscribed,
			&s.SubscriptionEnds,
			&s.CreatedAt,
			&s.UpdatedAt,
			&s.TodoCount,
			&s.CompletedCount,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan user summary: %w", err)
		}
		summaries = append(summaries, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating users: %w", err)
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	return summaries, total, nil
}

// Stats holds global counters for the admin dashboard.
type Stats struct {
	Users           int64 `json:"users"`
	SubscribedUsers int64 `json:"subscribedUsers"`
	Todos           int64 `json:"todos"`
	CompletedTodos  int64 `json:"completedTodos"`
}

// GetStats returns global user and todo counts.
func (r *Repository) GetStats(ctx context.Context) (*Stats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM users WHERE is_subscribed),
			(SELECT COUNT(*) FROM todos),
			(SELECT COUNT(*) FROM todos WHERE completed)
	`

	var s Stats
	if err := r.pool.QueryRow(ctx, query).Scan(&s.Users, &s.SubscribedUsers, &s.Todos, &s.CompletedTodos); err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &s, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.IsSubscribed,
		&user.SubscriptionEnds,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
