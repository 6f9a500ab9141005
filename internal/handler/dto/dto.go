// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/tasklane/tasklane/internal/model"
	"github.com/tasklane/tasklane/internal/repository"
)

// ErrorResponse is the body of every JSON error.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// CreateTodoRequest is the body of POST /api/todos.
type CreateTodoRequest struct {
	Title string `json:"title"`
}

// TodoListResponse is one page of the caller's todos.
type TodoListResponse struct {
	Success     bool          `json:"success"`
	Todos       []*model.Todo `json:"todos"`
	CurrentPage int           `json:"currentPage"`
	TotalPages  int           `json:"totalPages"`
}

// TodoResponse wraps a single todo.
type TodoResponse struct {
	Success bool        `json:"success"`
	Todo    *model.Todo `json:"todo"`
	Message string      `json:"message,omitempty"`
}

// SubscriptionActivatedResponse is returned after activation.
type SubscriptionActivatedResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Expiry  *time.Time `json:"expiry"`
}

// SubscriptionStatusResponse reports the caller's subscription.
type SubscriptionStatusResponse struct {
	Success          bool       `json:"success"`
	IsSubscribed     bool       `json:"isSubscribed"`
	SubscriptionEnds *time.Time `json:"subscriptionEnds"`
	Message          string     `json:"message"`
}

// PageResponse is the placeholder body of a browser page route.
type PageResponse struct {
	Success bool   `json:"success"`
	Page    string `json:"page"`
	UserID  string `json:"userId,omitempty"`
	Role    string `json:"role,omitempty"`
}

// AdminDashboardResponse is the admin landing page.
type AdminDashboardResponse struct {
	Success bool              `json:"success"`
	Page    string            `json:"page"`
	Stats   *repository.Stats `json:"stats"`
}

// AdminUsersResponse is one page of the admin user listing.
type AdminUsersResponse struct {
	Success     bool                 `json:"success"`
	Users       []*model.UserSummary `json:"users"`
	CurrentPage int                  `json:"currentPage"`
	TotalPages  int                  `json:"totalPages"`
	Total       int64                `json:"total"`
}

// AdminActivityResponse lists recent domain events.
type AdminActivityResponse struct {
	Success bool          `json:"success"`
	Events  []model.Event `json:"events"`
}

// NewTodoListResponse builds the list body, never encoding a null list.
func NewTodoListResponse(page *model.TodoPage) *TodoListResponse {
	todos := page.Todos
	if todos == nil {
		todos = []*model.Todo{}
	}
	return &TodoListResponse{
		Success:     true,
		Todos:       todos,
		CurrentPage: page.CurrentPage,
		TotalPages:  page.TotalPages,
	}
}
