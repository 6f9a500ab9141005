package model

import (
	"math"
	"time"
)

const (
	// TodosPerPage is the fixed page size for todo listings.
	TodosPerPage = 10

	// FreeTodoLimit is the number of todos an unsubscribed user may own.
	FreeTodoLimit = 5

	// MaxTitleLength bounds todo titles in characters.
	MaxTitleLength = 500

	// MaxPage is the largest page whose offset fits in an int.
	MaxPage = math.MaxInt / TodosPerPage
)

// Todo is a single to-do item owned by exactly one user.
type Todo struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsOwnedBy reports whether userID owns the todo.
func (t *Todo) IsOwnedBy(userID string) bool {
	return t.UserID == userID
}

// TodoFilter selects a page of a user's todos.
type TodoFilter struct {
	UserID string
	Search string
	Page   int
}

// Offset returns the row offset for the filter's page. Pages past MaxPage
// share its offset and read as empty.
func (f TodoFilter) Offset() int {
	page := f.Page
	if page < 1 {
		return 0
	}
	if page > MaxPage {
		page = MaxPage
	}
	return (page - 1) * TodosPerPage
}

// TodoPage is one page of todos with paging metadata.
type TodoPage struct {
	Todos       []*Todo `json:"todos"`
	CurrentPage int     `json:"currentPage"`
	TotalPages  int     `json:"totalPages"`
}

// TotalPages returns ceil(count / TodosPerPage).
func TotalPages(count int64) int {
	if count <= 0 {
		return 0
	}
	return int((count + TodosPerPage - 1) / TodosPerPage)
}
