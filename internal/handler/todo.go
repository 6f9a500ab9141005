package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tasklane/tasklane/internal/handler/dto"
	"github.com/tasklane/tasklane/internal/model"
	"github.com/tasklane/tasklane/internal/service"
)

// TodoService is the business logic behind TodoHandler.
type TodoService interface {
	List(ctx context.Context, userID string, page int, search string) (*model.TodoPage, error)
	Create(ctx context.Context, userID, title string) (*model.Todo, error)
	Toggle(ctx context.Context, userID, todoID string) (*model.Todo, error)
	Delete(ctx context.Context, userID, todoID string) (*model.Todo, error)
}

// TodoHandler handles HTTP requests for todo operations.
type TodoHandler struct {
	svc    TodoService
	logger *slog.Logger
}

// NewTodoHandler creates a new TodoHandler.
func NewTodoHandler(svc TodoService, logger *slog.Logger) *TodoHandler {
	return &TodoHandler{
		svc:    svc,
		logger: logger,
	}
}

// List handles GET /api/todos?page&search.
func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	page, err := strconv.Atoi(query.Get("page"))
	if err != nil {
		page = 1
	}
	if page > model.MaxPage {
		page = model.MaxPage
	}

	result, err := h.svc.List(r.Context(), userID, page, query.Get("search"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewTodoListResponse(result))
}

// Create handles POST /api/todos.
func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.CreateTodoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	todo, err := h.svc.Create(r.Context(), userID, req.Title)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("todo_created", "todo_id", todo.ID, "user_id", userID)

	writeJSON(w, http.StatusCreated, dto.TodoResponse{Success: true, Todo: todo})
}

// Toggle handles PUT /api/todos/{id}.
func (h *TodoHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	todo, err := h.svc.Toggle(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("todo_toggled", "todo_id", todo.ID, "completed", todo.Completed)

	writeJSON(w, http.StatusOK, dto.TodoResponse{
		Success: true,
		Todo:    todo,
		Message: "Todo updated successfully",
	})
}

// Delete handles DELETE /api/todos/{id}.
func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	todo, err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("todo_deleted", "todo_id", todo.ID)

	writeJSON(w, http.StatusOK, dto.TodoResponse{
		Success: true,
		Todo:    todo,
		Message: "Todo deleted successfully",
	})
}

// handleServiceError maps service errors to HTTP responses.
func (h *TodoHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	case errors.Is(err, service.ErrQuotaExceeded):
		writeError(w, http.StatusForbidden, "QUOTA_EXCEEDED", service.QuotaMessage)
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden access")
	case errors.Is(err, service.ErrTodoNotFound):
		writeError(w, http.StatusNotFound, "TODO_NOT_FOUND", "Todo not found")
	case errors.Is(err, service.ErrMissingTodoID):
		writeError(w, http.StatusBadRequest, "MISSING_TODO_ID", "Missing todo id")
	case errors.Is(err, service.ErrMissingTitle):
		writeError(w, http.StatusBadRequest, "MISSING_TITLE", "Title is required")
	case errors.Is(err, service.ErrTitleTooLong):
		writeError(w, http.StatusBadRequest, "TITLE_TOO_LONG",
			fmt.Sprintf("Title must be at most %d characters", model.MaxTitleLength))
	default:
		writeInternalError(w, h.logger, err)
	}
}
