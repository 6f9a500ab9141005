package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tasklane/tasklane/internal/handler/dto"
	"github.com/tasklane/tasklane/internal/model"
	"github.com/tasklane/tasklane/internal/repository"
	"github.com/tasklane/tasklane/internal/service"
)

// AdminService is the business logic behind AdminHandler.
type AdminService interface {
	Overview(ctx context.Context) (*repository.Stats, error)
	ListUsers(ctx context.Context, page int) (*service.UserList, error)
	Activity(ctx context.Context, limit int) ([]model.Event, error)
}

// AdminHandler provides admin-only endpoints.
type AdminHandler struct {
	svc    AdminService
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(svc AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, logger: logger}
}

// Dashboard handles GET /admin/dashboard.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Overview(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AdminDashboardResponse{
		Success: true,
		Page:    "admin-dashboard",
		Stats:   stats,
	})
}

// Users handles GET /admin/api/users?page.
func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		page = 1
	}

	list, err := h.svc.ListUsers(r.Context(), page)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AdminUsersResponse{
		Success:     true,
		Users:       list.Users,
		CurrentPage: list.CurrentPage,
		TotalPages:  list.TotalPages,
		Total:       list.Total,
	})
}

// Activity handles GET /admin/api/activity?limit.
func (h *AdminHandler) Activity(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	evts, err := h.svc.Activity(r.Context(), limit)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	if evts == nil {
		evts = []model.Event{}
	}

	writeJSON(w, http.StatusOK, dto.AdminActivityResponse{Success: true, Events: evts})
}

func (h *AdminHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrActivityUnavailable):
		writeError(w, http.StatusNotImplemented, "ACTIVITY_UNAVAILABLE", "Activity feed requires the redis event backend")
	default:
		writeInternalError(w, h.logger, err)
	}
}
