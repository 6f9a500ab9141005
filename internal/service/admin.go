package service

import (
	"context"
	"fmt"

	"github.com/tasklane/tasklane/internal/events"
	"github.com/tasklane/tasklane/internal/model"
	"github.com/tasklane/tasklane/internal/repository"
)

// UsersPerAdminPage is the page size of the admin user listing.
const UsersPerAdminPage = 20

// MaxActivityLimit caps the activity feed request size.
const MaxActivityLimit = 200

// AdminStore is the persistence needed by AdminService.
type AdminStore interface {
	GetStats(ctx context.Context) (*repository.Stats, error)
	ListUserSummaries(ctx context.Context, limit, offset int) ([]*model.UserSummary, int64, error)
}

// UserList is one page of the admin user listing.
type UserList struct {
	Users       []*model.UserSummary `json:"users"`
	CurrentPage int                  `json:"currentPage"`
	TotalPages  int                  `json:"totalPages"`
	Total       int64                `json:"total"`
}

// AdminService serves the admin dashboard.
type AdminService struct {
	store    AdminStore
	activity events.Reader
}

// NewAdminService creates an AdminService. activity may be nil when the
// configured event backend cannot be read back.
func NewAdminService(store AdminStore, activity events.Reader) *AdminService {
	return &AdminService{store: store, activity: activity}
}

// Overview returns global counters.
func (s *AdminService) Overview(ctx context.Context) (*repository.Stats, error) {
	stats, err := s.store.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return stats, nil
}

// ListUsers returns one page of users with todo counts.
func (s *AdminService) ListUsers(ctx context.Context, page int) (*UserList, error) {
	if page < 1 {
		page = 1
	}

	users, total, err := s.store.ListUserSummaries(ctx, UsersPerAdminPage, (page-1)*UsersPerAdminPage)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []*model.UserSummary{}
	}

	return &UserList{
		Users:       users,
		CurrentPage: page,
		TotalPages:  int((total + UsersPerAdminPage - 1) / UsersPerAdminPage),
		Total:       total,
	}, nil
}

// Activity returns the most recent domain events.
func (s *AdminService) Activity(ctx context.Context, limit int) ([]model.Event, error) {
	if s.activity == nil {
		return nil, ErrActivityUnavailable
	}
	if limit <= 0 || limit > MaxActivityLimit {
		limit = 50
	}

	evts, err := s.activity.Recent(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("read activity: %w", err)
	}
	return evts, nil
}
