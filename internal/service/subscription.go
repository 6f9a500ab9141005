package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tasklane/tasklane/internal/metrics"
	"github.com/tasklane/tasklane/internal/model"
	"github.com/tasklane/tasklane/internal/repository"
)

// SubscriptionStore is the persistence needed by SubscriptionService.
type SubscriptionStore interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	ActivateSubscription(ctx context.Context, userID string, ends time.Time) (*model.User, error)
	ReconcileSubscription(ctx context.Context, userID string, now time.Time) (bool, error)
	ReconcileExpiredSubscriptions(ctx context.Context, now time.Time) ([]string, error)
}

// SubscriptionService handles subscription activation and expiry.
type SubscriptionService struct {
	store   SubscriptionStore
	events  EventSink
	metrics metrics.Recorder
	logger  *slog.Logger
	now     Clock
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(store SubscriptionStore, events EventSink, recorder metrics.Recorder, logger *slog.Logger) *SubscriptionService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if events == nil {
		events = nopSink{}
	}
	return &SubscriptionService{
		store:   store,
		events:  events,
		metrics: recorder,
		logger:  logger.With("component", "subscription"),
		now:     utcNow,
	}
}

// Activate subscribes userID for one calendar month from now.
func (s *SubscriptionService) Activate(ctx context.Context, userID string) (*model.User, error) {
	ends := model.AddMonth(s.now())

	user, err := s.store.ActivateSubscription(ctx, userID, ends)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("activate subscription: %w", err)
	}

	s.metrics.IncSubscriptionActivated()
	s.events.Emit(model.NewEvent(model.EventSubscriptionActivate, userID).
		With("subscription_ends", ends.Format(time.RFC3339)))
	return user, nil
}

// ReconcileExpiry clears userID's subscription if its expiry has passed.
// It is idempotent and reports whether anything changed.
func (s *SubscriptionService) ReconcileExpiry(ctx context.Context, userID string) (bool, error) {
	changed, err := s.store.ReconcileSubscription(ctx, userID, s.now())
	if err != nil {
		return false, fmt.Errorf("reconcile subscription: %w", err)
	}
	if changed {
		s.metrics.AddSubscriptionsExpired(1)
		s.events.Emit(model.NewEvent(model.EventSubscriptionExpired, userID))
	}
	return changed, nil
}

// Status reads the subscription state without modifying it. A lapsed
// expiry that has not been reconciled yet is reported as not subscribed.
func (s *SubscriptionService) Status(ctx context.Context, userID string) (*model.SubscriptionStatus, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if user.SubscriptionExpired(s.now()) {
		return &model.SubscriptionStatus{Expired: true}, nil
	}
	return &model.SubscriptionStatus{
		IsSubscribed:     user.IsSubscribed,
		SubscriptionEnds: user.SubscriptionEnds,
	}, nil
}

// ReconcileExpired clears every lapsed subscription. It backs the
// scheduled sweep and returns the number of users affected.
func (s *SubscriptionService) ReconcileExpired(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveReconcileDuration(time.Since(start)) }()

	ids, err := s.store.ReconcileExpiredSubscriptions(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("reconcile expired subscriptions: %w", err)
	}

	s.metrics.AddSubscriptionsExpired(len(ids))
	for _, id := range ids {
		s.events.EmitSync(ctx, model.NewEvent(model.EventSubscriptionExpired, id))
	}
	if len(ids) > 0 {
		s.logger.Info("subscriptions_expired", "count", len(ids))
	}
	return len(ids), nil
}
