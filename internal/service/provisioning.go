package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tasklane/tasklane/internal/metrics"
	"github.com/tasklane/tasklane/internal/model"
	"github.com/tasklane/tasklane/internal/repository"
	"github.com/tasklane/tasklane/internal/webhook"
)

// UserCreator persists provisioned users.
type UserCreator interface {
	CreateUser(ctx context.Context, user *model.User) error
}

// DeliveryLedger remembers processed webhook message ids.
type DeliveryLedger interface {
	WebhookProcessed(ctx context.Context, messageID string) (bool, error)
	MarkWebhookProcessed(ctx context.Context, messageID string) error
}

// ProvisioningResult describes how a verified delivery was handled.
type ProvisioningResult struct {
	Outcome string // one of the metrics.Webhook* outcomes
	UserID  string
}

// ProvisioningService applies verified identity provider events.
type ProvisioningService struct {
	users   UserCreator
	ledger  DeliveryLedger
	events  EventSink
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewProvisioningService creates a ProvisioningService. ledger may be nil.
func NewProvisioningService(users UserCreator, ledger DeliveryLedger, events EventSink, recorder metrics.Recorder, logger *slog.Logger) *ProvisioningService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if events == nil {
		events = nopSink{}
	}
	return &ProvisioningService{
		users:   users,
		ledger:  ledger,
		events:  events,
		metrics: recorder,
		logger:  logger.With("component", "provisioning"),
	}
}

// Handle applies a verified event delivered under messageID.
//
// A redelivery of a processed message and a user.created for an existing
// user id are both acknowledged without writing. A different user claiming
// an existing email is rejected with ErrEmailTaken.
func (s *ProvisioningService) Handle(ctx context.Context, messageID string, evt *webhook.Event) (*ProvisioningResult, error) {
	if s.alreadyProcessed(ctx, messageID) {
		s.metrics.IncWebhookReceived(metrics.WebhookDuplicate)
		return &ProvisioningResult{Outcome: metrics.WebhookDuplicate}, nil
	}

	if evt.Type != webhook.EventUserCreated {
		s.markProcessed(ctx, messageID)
		s.metrics.IncWebhookReceived(metrics.WebhookIgnored)
		return &ProvisioningResult{Outcome: metrics.WebhookIgnored}, nil
	}

	data, err := evt.UserData()
	if err != nil {
		return nil, err
	}

	email, ok := data.PrimaryEmail()
	if !ok {
		return nil, ErrPrimaryEmailNotFound
	}

	user := &model.User{
		ID:           data.ID,
		Email:        email,
		IsSubscribed: false,
	}

	err = s.users.CreateUser(ctx, user)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrUserExists):
		s.markProcessed(ctx, messageID)
		s.metrics.IncWebhookReceived(metrics.WebhookDuplicate)
		s.logger.Info("user_already_provisioned", "user_id", user.ID, "message_id", messageID)
		return &ProvisioningResult{Outcome: metrics.WebhookDuplicate, UserID: user.ID}, nil
	case errors.Is(err, repository.ErrEmailExists):
		return nil, ErrEmailTaken
	default:
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.markProcessed(ctx, messageID)
	s.metrics.IncWebhookReceived(metrics.WebhookProvisioned)
	s.events.Emit(model.NewEvent(model.EventUserProvisioned, user.ID))
	s.logger.Info("user_provisioned", "user_id", user.ID, "message_id", messageID)

	return &ProvisioningResult{Outcome: metrics.WebhookProvisioned, UserID: user.ID}, nil
}

// alreadyProcessed treats ledger errors as unseen; the primary key still
// rejects a duplicate insert.
func (s *ProvisioningService) alreadyProcessed(ctx context.Context, messageID string) bool {
	if s.ledger == nil {
		return false
	}
	seen, err := s.ledger.WebhookProcessed(ctx, messageID)
	if err != nil {
		s.logger.Warn("webhook_ledger_read_failed", "message_id", messageID, "error", err)
		return false
	}
	return seen
}

func (s *ProvisioningService) markProcessed(ctx context.Context, messageID string) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.MarkWebhookProcessed(ctx, messageID); err != nil {
		s.logger.Warn("webhook_ledger_write_failed", "message_id", messageID, "error", err)
	}
}
