package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tasklane/tasklane/internal/handler/dto"
	"github.com/tasklane/tasklane/internal/model"
	"github.com/tasklane/tasklane/internal/service"
)

// SubscriptionService is the business logic behind SubscriptionHandler.
type SubscriptionService interface {
	Activate(ctx context.Context, userID string) (*model.User, error)
	ReconcileExpiry(ctx context.Context, userID string) (bool, error)
	Status(ctx context.Context, userID string) (*model.SubscriptionStatus, error)
}

// SubscriptionHandler handles subscription activation and status.
type SubscriptionHandler struct {
	svc    SubscriptionService
	logger *slog.Logger
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(svc SubscriptionService, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc, logger: logger}
}

// Activate handles POST /api/subscription.
func (h *SubscriptionHandler) Activate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := h.svc.Activate(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("subscription_activated", "user_id", userID, "subscription_ends", user.SubscriptionEnds)

	writeJSON(w, http.StatusOK, dto.SubscriptionActivatedResponse{
		Success: true,
		Message: "Subscription successful",
		Expiry:  user.SubscriptionEnds,
	})
}

// Status handles GET /api/subscription. A lapsed subscription is
// reconciled first so the stored state matches what is reported.
func (h *SubscriptionHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if _, err := h.svc.ReconcileExpiry(r.Context(), userID); err != nil {
		// Status still reports a lapsed subscription as inactive.
		h.logger.Warn("subscription_reconcile_failed", "user_id", userID, "error", err)
	}

	status, err := h.svc.Status(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SubscriptionStatusResponse{
		Success:          true,
		IsSubscribed:     status.IsSubscribed,
		SubscriptionEnds: status.SubscriptionEnds,
		Message:          status.Message(),
	})
}

func (h *SubscriptionHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	default:
		writeInternalError(w, h.logger, err)
	}
}
