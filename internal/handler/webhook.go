package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/tasklane/tasklane/internal/metrics"
	"github.com/tasklane/tasklane/internal/service"
	"github.com/tasklane/tasklane/internal/webhook"
)

// WebhookVerifier authenticates a delivery.
type WebhookVerifier interface {
	Verify(h webhook.Headers, body []byte) error
}

// Provisioner applies a verified delivery.
type Provisioner interface {
	Handle(ctx context.Context, messageID string, evt *webhook.Event) (*service.ProvisioningResult, error)
}

// WebhookHandler receives identity provider notifications. Responses are
// plain text, as the provider only inspects the status code.
type WebhookHandler struct {
	verifier    WebhookVerifier
	provisioner Provisioner
	metrics     metrics.Recorder
	logger      *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(verifier WebhookVerifier, provisioner Provisioner, recorder metrics.Recorder, logger *slog.Logger) *WebhookHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &WebhookHandler{
		verifier:    verifier,
		provisioner: provisioner,
		metrics:     recorder,
		logger:      logger.With("component", "webhook"),
	}
}

// Register handles POST /api/webhook/register.
func (h *WebhookHandler) Register(w http.ResponseWriter, r *http.Request) {
	headers, err := webhook.HeadersFrom(r.Header)
	if err != nil {
		h.reject(w, r, http.StatusBadRequest, "Missing headers. Please check the headers in the Webhook Request.", err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.reject(w, r, http.StatusBadRequest, "Error reading webhook body", err)
		return
	}

	if err := h.verifier.Verify(headers, body); err != nil {
		h.reject(w, r, http.StatusBadRequest, "Error verifying webhook", err)
		return
	}

	evt, err := webhook.ParseEvent(body)
	if err != nil {
		h.reject(w, r, http.StatusBadRequest, "Invalid webhook payload", err)
		return
	}

	result, err := h.provisioner.Handle(r.Context(), headers.ID, evt)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPrimaryEmailNotFound):
			h.reject(w, r, http.StatusNotFound, "Primary email not found", err)
		case errors.Is(err, webhook.ErrMalformedPayload):
			h.reject(w, r, http.StatusBadRequest, "Invalid webhook payload", err)
		case errors.Is(err, service.ErrEmailTaken):
			h.reject(w, r, http.StatusBadRequest, "Error creating user", err)
		default:
			// 5xx so the provider retries.
			h.reject(w, r, http.StatusInternalServerError, "Error creating user", err)
		}
		return
	}

	h.logger.Info("webhook_received",
		"message_id", headers.ID,
		"event_type", evt.Type,
		"outcome", result.Outcome,
	)

	writeText(w, http.StatusOK, fmt.Sprintf(
		"Webhook with and ID of %s and event type of %s was received successfully.",
		evt.DataID(), evt.Type,
	))
}

func (h *WebhookHandler) reject(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	h.metrics.IncWebhookReceived(metrics.WebhookRejected)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "webhook_rejected",
		"status", status,
		"reason", message,
		"error", err,
	)
	writeText(w, status, message)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
