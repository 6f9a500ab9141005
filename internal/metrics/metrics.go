// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Authorization filter outcomes.
const (
	DecisionPass           = "pass"
	DecisionSignIn         = "sign_in"
	DecisionDashboard      = "dashboard"
	DecisionAdminDashboard = "admin_dashboard"
	DecisionError          = "error"
)

// Webhook receiver outcomes.
const (
	WebhookProvisioned = "provisioned"
	WebhookIgnored     = "ignored"
	WebhookDuplicate   = "duplicate"
	WebhookRejected    = "rejected"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Authorization filter
	IncAuthDecision(decision string)

	// Todo management
	IncTodoCreated()
	IncTodoToggled()
	IncTodoDeleted()
	IncTodoQuotaRejected()

	// Subscriptions
	IncSubscriptionActivated()
	AddSubscriptionsExpired(n int)
	ObserveReconcileDuration(duration time.Duration)

	// Provisioning webhook
	IncWebhookReceived(outcome string)

	// Domain events
	IncEventPublished(status string) // status: "success" or "dropped"
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
