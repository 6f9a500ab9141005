package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	AuthPass           uint64
	AuthSignIn         uint64
	AuthDashboard      uint64
	AuthAdminDashboard uint64
	AuthError          uint64

	TodosCreated      uint64
	TodosToggled      uint64
	TodosDeleted      uint64
	TodoQuotaRejected uint64

	SubscriptionsActivated uint64
	SubscriptionsExpired   uint64
	ReconcileRuns          uint64
	ReconcileTotalNs       int64

	WebhooksProvisioned uint64
	WebhooksIgnored     uint64
	WebhooksDuplicate   uint64
	WebhooksRejected    uint64

	EventsPublished uint64
	EventsDropped   uint64
}

// InMemoryRecorder stores metrics in memory. It backs the /metrics
// endpoint and is used directly by tests.
type InMemoryRecorder struct {
	authPass           uint64
	authSignIn         uint64
	authDashboard      uint64
	authAdminDashboard uint64
	authError          uint64

	todosCreated      uint64
	todosToggled      uint64
	todosDeleted      uint64
	todoQuotaRejected uint64

	subscriptionsActivated uint64
	subscriptionsExpired   uint64
	reconcileRuns          uint64
	reconcileTotalNs       int64

	webhooksProvisioned uint64
	webhooksIgnored     uint64
	webhooksDuplicate   uint64
	webhooksRejected    uint64

	eventsPublished uint64
	eventsDropped   uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		AuthPass:           atomic.LoadUint64(&m.authPass),
		AuthSignIn:         atomic.LoadUint64(&m.authSignIn),
		AuthDashboard:      atomic.LoadUint64(&m.authDashboard),
		AuthAdminDashboard: atomic.LoadUint64(&m.authAdminDashboard),
		AuthError:          atomic.LoadUint64(&m.authError),

		TodosCreated:      atomic.LoadUint64(&m.todosCreated),
		TodosToggled:      atomic.LoadUint64(&m.todosToggled),
		TodosDeleted:      atomic.LoadUint64(&m.todosDeleted),
		TodoQuotaRejected: atomic.LoadUint64(&m.todoQuotaRejected),

		SubscriptionsActivated: atomic.LoadUint64(&m.subscriptionsActivated),
		SubscriptionsExpired:   atomic.LoadUint64(&m.subscriptionsExpired),
		ReconcileRuns:          atomic.LoadUint64(&m.reconcileRuns),
		ReconcileTotalNs:       atomic.LoadInt64(&m.reconcileTotalNs),

		WebhooksProvisioned: atomic.LoadUint64(&m.webhooksProvisioned),
		WebhooksIgnored:     atomic.LoadUint64(&m.webhooksIgnored),
		WebhooksDuplicate:   atomic.LoadUint64(&m.webhooksDuplicate),
		WebhooksRejected:    atomic.LoadUint64(&m.webhooksRejected),

		EventsPublished: atomic.LoadUint64(&m.eventsPublished),
		EventsDropped:   atomic.LoadUint64(&m.eventsDropped),
	}
}

// IncAuthDecision counts an authorization filter outcome.
func (m *InMemoryRecorder) IncAuthDecision(decision string) {
	switch decision {
	case DecisionPass:
		atomic.AddUint64(&m.authPass, 1)
	case DecisionSignIn:
		atomic.AddUint64(&m.authSignIn, 1)
	case DecisionDashboard:
		atomic.AddUint64(&m.authDashboard, 1)
	case DecisionAdminDashboard:
		atomic.AddUint64(&m.authAdminDashboard, 1)
	case DecisionError:
		atomic.AddUint64(&m.authError, 1)
	}
}

func (m *InMemoryRecorder) IncTodoCreated()       { atomic.AddUint64(&m.todosCreated, 1) }
func (m *InMemoryRecorder) IncTodoToggled()       { atomic.AddUint64(&m.todosToggled, 1) }
func (m *InMemoryRecorder) IncTodoDeleted()       { atomic.AddUint64(&m.todosDeleted, 1) }
func (m *InMemoryRecorder) IncTodoQuotaRejected() { atomic.AddUint64(&m.todoQuotaRejected, 1) }

// IncSubscriptionActivated increments the activation counter.
func (m *InMemoryRecorder) IncSubscriptionActivated() {
	atomic.AddUint64(&m.subscriptionsActivated, 1)
}

// AddSubscriptionsExpired adds n reconciled subscriptions.
func (m *InMemoryRecorder) AddSubscriptionsExpired(n int) {
	if n > 0 {
		atomic.AddUint64(&m.subscriptionsExpired, uint64(n))
	}
}

// ObserveReconcileDuration records one sweep.
func (m *InMemoryRecorder) ObserveReconcileDuration(duration time.Duration) {
	atomic.AddUint64(&m.reconcileRuns, 1)
	atomic.AddInt64(&m.reconcileTotalNs, duration.Nanoseconds())
}

// IncWebhookReceived counts a webhook delivery by outcome.
func (m *InMemoryRecorder) IncWebhookReceived(outcome string) {
	switch outcome {
	case WebhookProvisioned:
		atomic.AddUint64(&m.webhooksProvisioned, 1)
	case WebhookIgnored:
		atomic.AddUint64(&m.webhooksIgnored, 1)
	case WebhookDuplicate:
		atomic.AddUint64(&m.webhooksDuplicate, 1)
	case WebhookRejected:
		atomic.AddUint64(&m.webhooksRejected, 1)
	}
}

// IncEventPublished counts a domain event publish attempt.
func (m *InMemoryRecorder) IncEventPublished(status string) {
	if status == "success" {
		atomic.AddUint64(&m.eventsPublished, 1)
		return
	}
	atomic.AddUint64(&m.eventsDropped, 1)
}
