package handler

import (
	"fmt"
	"net/http"

	"github.com/tasklane/tasklane/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	for _, d := range []struct {
		label string
		value uint64
	}{
		{metrics.DecisionPass, snap.AuthPass},
		{metrics.DecisionSignIn, snap.AuthSignIn},
		{metrics.DecisionDashboard, snap.AuthDashboard},
		{metrics.DecisionAdminDashboard, snap.AuthAdminDashboard},
		{metrics.DecisionError, snap.AuthError},
	} {
		writeMetric(w, "tasklane_auth_decisions_total{decision=%q} %d\n", d.label, d.value)
	}

	writeMetric(w, "tasklane_todos_created_total %d\n", snap.TodosCreated)
	writeMetric(w, "tasklane_todos_toggled_total %d\n", snap.TodosToggled)
	writeMetric(w, "tasklane_todos_deleted_total %d\n", snap.TodosDeleted)
	writeMetric(w, "tasklane_todo_quota_rejections_total %d\n", snap.TodoQuotaRejected)

	writeMetric(w, "tasklane_subscriptions_activated_total %d\n", snap.SubscriptionsActivated)
	writeMetric(w, "tasklane_subscriptions_expired_total %d\n", snap.SubscriptionsExpired)
	writeMetric(w, "tasklane_reconcile_duration_seconds_count %d\n", snap.ReconcileRuns)
	writeMetric(w, "tasklane_reconcile_duration_seconds_sum %.6f\n", float64(snap.ReconcileTotalNs)/1e9)

	for _, o := range []struct {
		label string
		value uint64
	}{
		{metrics.WebhookProvisioned, snap.WebhooksProvisioned},
		{metrics.WebhookIgnored, snap.WebhooksIgnored},
		{metrics.WebhookDuplicate, snap.WebhooksDuplicate},
		{metrics.WebhookRejected, snap.WebhooksRejected},
	} {
		writeMetric(w, "tasklane_webhooks_total{outcome=%q} %d\n", o.label, o.value)
	}

	writeMetric(w, "tasklane_events_published_total{status=\"success\"} %d\n", snap.EventsPublished)
	writeMetric(w, "tasklane_events_published_total{status=\"dropped\"} %d\n", snap.EventsDropped)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
