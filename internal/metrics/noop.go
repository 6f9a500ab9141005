package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncAuthDecision(decision string)                 {}
func (n *NoopRecorder) IncTodoCreated()                                 {}
func (n *NoopRecorder) IncTodoToggled()                                 {}
func (n *NoopRecorder) IncTodoDeleted()                                 {}
func (n *NoopRecorder) IncTodoQuotaRejected()                           {}
func (n *NoopRecorder) IncSubscriptionActivated()                       {}
func (n *NoopRecorder) AddSubscriptionsExpired(count int)               {}
func (n *NoopRecorder) ObserveReconcileDuration(duration time.Duration) {}
func (n *NoopRecorder) IncWebhookReceived(outcome string)               {}
func (n *NoopRecorder) IncEventPublished(status string)                 {}
