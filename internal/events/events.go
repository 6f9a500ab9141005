// Package events publishes domain events after state changes commit.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tasklane/tasklane/internal/metrics"
	"github.com/tasklane/tasklane/internal/model"
)

// PublishTimeout bounds one asynchronous publish.
const PublishTimeout = 2 * time.Second

// Publisher delivers domain events to a backend.
type Publisher interface {
	Publish(ctx context.Context, event model.Event) error
	Close() error
}

// Reader lists recently published events, newest first.
type Reader interface {
	Recent(ctx context.Context, limit int64) ([]model.Event, error)
}

// Emitter publishes events without blocking request handling.
// Failures are logged and counted, never returned.
type Emitter struct {
	publisher Publisher
	logger    *slog.Logger
	metrics   metrics.Recorder
	inflight  sync.WaitGroup
}

// NewEmitter wraps a Publisher.
func NewEmitter(publisher Publisher, logger *slog.Logger, recorder metrics.Recorder) *Emitter {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Emitter{
		publisher: publisher,
		logger:    logger.With("component", "events.emitter"),
		metrics:   recorder,
	}
}

// Emit publishes event in the background.
func (e *Emitter) Emit(event model.Event) {
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()
		e.publish(ctx, event)
	}()
}

// Drain waits for background publishes started by Emit. It must run
// before the publisher is closed.
func (e *Emitter) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EmitSync publishes event and waits for the outcome. Used by the
// scheduler, which already runs off the request path.
func (e *Emitter) EmitSync(ctx context.Context, event model.Event) {
	ctx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()
	e.publish(ctx, event)
}

func (e *Emitter) publish(ctx context.Context, event model.Event) {
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Warn("event_publish_failed",
			"event_type", event.Type,
			"user_id", event.UserID,
			"error", err,
		)
		e.metrics.IncEventPublished("dropped")
		return
	}
	e.metrics.IncEventPublished("success")
}

// LogPublisher writes events to the log. It is the fallback when no
// broker is configured or reachable.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With("component", "events.log")}
}

// Publish logs the event.
func (p *LogPublisher) Publish(ctx context.Context, event model.Event) error {
	p.logger.InfoContext(ctx, "domain_event",
		"event_type", event.Type,
		"user_id", event.UserID,
		"todo_id", event.TodoID,
		"attributes", event.Attributes,
	)
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error { return nil }
