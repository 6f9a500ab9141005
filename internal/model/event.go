package model

import "time"

// EventType names a domain event.
type EventType string

const (
	EventUserProvisioned      EventType = "user.provisioned"
	EventTodoCreated          EventType = "todo.created"
	EventTodoToggled          EventType = "todo.toggled"
	EventTodoDeleted          EventType = "todo.deleted"
	EventSubscriptionActivate EventType = "subscription.activated"
	EventSubscriptionExpired  EventType = "subscription.expired"
)

// Event is a domain event published after a state change commits.
type Event struct {
	ID         string            `json:"id,omitempty"`
	Type       EventType         `json:"type"`
	UserID     string            `json:"userId"`
	TodoID     string            `json:"todoId,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// NewEvent builds an event stamped with the current UTC time.
func NewEvent(t EventType, userID string) Event {
	return Event{Type: t, UserID: userID, OccurredAt: time.Now().UTC()}
}

// WithTodo sets the todo reference.
func (e Event) WithTodo(todoID string) Event {
	e.TodoID = todoID
	return e
}

// With adds an attribute.
func (e Event) With(key, value string) Event {
	attrs := make(map[string]string, len(e.Attributes)+1)
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	attrs[key] = value
	e.Attributes = attrs
	return e
}
