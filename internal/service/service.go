// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/tasklane/tasklane/internal/model"
)

// Service errors.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrTodoNotFound         = errors.New("todo not found")
	ErrForbidden            = errors.New("forbidden access")
	ErrQuotaExceeded        = errors.New("todo quota exceeded")
	ErrMissingTitle         = errors.New("title is required")
	ErrTitleTooLong         = errors.New("title is too long")
	ErrMissingTodoID        = errors.New("missing todo id")
	ErrPrimaryEmailNotFound = errors.New("primary email not found")
	ErrEmailTaken           = errors.New("email already belongs to another user")
	ErrActivityUnavailable  = errors.New("activity feed not available")
)

// QuotaMessage is the caller-facing text for ErrQuotaExceeded.
const QuotaMessage = "You have reached the limit of 5 todos. Please subscribe to the premium plan to create more todos."

// EventSink receives domain events once a change has committed.
type EventSink interface {
	Emit(event model.Event)
	EmitSync(ctx context.Context, event model.Event)
}

type nopSink struct{}

func (nopSink) Emit(model.Event)                      {}
func (nopSink) EmitSync(context.Context, model.Event) {}

// Clock returns the current time.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }
