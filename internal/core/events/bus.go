package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a change to a user's ledger.
type Event interface {
	EventType() string
	EventID() string
	OccurredAt() time.Time
	// AffectedUser is the owner of the changed rows.
	AffectedUser() int64
}

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	UserID    int64     `json:"user_id"`
}

func newBase(eventType string, userID int64) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		UserID:    userID,
	}
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) EventID() string {
	return e.ID
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

func (e BaseEvent) AffectedUser() int64 {
	return e.UserID
}

type Handler func(ctx context.Context, event Event) error

type EventBus struct {
	handlers map[string][]Handler
	logger   *slog.Logger
	mu       sync.RWMutex
}

func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

func (eb *EventBus) Subscribe(eventType string, handler Handler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
	eb.logger.Debug("event handler registered",
		"event_type", eventType,
		"total_handlers", len(eb.handlers[eventType]))
}

// handlersFor returns a snapshot of the event's handlers and a logger tagged with the event.
func (eb *EventBus) handlersFor(event Event) ([]Handler, *slog.Logger) {
	eb.mu.RLock()
	handlers := append([]Handler(nil), eb.handlers[event.EventType()]...)
	eb.mu.RUnlock()

	lg := eb.logger.With(
		"event_type", event.EventType(),
		"event_id", event.EventID(),
		"user_id", event.AffectedUser())
	if len(handlers) == 0 {
		lg.Debug("no handlers for event type")
	}
	return handlers, lg
}

// Publish fans the event out to its handlers in the background. Handlers outlive the request that
// published the event.
func (eb *EventBus) Publish(ctx context.Context, event Event) error {
	handlers, lg := eb.handlersFor(event)
	if len(handlers) == 0 {
		return nil
	}
	lg.Debug("publishing event", "handlers_count", len(handlers))

	ctx = context.WithoutCancel(ctx)
	for _, handler := range handlers {
		go func(h Handler) {
			if err := h(ctx, event); err != nil {
				lg.Error("event handler failed", "error", err)
			}
		}(handler)
	}
	return nil
}

// PublishSync runs every handler in registration order on the caller's goroutine. A failing
// handler does not stop the others; all failures are joined into the returned error.
func (eb *EventBus) PublishSync(ctx context.Context, event Event) error {
	handlers, lg := eb.handlersFor(event)
	if len(handlers) == 0 {
		return nil
	}
	lg.Debug("publishing event synchronously", "handlers_count", len(handlers))

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			lg.Error("event handler failed", "error", err)
			errs = append(errs, fmt.Errorf("handler failed for event %s: %w", event.EventType(), err))
		}
	}
	return errors.Join(errs...)
}

// Publisher is the publishing side of the bus, accepted by services that emit events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	PublishSync(ctx context.Context, event Event) error
}
