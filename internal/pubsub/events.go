// Package pubsub provides a generic publish/subscribe event system.
// It carries UI-local notifications (context-apply broadcasts, dispatch
// diagnostics, state changes, log lines) that are fire-and-forget by nature:
// listeners may attach and detach at any time and a full listener drops events.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	CreatedEvent EventType = "created"
	UpdatedEvent EventType = "updated"
	DeletedEvent EventType = "deleted"
	// AppliedEvent marks a reducer side-channel notification (e.g. context apply).
	AppliedEvent EventType = "applied"
	// ExpiredEvent marks a locally tracked request that timed out.
	ExpiredEvent EventType = "expired"
	// DroppedEvent marks an inbound envelope dropped by the dispatcher.
	DroppedEvent EventType = "dropped"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
