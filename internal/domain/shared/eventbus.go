package shared

import "context"

// EventHandler handles domain events
type EventHandler interface {
	// Handle processes a domain event
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes returns the event types this handler is interested in.
	// An empty slice means the handler receives all events.
	EventTypes() []string
}

// EventPublisher publishes domain events
type EventPublisher interface {
	// Publish publishes one or more domain events
	Publish(ctx context.Context, events ...DomainEvent) error
}

// NoOpEventPublisher discards all events. Useful for tests and for hosts
// that wire no event consumers.
type NoOpEventPublisher struct{}

// Publish discards the events
func (NoOpEventPublisher) Publish(context.Context, ...DomainEvent) error { return nil }

var _ EventPublisher = (*NoOpEventPublisher)(nil)
