package messaging

import (
	"context"
	"sync"

	errs "postgrab/pkg/errors"
	"postgrab/pkg/logger"
)

// Handler services one request type.
type Handler func(ctx context.Context, req Request) Response

// EventSubscriber receives broadcast events.
type EventSubscriber func(Event)

// Bus routes requests to their registered handler and fans events out to
// subscribers. Delivery is synchronous; a subscriber that must not block the
// publisher should hand off to its own goroutine.
type Bus struct {
	mu          sync.RWMutex
	handlers    map[MessageType]Handler
	subscribers []EventSubscriber
	logger      logger.Logger
}

// NewBus creates an empty bus.
func NewBus(log logger.Logger) *Bus {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Bus{
		handlers: make(map[MessageType]Handler),
		logger:   log,
	}
}

// Handle registers the handler for a request type, replacing any previous one.
func (b *Bus) Handle(t MessageType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = h
}

// Request dispatches a request to its handler and returns the response.
// An unhandled type yields a failure response, never a panic.
func (b *Bus) Request(ctx context.Context, req Request) Response {
	b.mu.RLock()
	h, ok := b.handlers[req.Type]
	b.mu.RUnlock()

	if !ok {
		b.logger.WarnWithFields("no handler registered", map[string]interface{}{
			"type":       string(req.Type),
			"request_id": req.RequestID,
		})
		return Fail(req, errs.New(errs.KindUnavailable, "no handler for message type %q", req.Type))
	}
	if err := ctx.Err(); err != nil {
		return Fail(req, errs.Wrap(errs.KindTimeout, err, "request cancelled"))
	}
	return h(ctx, req)
}

// Subscribe registers an event subscriber.
func (b *Bus) Subscribe(s EventSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, s)
}

// Publish delivers an event to every subscriber in registration order.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()
	for _, s := range subs {
		s(ev)
	}
}

// PublishType is a convenience wrapper that marshals and publishes in one
// call, logging instead of failing when the payload cannot be encoded.
func (b *Bus) PublishType(t MessageType, payload interface{}) {
	ev, err := NewEvent(t, payload)
	if err != nil {
		b.logger.WithError(err).Error("failed to encode event payload")
		return
	}
	b.Publish(ev)
}
