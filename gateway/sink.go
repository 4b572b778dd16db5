package gateway

import (
	"context"

	"studyhall/domain/event"
)

// Sink bridges the room's fan-out to one connection's write pump.
type Sink struct {
	events chan event.DomainEvent
}

func NewSink(bufferSize int) *Sink {
	return &Sink{events: make(chan event.DomainEvent, bufferSize)}
}

// Consume redirects the event to the owning connection's channel.
// A full buffer drops the delivery for this consumer only; the room
// never waits on a slow reader.
func (s *Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// Events exposes the channel for the write pump.
func (s *Sink) Events() <-chan event.DomainEvent {
	return s.events
}
