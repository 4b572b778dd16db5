package contract

import (
	"context"
	"reflect"
	"time"

	"studyhall/domain"
	"studyhall/domain/event"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// initialization or lifecycle events, avoiding the need for manual
// naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives one delta. Implementations must not block longer
// than the context allows; a slow or gone consumer only loses its own
// delivery.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry tracks the live connections of the room.
type IRegistry interface {
	Join(connectionID, identity string, sink EventSink)
	Leave(connectionID string)
	Count() int
	Sinks() []EventSink
}

// IMessageLog is the single source of truth for the room's messages.
type IMessageLog interface {
	Append(cmd domain.SendMessageCommand) (domain.Message, error)
	History() []domain.Message
	ToggleReaction(id uuid.UUID, symbol, participant string) (map[string][]string, error)
	Remove(id uuid.UUID) (domain.Message, error)
	Len() int
}

// IHub is the boundary the session gateway talks to.
type IHub interface {
	Worker
	Dispatch(ctx context.Context, cmd domain.Command, origin EventSink) error
	Leave(connectionID string)
}

// Censor rewrites a message body before it is appended.
type Censor interface {
	Censor(body string) string
}

// Clock is injected where deterministic timestamps matter in tests.
type Clock func() time.Time
