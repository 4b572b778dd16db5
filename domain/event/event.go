// Package event defines the deltas broadcast to connected participants.
// Event names double as the outbound wire event types.
package event

import (
	"encoding/json"

	"studyhall/domain"

	"github.com/google/uuid"
)

type DomainEvent interface {
	EventName() string
}

// MessageCreated is broadcast to every participant after a send. On the
// wire its payload is the message itself.
type MessageCreated struct {
	Message domain.Message
}

func (MessageCreated) EventName() string { return "chatMessage" }

func (e MessageCreated) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Message)
}

// ReactionsUpdated carries the full reaction state of one message after
// a toggle, so every view converges regardless of arrival order.
type ReactionsUpdated struct {
	ID        uuid.UUID           `json:"id"`
	Reactions map[string][]string `json:"reactions"`
}

func (ReactionsUpdated) EventName() string { return "updateReactions" }

// MessageDeleted is broadcast to every participant after a removal.
type MessageDeleted struct {
	ID uuid.UUID `json:"id"`
}

func (MessageDeleted) EventName() string { return "messageDeleted" }

// HistoryReplayed is delivered once, to a joining participant only.
type HistoryReplayed struct {
	Messages []domain.Message `json:"messages"`
}

func (HistoryReplayed) EventName() string { return "chatHistory" }

// OperationFailed is delivered to the originating participant only,
// never broadcast.
type OperationFailed struct {
	Reason string `json:"reason"`
}

func (OperationFailed) EventName() string { return "error" }
