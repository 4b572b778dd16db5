package domain

import (
	"time"

	"github.com/google/uuid"
)

// Command is one unit of work submitted to the hub's mailbox.
type Command interface {
	Name() string
}

// JoinCommand registers a connection and triggers a history replay
// addressed to that connection only.
type JoinCommand struct {
	ConnectionID string
	Identity     string
}

func (JoinCommand) Name() string { return "join" }

// SendMessageCommand appends a new message to the room log.
type SendMessageCommand struct {
	Author     string
	Body       string
	Attachment *string
	ReplyTo    *uuid.UUID
	CreatedAt  time.Time
}

func (SendMessageCommand) Name() string { return "sendMessage" }

// ReactCommand toggles a participant's reaction on an existing message.
type ReactCommand struct {
	MessageID   uuid.UUID
	Symbol      string
	Participant string
}

func (ReactCommand) Name() string { return "reactToMessage" }

// DeleteCommand removes a message from the served history.
type DeleteCommand struct {
	MessageID uuid.UUID
}

func (DeleteCommand) Name() string { return "deleteMessage" }
