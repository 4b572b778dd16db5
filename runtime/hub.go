package runtime

import (
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"time"

	"studyhall/contract"
	"studyhall/domain"
	"studyhall/domain/event"
	"studyhall/errors"

	"github.com/abadojack/whatlanggo"
)

// Ensure *Hub satisfies the boundary the gateway depends on at compile
// time, so a signature drift surfaces here and not in the gateway.
var _ contract.IHub = (*Hub)(nil)

// task is one mailbox item: the command plus the sink of whoever
// submitted it, for replies and failures that must not be broadcast.
type task struct {
	cmd    domain.Command
	origin contract.EventSink
}

// Hub is the concurrency boundary of the room.
//
// All mutations flow through a single mailbox consumed by Run, so
// applying a command to the store and broadcasting its delta form one
// atomic step: the total order of broadcasts is the total order of
// mutation application, for every participant. Reads (history replay)
// also ride the mailbox, which makes a join atomic with respect to
// in-flight sends. Nothing here blocks on a slow consumer: deliveries
// are bounded by sinkTimeout and the sinks themselves drop when full.
type Hub struct {
	log         *slog.Logger
	messages    contract.IMessageLog
	registry    contract.IRegistry
	censor      contract.Censor
	mailbox     chan task
	maxAttempts int
	sinkTimeout time.Duration
}

func NewHub(log *slog.Logger, messages contract.IMessageLog, registry contract.IRegistry,
	censor contract.Censor, mailboxSize, maxAttempts int, sinkTimeout time.Duration) *Hub {
	return &Hub{
		log:         log,
		messages:    messages,
		registry:    registry,
		censor:      censor,
		mailbox:     make(chan task, mailboxSize),
		maxAttempts: maxAttempts,
		sinkTimeout: sinkTimeout,
	}
}

// Dispatch submits a command to the mailbox. It blocks when the mailbox
// is full rather than dropping: the websocket read pump provides natural
// backpressure per connection.
func (h *Hub) Dispatch(ctx context.Context, cmd domain.Command, origin contract.EventSink) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case h.mailbox <- task{cmd: cmd, origin: origin}:
		return nil
	}
}

// Leave removes a connection from fan-out. It bypasses the mailbox:
// ordering only matters for state mutations, and broadcasts iterate a
// registry snapshot anyway.
func (h *Hub) Leave(connectionID string) {
	h.registry.Leave(connectionID)
}

// Run consumes the mailbox until the context is canceled. It runs under
// the supervisor; a panic in a handler is recovered there and Run is
// restarted over the same mailbox, so pending commands survive.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.log.Debug("Stopping hub")
			return ctx.Err()
		case t, ok := <-h.mailbox:
			if !ok {
				return nil
			}
			h.handle(ctx, t)
		}
	}
}

func (h *Hub) handle(ctx context.Context, t task) {
	switch cmd := t.cmd.(type) {
	case domain.JoinCommand:
		h.handleJoin(ctx, cmd, t.origin)
	case domain.SendMessageCommand:
		h.handleSend(ctx, cmd, t.origin)
	case domain.ReactCommand:
		h.handleReact(ctx, cmd, t.origin)
	case domain.DeleteCommand:
		h.handleDelete(ctx, cmd, t.origin)
	default:
		h.log.Warn("Unknown command in mailbox", "command", t.cmd.Name())
	}
}

// handleJoin registers the connection and replays the full history to it.
// Registration and replay happen inside the same mailbox step, so the
// joiner misses nothing and duplicates nothing: every later mutation is
// broadcast after this step completes.
func (h *Hub) handleJoin(ctx context.Context, cmd domain.JoinCommand, origin contract.EventSink) {
	h.registry.Join(cmd.ConnectionID, cmd.Identity, origin)
	h.deliver(ctx, origin, event.HistoryReplayed{Messages: h.messages.History()})
	h.log.Info("Participant joined", "identity", cmd.Identity, "participants", h.registry.Count())
}

func (h *Hub) handleSend(ctx context.Context, cmd domain.SendMessageCommand, origin contract.EventSink) {
	if h.censor != nil {
		clean := h.censor.Censor(cmd.Body)
		if clean != cmd.Body {
			info := whatlanggo.Detect(cmd.Body)
			h.log.Warn("Message censored", "author", cmd.Author, "lang", info.Lang.Iso6391())
			cmd.Body = clean
		}
	}

	var msg domain.Message
	err := h.withRetry(cmd.Name(), func() error {
		var appendErr error
		msg, appendErr = h.messages.Append(cmd)
		return appendErr
	})
	if h.rejected(ctx, cmd.Name(), err, origin) {
		return
	}
	h.broadcast(ctx, event.MessageCreated{Message: msg})
}

func (h *Hub) handleReact(ctx context.Context, cmd domain.ReactCommand, origin contract.EventSink) {
	var reactions map[string][]string
	err := h.withRetry(cmd.Name(), func() error {
		var toggleErr error
		reactions, toggleErr = h.messages.ToggleReaction(cmd.MessageID, cmd.Symbol, cmd.Participant)
		return toggleErr
	})
	if h.rejected(ctx, cmd.Name(), err, origin) {
		return
	}
	h.broadcast(ctx, event.ReactionsUpdated{ID: cmd.MessageID, Reactions: reactions})
}

func (h *Hub) handleDelete(ctx context.Context, cmd domain.DeleteCommand, origin contract.EventSink) {
	var removed domain.Message
	err := h.withRetry(cmd.Name(), func() error {
		var removeErr error
		removed, removeErr = h.messages.Remove(cmd.MessageID)
		return removeErr
	})
	if h.rejected(ctx, cmd.Name(), err, origin) {
		return
	}
	h.broadcast(ctx, event.MessageDeleted{ID: removed.ID})
}

// withRetry reruns the mutation on transient store failures, a bounded
// number of times. Other errors pass through on the first attempt.
func (h *Hub) withRetry(name string, op func() error) error {
	var err error
	for attempt := 1; attempt <= h.maxAttempts; attempt++ {
		err = op()
		if err == nil || !goerrors.Is(err, errors.ErrStoreUnavailable) {
			return err
		}
		h.log.Warn("Transient store failure, retrying", "command", name, "attempt", attempt, "error", err)
	}
	return err
}

// rejected resolves a mutation error. NotFound is a silent no-op; a
// store failure is surfaced to the originator only. In both cases the
// broadcast is skipped entirely: no participant sees a partial update.
func (h *Hub) rejected(ctx context.Context, name string, err error, origin contract.EventSink) bool {
	switch {
	case err == nil:
		return false
	case goerrors.Is(err, errors.ErrMessageNotFound):
		h.log.Debug("Command targeted a missing message", "command", name)
		return true
	default:
		h.log.Error("Command failed after retries", "command", name, "error", err)
		h.deliver(ctx, origin, event.OperationFailed{Reason: fmt.Sprintf("%s failed, please retry", name)})
		return true
	}
}

// broadcast fans one delta out to a snapshot of the registered sinks.
func (h *Hub) broadcast(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range h.registry.Sinks() {
		h.deliver(ctx, sink, evt)
	}
}

func (h *Hub) deliver(ctx context.Context, sink contract.EventSink, evt event.DomainEvent) {
	if sink == nil {
		return
	}
	deliveryCtx, cancel := context.WithTimeout(ctx, h.sinkTimeout)
	defer cancel()
	if err := sink.Consume(deliveryCtx, evt); err != nil {
		h.log.Debug("Delivery dropped", "event", evt.EventName(), "error", err)
	}
}
