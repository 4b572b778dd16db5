// Package store owns the canonical room log: insertion order, per-message
// mutable state, and write-through persistence. It contains no networking
// and no broadcast logic.
package store

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"studyhall/domain"
	"studyhall/errors"
	"studyhall/repositories"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// entry pairs a message with its own lock so mutations on different
// messages never block each other. Lock ordering is always Log.mu before
// entry.mu.
type entry struct {
	mu  sync.Mutex
	msg domain.Message
}

// Log is the single source of truth for the room's messages.
//
// The index lock guards insertion order and id lookup; each entry lock
// serializes mutations of that one message. Deletion takes the index
// lock because it changes what History serves. Reads are snapshots and
// never wait on the mailbox or on unrelated writers.
type Log struct {
	mu         sync.RWMutex
	order      []uuid.UUID
	entries    map[uuid.UUID]*entry
	tombstones int
	lastAt     time.Time

	repo repositories.IMessageRepository
	log  *slog.Logger
	now  func() time.Time
}

func NewLog(repo repositories.IMessageRepository, log *slog.Logger) *Log {
	return &Log{
		entries: make(map[uuid.UUID]*entry),
		repo:    repo,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Rehydrate rebuilds the in-memory arena from the durable log. Called
// once at boot, before any writer exists.
func (l *Log) Rehydrate() error {
	stored, err := l.repo.LoadAll()
	if err != nil {
		return fmt.Errorf("rehydrating room log: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, msg := range FromDiskMessages(stored) {
		l.entries[msg.ID] = &entry{msg: msg}
		l.order = append(l.order, msg.ID)
		if msg.CreatedAt.After(l.lastAt) {
			l.lastAt = msg.CreatedAt
		}
	}
	l.log.Info("room log rehydrated", "messages", len(stored))
	return nil
}

// Append constructs and stores a new message. The timestamp is clamped so
// CreatedAt never decreases in insertion order, the reply summary is
// captured immutably here, and the durable write happens before the
// in-memory commit: a failed append leaves no trace.
//
// A reply target must exist, live or tombstoned. Replies to removed
// messages keep the summary captured from the tombstone.
func (l *Log) Append(cmd domain.SendMessageCommand) (domain.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var reply *domain.ReplySummary
	if cmd.ReplyTo != nil {
		target, ok := l.entries[*cmd.ReplyTo]
		if !ok {
			return domain.Message{}, errors.ErrMessageNotFound
		}
		summary := target.msg.Summary()
		reply = &summary
	}

	at := cmd.CreatedAt
	if at.IsZero() {
		at = l.now()
	}
	if at.Before(l.lastAt) {
		at = l.lastAt
	}

	msg := domain.Message{
		ID:         uuid.New(),
		Author:     cmd.Author,
		Body:       cmd.Body,
		Attachment: cmd.Attachment,
		CreatedAt:  at,
		Reactions:  make(map[string][]string),
		ReplyTo:    reply,
	}

	if err := l.repo.StoreMessage(toDisk(msg)); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	l.entries[msg.ID] = &entry{msg: msg}
	l.order = append(l.order, msg.ID)
	l.lastAt = at
	return msg.Clone(), nil
}

// History returns all non-deleted messages in insertion order, each with
// its current reaction state. The index lock is released before entry
// locks are taken, so a long history copy never stalls appends.
func (l *Log) History() []domain.Message {
	l.mu.RLock()
	snapshot := make([]*entry, 0, len(l.order))
	for _, id := range l.order {
		snapshot = append(snapshot, l.entries[id])
	}
	l.mu.RUnlock()

	history := make([]domain.Message, 0, len(snapshot))
	for _, e := range snapshot {
		e.mu.Lock()
		if !e.msg.Deleted {
			history = append(history, e.msg.Clone())
		}
		e.mu.Unlock()
	}
	return history
}

// ToggleReaction applies a genuine set toggle for (symbol, participant).
// Two participants toggling the same symbol concurrently are serialized
// on the entry lock and both survive. The updated state is persisted
// before it becomes visible; a failed write leaves the old state.
func (l *Log) ToggleReaction(id uuid.UUID, symbol, participant string) (map[string][]string, error) {
	e, ok := l.lookup(id)
	if !ok {
		return nil, errors.ErrMessageNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.msg.Deleted {
		return nil, errors.ErrMessageNotFound
	}

	next := e.msg.Clone()
	next.ToggleReaction(symbol, participant)
	if err := l.repo.StoreMessage(toDisk(next)); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	e.msg = next
	return domain.CloneReactions(next.Reactions), nil
}

// Remove hard-deletes the message from the durable log and leaves an
// in-memory tombstone so late operations against the id resolve cleanly.
// Idempotent: removing a tombstoned or unknown id reports NotFound with
// no side effects.
func (l *Log) Remove(id uuid.UUID) (domain.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[id]
	if !ok {
		return domain.Message{}, errors.ErrMessageNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.msg.Deleted {
		return domain.Message{}, errors.ErrMessageNotFound
	}

	if err := l.repo.DeleteMessage(toDisk(e.msg)); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	e.msg.Deleted = true
	l.tombstones++
	return e.msg.Clone(), nil
}

// Len reports the number of live messages, for stats only.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order) - l.tombstones
}

func (l *Log) lookup(id uuid.UUID) (*entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[id]
	return e, ok
}

func toDisk(msg domain.Message) repositories.DiskMessage {
	var reply *repositories.DiskReply
	if msg.ReplyTo != nil {
		reply = &repositories.DiskReply{ID: msg.ReplyTo.ID, Author: msg.ReplyTo.Author, Text: msg.ReplyTo.Text}
	}
	return repositories.DiskMessage{
		ID:         msg.ID,
		Author:     msg.Author,
		Body:       msg.Body,
		Attachment: msg.Attachment,
		Reactions:  msg.Reactions,
		ReplyTo:    reply,
		At:         msg.CreatedAt,
	}
}

func fromDisk(dm repositories.DiskMessage) domain.Message {
	var reply *domain.ReplySummary
	if dm.ReplyTo != nil {
		reply = &domain.ReplySummary{ID: dm.ReplyTo.ID, Author: dm.ReplyTo.Author, Text: dm.ReplyTo.Text}
	}
	return domain.Message{
		ID:         dm.ID,
		Author:     dm.Author,
		Body:       dm.Body,
		Attachment: dm.Attachment,
		CreatedAt:  dm.At,
		Reactions:  domain.CloneReactions(dm.Reactions),
		ReplyTo:    reply,
	}
}

// FromDiskMessages converts a stored batch, preserving order.
func FromDiskMessages(stored []repositories.DiskMessage) []domain.Message {
	return lo.Map(stored, func(dm repositories.DiskMessage, _ int) domain.Message {
		return fromDisk(dm)
	})
}
