// Package domain contains core concepts of the chat room.
// This file defines Message entities and their mutation rules.
// Messages carry mutable reaction state; everything else is immutable.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// snippetMaxRunes bounds the reply preview carried by threaded messages.
const snippetMaxRunes = 80

// ReplySummary is the immutable preview of a replied-to message,
// captured once when the reply is appended. Deleting the target later
// does not rewrite summaries already handed out.
type ReplySummary struct {
	ID     uuid.UUID `json:"id"`
	Author string    `json:"author"`
	Text   string    `json:"text"`
}

// Message is one entry of the room log.
//
// Reactions map a symbol to the participants currently holding it.
// Membership is a set: a participant appears at most once per symbol,
// and symbols with no holders are pruned immediately.
type Message struct {
	ID         uuid.UUID           `json:"id"`
	Author     string              `json:"author"`
	Body       string              `json:"text"`
	Attachment *string             `json:"image"`
	CreatedAt  time.Time           `json:"createdAt"`
	Reactions  map[string][]string `json:"reactions"`
	ReplyTo    *ReplySummary       `json:"repliedToMessage"`
	Deleted    bool                `json:"-"`
}

// Summary builds the preview a reply to this message will carry.
func (m Message) Summary() ReplySummary {
	body := []rune(m.Body)
	if len(body) > snippetMaxRunes {
		body = body[:snippetMaxRunes]
	}
	return ReplySummary{ID: m.ID, Author: m.Author, Text: string(body)}
}

// ToggleReaction flips the participant's membership for the given symbol.
// Adding is idempotent per (symbol, participant); removing the last holder
// deletes the symbol entirely so empty sets never linger.
func (m *Message) ToggleReaction(symbol, participant string) {
	if m.Reactions == nil {
		m.Reactions = make(map[string][]string)
	}
	holders := m.Reactions[symbol]
	for i, p := range holders {
		if p == participant {
			holders = append(holders[:i], holders[i+1:]...)
			if len(holders) == 0 {
				delete(m.Reactions, symbol)
			} else {
				m.Reactions[symbol] = holders
			}
			return
		}
	}
	m.Reactions[symbol] = append(holders, participant)
}

// Clone returns a deep copy that is safe to hand to other goroutines
// while the original keeps being mutated under the store's locks.
func (m Message) Clone() Message {
	out := m
	out.Reactions = CloneReactions(m.Reactions)
	if m.ReplyTo != nil {
		summary := *m.ReplyTo
		out.ReplyTo = &summary
	}
	if m.Attachment != nil {
		attachment := *m.Attachment
		out.Attachment = &attachment
	}
	return out
}

// CloneReactions deep-copies a reaction map. A nil input yields an empty,
// non-nil map so the wire representation is always an object.
func CloneReactions(reactions map[string][]string) map[string][]string {
	out := make(map[string][]string, len(reactions))
	for symbol, holders := range reactions {
		out[symbol] = append([]string(nil), holders...)
	}
	return out
}
