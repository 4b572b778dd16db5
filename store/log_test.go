package store

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"studyhall/domain"
	"studyhall/errors"
	"studyhall/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// memoryRepo keeps records in a map; failures are injected per call.
type memoryRepo struct {
	mu      sync.Mutex
	records map[string]repositories.DiskMessage
	failFor int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: make(map[string]repositories.DiskMessage)}
}

func (r *memoryRepo) StoreMessage(message repositories.DiskMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor > 0 {
		r.failFor--
		return errors.ErrStoreUnavailable
	}
	r.records[string(message.Key())] = message
	return nil
}

func (r *memoryRepo) DeleteMessage(message repositories.DiskMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, string(message.Key()))
	return nil
}

func (r *memoryRepo) LoadAll() ([]repositories.DiskMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]repositories.DiskMessage, 0, len(r.records))
	for _, m := range r.records {
		out = append(out, m)
	}
	return out, nil
}

func newTestLog() *Log {
	return NewLog(newMemoryRepo(), slog.Default())
}

func Test_Append_Keeps_Timestamps_Monotonic(t *testing.T) {
	req := require.New(t)
	log := newTestLog()

	// Given a first message with a timestamp in the future
	late := time.Now().UTC().Add(time.Hour)
	first, err := log.Append(domain.SendMessageCommand{Author: "alice", Body: "first", CreatedAt: late})
	req.NoError(err)

	// When a second message arrives with an earlier clock reading
	second, err := log.Append(domain.SendMessageCommand{Author: "bob", Body: "second", CreatedAt: late.Add(-time.Minute)})
	req.NoError(err)

	// Then insertion order never shows time going backwards
	req.False(second.CreatedAt.Before(first.CreatedAt))
}

func Test_History_Preserves_Insertion_Order(t *testing.T) {
	req := require.New(t)
	log := newTestLog()

	for _, body := range []string{"one", "two", "three"} {
		_, err := log.Append(domain.SendMessageCommand{Author: "alice", Body: body})
		req.NoError(err)
	}

	history := log.History()
	req.Len(history, 3)
	req.Equal("one", history[0].Body)
	req.Equal("two", history[1].Body)
	req.Equal("three", history[2].Body)
}

func Test_ToggleReaction_Round_Trips(t *testing.T) {
	req := require.New(t)
	log := newTestLog()
	msg, err := log.Append(domain.SendMessageCommand{Author: "alice", Body: "hi"})
	req.NoError(err)

	// When bob toggles the same symbol twice
	reactions, err := log.ToggleReaction(msg.ID, "👍", "bob")
	req.NoError(err)
	req.Equal(map[string][]string{"👍": {"bob"}}, reactions)

	reactions, err = log.ToggleReaction(msg.ID, "👍", "bob")
	req.NoError(err)

	// Then the reaction state is back to the original, with no empty set left
	req.Empty(reactions)
	req.NotContains(reactions, "👍")
}

func Test_Concurrent_Distinct_Participants_Both_Persist(t *testing.T) {
	req := require.New(t)
	log := newTestLog()
	msg, err := log.Append(domain.SendMessageCommand{Author: "alice", Body: "hi"})
	req.NoError(err)

	participants := []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8"}
	var wg sync.WaitGroup
	for _, p := range participants {
		wg.Add(1)
		go func(participant string) {
			defer wg.Done()
			_, err := log.ToggleReaction(msg.ID, "👍", participant)
			require.NoError(t, err)
		}(p)
	}
	wg.Wait()

	history := log.History()
	req.Len(history, 1)
	req.ElementsMatch(participants, history[0].Reactions["👍"])
}

func Test_Remove_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	log := newTestLog()
	msg, err := log.Append(domain.SendMessageCommand{Author: "alice", Body: "hi"})
	req.NoError(err)

	// First removal returns the message
	removed, err := log.Remove(msg.ID)
	req.NoError(err)
	req.Equal(msg.ID, removed.ID)
	req.Empty(log.History())

	// Second removal reports NotFound without side effects
	_, err = log.Remove(msg.ID)
	req.ErrorIs(err, errors.ErrMessageNotFound)
	req.Empty(log.History())
	req.Zero(log.Len())
}

func Test_Reactions_On_Deleted_Message_Are_Rejected(t *testing.T) {
	req := require.New(t)
	log := newTestLog()
	msg, err := log.Append(domain.SendMessageCommand{Author: "alice", Body: "hi"})
	req.NoError(err)
	_, err = log.Remove(msg.ID)
	req.NoError(err)

	_, err = log.ToggleReaction(msg.ID, "👍", "bob")
	req.ErrorIs(err, errors.ErrMessageNotFound)
}

func Test_Reply_Summary_Is_Captured_At_Append(t *testing.T) {
	req := require.New(t)
	log := newTestLog()
	target, err := log.Append(domain.SendMessageCommand{Author: "alice", Body: "original thought"})
	req.NoError(err)

	reply, err := log.Append(domain.SendMessageCommand{Author: "bob", Body: "agreed", ReplyTo: &target.ID})
	req.NoError(err)
	req.NotNil(reply.ReplyTo)
	req.Equal("original thought", reply.ReplyTo.Text)

	// Deleting the target does not rewrite the captured summary
	_, err = log.Remove(target.ID)
	req.NoError(err)
	history := log.History()
	req.Len(history, 1)
	req.Equal("original thought", history[0].ReplyTo.Text)
}

func Test_Reply_To_Removed_Target_Uses_Tombstone(t *testing.T) {
	req := require.New(t)
	log := newTestLog()
	target, err := log.Append(domain.SendMessageCommand{Author: "alice", Body: "soon gone"})
	req.NoError(err)
	_, err = log.Remove(target.ID)
	req.NoError(err)

	// A reply to a tombstoned id is accepted and carries its snippet
	reply, err := log.Append(domain.SendMessageCommand{Author: "bob", Body: "too late", ReplyTo: &target.ID})
	req.NoError(err)
	req.NotNil(reply.ReplyTo)
	req.Equal("soon gone", reply.ReplyTo.Text)

	// A reply to an id that never existed is rejected
	unknown := uuid.New()
	_, err = log.Append(domain.SendMessageCommand{Author: "bob", Body: "nope", ReplyTo: &unknown})
	req.ErrorIs(err, errors.ErrMessageNotFound)
}

func Test_Failed_Persistence_Leaves_No_Trace(t *testing.T) {
	req := require.New(t)
	repo := newMemoryRepo()
	log := NewLog(repo, slog.Default())

	repo.failFor = 1
	_, err := log.Append(domain.SendMessageCommand{Author: "alice", Body: "hi"})
	req.ErrorIs(err, errors.ErrStoreUnavailable)
	req.Empty(log.History())

	// The next attempt goes through once the store is back
	_, err = log.Append(domain.SendMessageCommand{Author: "alice", Body: "hi"})
	req.NoError(err)
	req.Len(log.History(), 1)
}

func Test_Rehydrate_Restores_History_Across_Restarts(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()
	repository := repositories.NewMessageRepository(db, slog.Default())

	first := NewLog(repository, slog.Default())
	msg, err := first.Append(domain.SendMessageCommand{Author: "alice", Body: "durable"})
	req.NoError(err)
	_, err = first.ToggleReaction(msg.ID, "🎉", "bob")
	req.NoError(err)

	// A fresh arena over the same database sees the same state
	second := NewLog(repository, slog.Default())
	req.NoError(second.Rehydrate())
	history := second.History()
	req.Len(history, 1)
	req.Equal(msg.ID, history[0].ID)
	req.Equal(map[string][]string{"🎉": {"bob"}}, history[0].Reactions)
}
