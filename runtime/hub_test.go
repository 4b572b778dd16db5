package runtime

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"studyhall/contract"
	"studyhall/domain"
	"studyhall/domain/event"
	"studyhall/errors"
	"studyhall/repositories"
	"studyhall/store"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

// recordSink captures every delivered event, in order.
type recordSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *recordSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordSink) snapshot() []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.DomainEvent(nil), s.events...)
}

func (s *recordSink) names() []string {
	return lo.Map(s.snapshot(), func(e event.DomainEvent, _ int) string {
		return e.EventName()
	})
}

// fakeRepo is an in-memory repository with injectable transient failures.
type fakeRepo struct {
	mu       sync.Mutex
	failures int
	records  map[string]repositories.DiskMessage
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]repositories.DiskMessage)}
}

func (r *fakeRepo) StoreMessage(m repositories.DiskMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return errors.ErrStoreUnavailable
	}
	r.records[string(m.Key())] = m
	return nil
}

func (r *fakeRepo) DeleteMessage(m repositories.DiskMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, string(m.Key()))
	return nil
}

func (r *fakeRepo) LoadAll() ([]repositories.DiskMessage, error) {
	return nil, nil
}

type maskCensor struct{}

func (maskCensor) Censor(body string) string {
	return strings.ReplaceAll(body, "rubbish", "*******")
}

func startHub(t *testing.T, repo repositories.IMessageRepository, censor contract.Censor) (*Hub, context.Context) {
	t.Helper()
	messages := store.NewLog(repo, slog.Default())
	hub := NewHub(slog.Default(), messages, NewRegistry(), censor, 32, 3, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Run(ctx) }()
	return hub, ctx
}

func join(t *testing.T, ctx context.Context, hub *Hub, identity string) *recordSink {
	t.Helper()
	sink := &recordSink{}
	require.NoError(t, hub.Dispatch(ctx, domain.JoinCommand{ConnectionID: uuid.NewString(), Identity: identity}, sink))
	require.Eventually(t, func() bool { return len(sink.names()) >= 1 }, waitFor, tick)
	return sink
}

func lastCreated(sink *recordSink) (domain.Message, bool) {
	for _, e := range sink.snapshot() {
		if created, ok := e.(event.MessageCreated); ok {
			return created.Message, true
		}
	}
	return domain.Message{}, false
}

func Test_Broadcast_Order_Matches_Mutation_Order(t *testing.T) {
	req := require.New(t)
	hub, ctx := startHub(t, newFakeRepo(), nil)

	alice := join(t, ctx, hub, "alice")
	bob := join(t, ctx, hub, "bob")

	// When a send, a react and a delete are applied in that order
	req.NoError(hub.Dispatch(ctx, domain.SendMessageCommand{Author: "alice", Body: "hi"}, alice))
	req.Eventually(func() bool { _, ok := lastCreated(alice); return ok }, waitFor, tick)
	created, _ := lastCreated(alice)

	req.NoError(hub.Dispatch(ctx, domain.ReactCommand{MessageID: created.ID, Symbol: "👍", Participant: "bob"}, bob))
	req.NoError(hub.Dispatch(ctx, domain.DeleteCommand{MessageID: created.ID}, alice))

	// Then every participant observes the same total order
	expected := []string{"chatHistory", "chatMessage", "updateReactions", "messageDeleted"}
	req.Eventually(func() bool {
		return len(alice.names()) == len(expected) && len(bob.names()) == len(expected)
	}, waitFor, tick)
	req.Equal(expected, alice.names())
	req.Equal(expected, bob.names())
}

func Test_Scenario_Alice_And_Bob_Converge(t *testing.T) {
	req := require.New(t)
	hub, ctx := startHub(t, newFakeRepo(), nil)

	// Given alice alone in the room, sending one message
	alice := join(t, ctx, hub, "alice")
	req.NoError(hub.Dispatch(ctx, domain.SendMessageCommand{Author: "alice", Body: "hi"}, alice))
	req.Eventually(func() bool { _, ok := lastCreated(alice); return ok }, waitFor, tick)
	m1, _ := lastCreated(alice)

	// When bob joins, he receives exactly that history
	bob := join(t, ctx, hub, "bob")
	replay := bob.snapshot()[0].(event.HistoryReplayed)
	req.Len(replay.Messages, 1)
	req.Equal(m1.ID, replay.Messages[0].ID)

	// When bob reacts, both observe the same reaction state
	req.NoError(hub.Dispatch(ctx, domain.ReactCommand{MessageID: m1.ID, Symbol: "👍", Participant: "bob"}, bob))
	reacted := func(sink *recordSink) bool {
		for _, e := range sink.snapshot() {
			if upd, ok := e.(event.ReactionsUpdated); ok {
				return len(upd.Reactions["👍"]) == 1 && upd.Reactions["👍"][0] == "bob"
			}
		}
		return false
	}
	req.Eventually(func() bool { return reacted(alice) && reacted(bob) }, waitFor, tick)

	// When alice deletes, both observe the removal
	req.NoError(hub.Dispatch(ctx, domain.DeleteCommand{MessageID: m1.ID}, alice))
	deleted := func(sink *recordSink) bool {
		for _, e := range sink.snapshot() {
			if del, ok := e.(event.MessageDeleted); ok {
				return del.ID == m1.ID
			}
		}
		return false
	}
	req.Eventually(func() bool { return deleted(alice) && deleted(bob) }, waitFor, tick)

	// Then a third participant joining afterwards sees an empty room
	clara := join(t, ctx, hub, "clara")
	req.Empty(clara.snapshot()[0].(event.HistoryReplayed).Messages)
}

func Test_NotFound_Produces_No_Broadcast(t *testing.T) {
	req := require.New(t)
	hub, ctx := startHub(t, newFakeRepo(), nil)
	alice := join(t, ctx, hub, "alice")

	// When a reaction and a deletion target an unknown id
	req.NoError(hub.Dispatch(ctx, domain.ReactCommand{MessageID: uuid.New(), Symbol: "👍", Participant: "alice"}, alice))
	req.NoError(hub.Dispatch(ctx, domain.DeleteCommand{MessageID: uuid.New()}, alice))

	// A later send acts as a fence: once it is observed, the earlier
	// commands have been fully processed.
	req.NoError(hub.Dispatch(ctx, domain.SendMessageCommand{Author: "alice", Body: "fence"}, alice))
	req.Eventually(func() bool { _, ok := lastCreated(alice); return ok }, waitFor, tick)

	// Then nothing besides the replay and the fence was delivered
	req.Equal([]string{"chatHistory", "chatMessage"}, alice.names())
}

func Test_Transient_Store_Failure_Is_Retried(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	repo.failures = 2
	hub, ctx := startHub(t, repo, nil)
	alice := join(t, ctx, hub, "alice")

	// When the first two durable writes fail
	req.NoError(hub.Dispatch(ctx, domain.SendMessageCommand{Author: "alice", Body: "persistent"}, alice))

	// Then the third attempt lands and exactly one message is broadcast
	req.Eventually(func() bool { _, ok := lastCreated(alice); return ok }, waitFor, tick)
	req.Equal([]string{"chatHistory", "chatMessage"}, alice.names())
}

func Test_Store_Failure_Surfaces_To_Originator_Only(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	repo.failures = 100
	hub, ctx := startHub(t, repo, nil)
	alice := join(t, ctx, hub, "alice")
	bob := join(t, ctx, hub, "bob")

	// When every retry is exhausted
	req.NoError(hub.Dispatch(ctx, domain.SendMessageCommand{Author: "alice", Body: "doomed"}, alice))

	// Then only the originator hears about it, and nothing is broadcast
	req.Eventually(func() bool {
		return lo.Contains(alice.names(), "error")
	}, waitFor, tick)
	req.Equal([]string{"chatHistory", "error"}, alice.names())
	req.Equal([]string{"chatHistory"}, bob.names())
}

func Test_Censored_Body_Is_Applied_Before_Broadcast(t *testing.T) {
	req := require.New(t)
	hub, ctx := startHub(t, newFakeRepo(), maskCensor{})
	alice := join(t, ctx, hub, "alice")

	req.NoError(hub.Dispatch(ctx, domain.SendMessageCommand{Author: "alice", Body: "what a rubbish idea"}, alice))

	req.Eventually(func() bool { _, ok := lastCreated(alice); return ok }, waitFor, tick)
	created, _ := lastCreated(alice)
	req.Equal("what a ******* idea", created.Body)
}
