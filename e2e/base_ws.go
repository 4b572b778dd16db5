package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"studyhall/gateway"
	"studyhall/moderation"
	"studyhall/repositories"
	"studyhall/runtime"
	"studyhall/store"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

const frameWait = 3 * time.Second

type BaseRoomSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseRoomSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
}

// Step prints a colorized header so the flow reads like a script in logs
func (s *BaseRoomSuite) Step(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// StartRoom returns the websocket URL of a room to test against. With
// E2E_SERVER_ADDR set it targets that deployment; otherwise it boots a
// full in-process stack on a throwaway database.
func (s *BaseRoomSuite) StartRoom(t *testing.T) string {
	if s.Config.ServerAddr != "" {
		return fmt.Sprintf("ws://%s/ws", s.Config.ServerAddr)
	}

	log := logs.GetLoggerFromString("ERROR")

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	repository := repositories.NewMessageRepository(db, log)
	messages := store.NewLog(repository, log)
	s.Require().NoError(messages.Rehydrate())

	wordlists, err := moderation.LoadWordlists()
	s.Require().NoError(err)
	censor, err := moderation.NewModerator(wordlists.Words, '*')
	s.Require().NoError(err)

	registry := runtime.NewRegistry()
	hub := runtime.NewHub(log, messages, registry, censor, 64, 3, 2*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Run(ctx) }()

	limits := gateway.Limits{MaxTextRunes: 2000, MaxAttachmentSize: 5 * 1024 * 1024}
	handler := gateway.NewHandler(ctx, log, hub, limits, 64, 1<<20, nil)

	mux := http.NewServeMux()
	mux.Handle("/ws", handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

// Dial opens a websocket connection to the room.
func (s *BaseRoomSuite) Dial(t *testing.T, url string) *websocket.Conn {
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// Send marshals one command frame onto the connection.
func (s *BaseRoomSuite) Send(conn *websocket.Conn, frame map[string]any) {
	raw, err := json.Marshal(frame)
	s.Require().NoError(err)
	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, raw))
}

// Expect reads frames until one matches the wanted event type, failing
// on timeout or on any other event type arriving first.
func (s *BaseRoomSuite) Expect(t *testing.T, conn *websocket.Conn, eventType string) map[string]any {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(frameWait)))
	_, raw, err := conn.ReadMessage()
	s.Require().NoError(err, "waiting for %q", eventType)

	if s.Config.DebugJSON {
		t.Logf("frame: %s", raw)
	}

	var envelope struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	s.Require().NoError(json.Unmarshal(raw, &envelope))
	s.Require().Equal(eventType, envelope.Type)

	var payload map[string]any
	if len(envelope.Payload) > 0 && envelope.Payload[0] == '{' {
		s.Require().NoError(json.Unmarshal(envelope.Payload, &payload))
	}
	return payload
}

// ExpectHistory reads a chatHistory frame and returns the message list.
func (s *BaseRoomSuite) ExpectHistory(t *testing.T, conn *websocket.Conn) []any {
	payload := s.Expect(t, conn, "chatHistory")
	messages, _ := payload["messages"].([]any)
	return messages
}
