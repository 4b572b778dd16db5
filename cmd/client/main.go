// A terminal client for the room, mostly useful for manual testing
// against a local server.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"CHAT_SERVER_ADDR,default=localhost:8080"`
	Identity      string `env:"CHAT_IDENTITY,default=guest"`
	Token         string `env:"CHAT_TOKEN"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles the websocket client lifecycle, configuration loading, and
// the read/write loops.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Connect and join the room.
	url := fmt.Sprintf("ws://%s/ws", config.ServerAddress)
	if config.Token != "" {
		url += "?token=" + config.Token
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	if err := send(conn, map[string]any{"type": "join", "identity": config.Identity}); err != nil {
		return exitRuntime, err
	}

	color.Green.Printf(">>> Connected to %s as %s (Ctrl+C to quit)\n", config.ServerAddress, config.Identity)

	// 4. Reception loop in the background.
	done := make(chan error, 1)
	go func() { done <- receive(conn) }()

	// 5. Input loop: every line becomes a message.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			if err := send(conn, map[string]any{"type": "sendMessage", "author": config.Identity, "text": text}); err != nil {
				done <- err
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		color.Yellow.Println("Stopping client...")
		return exitOK, nil
	case err := <-done:
		if err != nil && ctx.Err() == nil {
			return exitRuntime, fmt.Errorf("connection error: %w", err)
		}
		return exitOK, nil
	}
}

func send(conn *websocket.Conn, frame map[string]any) error {
	raw, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, raw)
}

// receive prints every incoming event until the connection drops.
func receive(conn *websocket.Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var envelope struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			continue
		}

		switch envelope.Type {
		case "chatMessage":
			var m struct {
				Author    string    `json:"author"`
				Text      string    `json:"text"`
				CreatedAt time.Time `json:"createdAt"`
			}
			if err := json.Unmarshal(envelope.Payload, &m); err == nil {
				fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format(time.TimeOnly), color.Cyan.Render(m.Author), m.Text)
			}
		case "chatHistory":
			var h struct {
				Messages []struct {
					Author string `json:"author"`
					Text   string `json:"text"`
				} `json:"messages"`
			}
			if err := json.Unmarshal(envelope.Payload, &h); err == nil {
				for _, m := range h.Messages {
					fmt.Printf("%s: %s\n", color.Cyan.Render(m.Author), m.Text)
				}
			}
		case "messageDeleted":
			color.Gray.Println("(a message was deleted)")
		case "error":
			var e struct {
				Reason string `json:"reason"`
			}
			_ = json.Unmarshal(envelope.Payload, &e)
			color.Red.Printf("error: %s\n", e.Reason)
		}
	}
}
