package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studyhall/contract"
	"studyhall/gateway"
	"studyhall/moderation"
	"studyhall/repositories"
	"studyhall/runtime"
	"studyhall/runtime/workers"
	"studyhall/store"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the server and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := characterRune(config.ModerationCharReplacement)
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	//  Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Message store, rehydrated from the durable log
	repository := repositories.NewMessageRepository(db, log)
	messages := store.NewLog(repository, log)
	if err := messages.Rehydrate(); err != nil {
		return fmt.Errorf("rehydration failed: %w", err)
	}
	log.Info("History rehydrated", "messages", messages.Len())

	// 4. Moderation
	censor, err := buildCensor(config, charReplacement)
	if err != nil {
		return err
	}

	// 5. Room engine & supervision
	registry := runtime.NewRegistry()
	hub := runtime.NewHub(log, messages, registry, censor,
		config.MailboxSize, config.StoreRetries, config.SinkTimeout)
	stats := workers.NewStatsWorker(log, config.StatsInterval, registry, messages)
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(hub).Add(stats)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sup.Run(ctx)

	// 7. HTTP server with the websocket endpoint
	limits := gateway.Limits{
		MaxTextRunes:      config.MaxContentLength,
		MaxAttachmentSize: config.MaxAttachmentBytes,
	}
	handler := gateway.NewHandler(ctx, log, hub, limits,
		config.ConnectionBufferSize, config.MaxFrameBytes, []byte(config.JWTSecret))

	mux := http.NewServeMux()
	mux.Handle("/ws", handler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux}

	// Use an error channel to capture ListenAndServe() issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting websocket server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup (Graceful Shutdown)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server shutdown interrupted", "error", err)
	}
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}

func buildCensor(config Config, replacement rune) (contract.Censor, error) {
	if !config.EnableModeration {
		return passthroughCensor{}, nil
	}
	wordlists, err := moderation.LoadWordlists()
	if err != nil {
		return nil, fmt.Errorf("wordlist loading failed: %w", err)
	}
	moderator, err := moderation.NewModerator(wordlists.Words, replacement)
	if err != nil {
		return nil, fmt.Errorf("moderator init failed: %w", err)
	}
	return moderator, nil
}

type passthroughCensor struct{}

func (passthroughCensor) Censor(body string) string { return body }

func characterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
