package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-presence/auth"
	"chat-presence/gateway"
	"chat-presence/internal"
	"chat-presence/repositories"
	"chat-presence/runtime"
	"chat-presence/runtime/workers"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so deferred cleanup (database close,
// worker shutdown) always executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := internal.NewLogger(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Engine wiring
	store := repositories.NewStore(db, log)
	registry := runtime.NewRegistry()
	presence := runtime.NewPresenceBroadcaster(log, registry, store)
	delivery := runtime.NewDeliveryTracker(log, registry, store, presence)
	typing := runtime.NewTypingCoordinator(log, registry, store)
	orchestrator := runtime.NewOrchestrator(log, registry, store, presence, delivery, typing)

	// 4. Supervision: the heartbeat sweep runs under the supervisor so a
	// panic in the sweep never leaves stale connections unevicted.
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewHeartbeatWorker(log, orchestrator,
		config.HeartbeatSweepInterval, config.HeartbeatTimeout))

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sup.Run(ctx)

	// 6. WebSocket gateway
	tokens := auth.NewTokenManager(config.AuthSecret, config.AuthIssuer, config.AuthTokenDuration)
	gw := gateway.NewGateway(log, orchestrator, tokens,
		config.SessionReadTimeout, config.SessionWriteTimeout)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWS)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening", "address", address)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	// 7. Graceful shutdown
	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server shutdown failed", "err", err)
	}
	sup.Stop()
	return nil
}
