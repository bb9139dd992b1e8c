package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-presence/contract"
)

// HeartbeatWorker periodically evicts connections that stopped reporting
// heartbeats, turning silent failure into an explicit disconnect. The
// sweep period should be well below the timeout so staleness is detected
// within one sweep of the deadline (e.g. sweep 10s against a 30s timeout).
type HeartbeatWorker struct {
	log           *slog.Logger
	orchestrator  contract.IOrchestrator
	sweepInterval time.Duration
	timeout       time.Duration
}

func NewHeartbeatWorker(
	log *slog.Logger,
	orchestrator contract.IOrchestrator,
	sweepInterval, timeout time.Duration,
) *HeartbeatWorker {
	return &HeartbeatWorker{
		log:           log,
		orchestrator:  orchestrator,
		sweepInterval: sweepInterval,
		timeout:       timeout,
	}
}

// Run executes the sweep loop until the context is canceled.
func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat sweep worker",
		"sweepInterval", w.sweepInterval, "timeout", w.timeout)

	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep performs a single eviction pass. Split out from Run so tests can
// drive sweeps against a simulated clock without waiting on the ticker.
func (w *HeartbeatWorker) Sweep(ctx context.Context) int {
	evicted := w.orchestrator.EvictStale(ctx, w.timeout)
	if evicted > 0 {
		w.log.Info("Evicted stale connections", "count", evicted)
	}
	return evicted
}
