package main

import (
	"context"
	"log/slog"

	"github.com/VoltSim/voltsim-mvp/engine/session"
	"github.com/VoltSim/voltsim-mvp/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

// natsNotifier publishes solved-circuit events for the archive worker.
// Publish failures are logged, never surfaced: the simulation must keep
// responding even when the bus is down.
type natsNotifier struct {
	nc     *nats.Conn
	logger *slog.Logger
}

func (n *natsNotifier) CircuitSolved(ctx context.Context, ev session.SolvedEvent) {
	if err := natsutil.Publish(ctx, n.nc, session.SolvedSubject, ev); err != nil {
		n.logger.Warn("publish solved event failed", "session", ev.SessionID, "err", err)
	}
}
