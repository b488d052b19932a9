package session

import (
	"context"
	"time"

	"github.com/VoltSim/voltsim-mvp/engine/circuit"
)

// SolvedSubject is the NATS subject solved-circuit events are published
// on by the API server and consumed from by the archive worker.
const SolvedSubject = "circuit.solved"

// SolvedEvent is emitted after every completed recompute.
type SolvedEvent struct {
	SessionID  string              `json:"session_id"`
	Batteries  int                 `json:"batteries"`
	Loops      int                 `json:"loops"`
	Components []circuit.Component `json:"components"`
	Wires      []circuit.Wire      `json:"wires"`
	SolvedAt   time.Time           `json:"solved_at"`
}

// Notifier receives solved events. The session itself performs no I/O;
// a NATS-backed notifier lives in the API binary.
type Notifier interface {
	CircuitSolved(ctx context.Context, ev SolvedEvent)
}
