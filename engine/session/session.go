// Package session owns the interaction state machine that turns discrete
// user actions — place, wire, edit, toggle, delete — into topology
// mutations, and runs the full solve pipeline after every mutation.
// Recomputes are synchronous and atomic: the session lock admits one
// action at a time, so readers always see a fully settled topology.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/VoltSim/voltsim-mvp/engine/circuit"
	"github.com/VoltSim/voltsim-mvp/engine/render"
	"github.com/VoltSim/voltsim-mvp/engine/solve"
	"github.com/VoltSim/voltsim-mvp/pkg/fn"
	"github.com/VoltSim/voltsim-mvp/pkg/metrics"
)

// InteractionState is the wiring state machine's position.
type InteractionState string

const (
	// StateIdle means no terminal is pending.
	StateIdle InteractionState = "idle"
	// StateAwaitingSecondTerminal means one terminal has been clicked
	// and the next click on a different component completes a wire.
	StateAwaitingSecondTerminal InteractionState = "awaiting_second_terminal"
)

// ClickResult describes the outcome of a terminal click.
type ClickResult struct {
	State InteractionState `json:"state"`
	Wire  circuit.WireID   `json:"wire,omitempty"`
}

// pendingTerminal remembers the first clicked terminal.
type pendingTerminal struct {
	comp circuit.ComponentID
	slot circuit.Terminal
}

// Options configures a Session. All fields are optional.
type Options struct {
	Logger   *slog.Logger
	Notifier Notifier
	Metrics  *metrics.Registry
}

// Session binds one topology to its interaction controller.
type Session struct {
	id      string
	mu      sync.Mutex
	topo    *circuit.Topology
	pending *pendingTerminal
	report  solve.Report

	logger   *slog.Logger
	notifier Notifier

	recomputes    *metrics.Counter
	loopsSolved   *metrics.Counter
	solveDuration *metrics.Histogram

	solveStage fn.Stage[*circuit.Topology, solve.Report]
}

// New creates a session with an empty topology.
func New(id string, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		id:       id,
		topo:     circuit.NewTopology(),
		logger:   logger.With("session", id),
		notifier: opts.Notifier,
	}
	if opts.Metrics != nil {
		s.recomputes = opts.Metrics.Counter("voltsim_recomputes_total", "Completed solve pipeline runs.")
		s.loopsSolved = opts.Metrics.Counter("voltsim_loops_solved_total", "Loops solved across all recomputes.")
		s.solveDuration = opts.Metrics.Histogram("voltsim_solve_duration_seconds", "Full recompute duration.", nil)
	}
	s.solveStage = fn.Traced("session.solve", fn.MapStage(func(t *circuit.Topology) solve.Report {
		return solve.Run(t)
	}))
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// PlaceComponent adds a component and recomputes.
func (s *Session) PlaceComponent(ctx context.Context, kind circuit.Kind, pos circuit.Point) (circuit.ComponentID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.topo.AddComponent(kind, pos)
	if err != nil {
		return 0, err
	}
	s.recompute(ctx)
	return id, nil
}

// TerminalClick drives the wiring state machine. The first click on a
// terminal arms it; a second click on a different component creates the
// wire and recomputes; a second click on the same component rejects the
// self-connection and resets to idle.
func (s *Session) TerminalClick(ctx context.Context, id circuit.ComponentID, slot circuit.Terminal) (ClickResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !circuit.ValidTerminals[slot] {
		return ClickResult{State: s.state()}, circuit.ErrBadTerminal
	}
	if _, ok := s.topo.Component(id); !ok {
		return ClickResult{State: s.state()}, circuit.ErrUnknownComponent
	}

	if s.pending == nil {
		s.pending = &pendingTerminal{comp: id, slot: slot}
		return ClickResult{State: StateAwaitingSecondTerminal}, nil
	}

	first := *s.pending
	s.pending = nil
	if first.comp == id {
		return ClickResult{State: StateIdle}, circuit.ErrSelfConnection
	}

	wid, err := s.topo.AddWire(first.comp, first.slot, id, slot)
	if err != nil {
		return ClickResult{State: StateIdle}, err
	}
	s.recompute(ctx)
	return ClickResult{State: StateIdle, Wire: wid}, nil
}

// EditComponent updates one editable field. A rejected edit keeps the
// prior value and does not recompute.
func (s *Session) EditComponent(ctx context.Context, id circuit.ComponentID, field string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var patch circuit.Patch
	switch field {
	case "resistance":
		patch.Resistance = &value
	case "source_voltage":
		patch.SourceVoltage = &value
	case "forward_drop":
		patch.ForwardDrop = &value
	case "rated_current":
		patch.RatedCurrent = &value
	default:
		return circuit.NewEditError(field, value)
	}
	if err := s.topo.UpdateComponent(id, patch); err != nil {
		return err
	}
	s.recompute(ctx)
	return nil
}

// ToggleSwitch flips a switch and recomputes, returning the new state.
func (s *Session) ToggleSwitch(ctx context.Context, id circuit.ComponentID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.topo.Component(id)
	if !ok {
		return false, circuit.ErrUnknownComponent
	}
	if c.Kind != circuit.KindSwitch {
		return false, circuit.ErrNotASwitch
	}
	closed := !c.Closed
	if err := s.topo.UpdateComponent(id, circuit.Patch{Closed: &closed}); err != nil {
		return false, err
	}
	s.recompute(ctx)
	return closed, nil
}

// DeleteComponent removes a component and its wires, then recomputes.
// Deleting an unknown id is a no-op that still recomputes.
func (s *Session) DeleteComponent(ctx context.Context, id circuit.ComponentID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topo.RemoveComponent(id)
	s.recompute(ctx)
}

// DeleteWire removes a wire and recomputes.
func (s *Session) DeleteWire(ctx context.Context, id circuit.WireID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topo.RemoveWire(id)
	s.recompute(ctx)
}

// Load replaces the session's topology, resets the interaction machine
// to idle, and recomputes. The session takes ownership of topo.
func (s *Session) Load(ctx context.Context, topo *circuit.Topology) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topo = topo
	s.pending = nil
	s.recompute(ctx)
}

// RenderState projects one component's solved state into render
// attributes for the drawing layer.
func (s *Session) RenderState(id circuit.ComponentID) (render.Attributes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.topo.Component(id)
	if !ok {
		return render.Attributes{}, circuit.ErrUnknownComponent
	}
	return render.Project(*c), nil
}

// Components returns value copies of every component, sorted by id.
func (s *Session) Components() []circuit.Component {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.componentsLocked()
}

// Wires returns value copies of every wire, sorted by id.
func (s *Session) Wires() []circuit.Wire {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wiresLocked()
}

// Report returns the last recompute's summary.
func (s *Session) Report() solve.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// State reports the interaction machine's position.
func (s *Session) State() InteractionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state()
}

func (s *Session) state() InteractionState {
	if s.pending != nil {
		return StateAwaitingSecondTerminal
	}
	return StateIdle
}

func (s *Session) componentsLocked() []circuit.Component {
	return fn.Map(s.topo.Components(), func(c *circuit.Component) circuit.Component { return *c })
}

func (s *Session) wiresLocked() []circuit.Wire {
	return fn.Map(s.topo.Wires(), func(w *circuit.Wire) circuit.Wire { return *w })
}

// recompute runs the full solve pipeline. Must be called with mu held.
func (s *Session) recompute(ctx context.Context) {
	start := time.Now()
	s.report = s.solveStage(ctx, s.topo).UnwrapOr(solve.Report{})

	if s.recomputes != nil {
		s.recomputes.Inc()
		s.loopsSolved.Add(int64(s.report.Loops))
		s.solveDuration.Since(start)
	}
	s.logger.Debug("recompute",
		"components", s.topo.ComponentCount(),
		"wires", s.topo.WireCount(),
		"batteries", s.report.Batteries,
		"loops", s.report.Loops,
	)

	if s.notifier != nil {
		s.notifier.CircuitSolved(ctx, SolvedEvent{
			SessionID:  s.id,
			Batteries:  s.report.Batteries,
			Loops:      s.report.Loops,
			Components: s.componentsLocked(),
			Wires:      s.wiresLocked(),
			SolvedAt:   time.Now().UTC(),
		})
	}
}
