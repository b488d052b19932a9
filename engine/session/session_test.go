package session

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/VoltSim/voltsim-mvp/engine/circuit"
	"github.com/VoltSim/voltsim-mvp/pkg/metrics"
)

// captureNotifier records solved events in order.
type captureNotifier struct {
	mu     sync.Mutex
	events []SolvedEvent
}

func (n *captureNotifier) CircuitSolved(_ context.Context, ev SolvedEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func place(t *testing.T, s *Session, kind circuit.Kind) circuit.ComponentID {
	t.Helper()
	id, err := s.PlaceComponent(context.Background(), kind, circuit.Point{})
	if err != nil {
		t.Fatalf("PlaceComponent(%s): %v", kind, err)
	}
	return id
}

func connect(t *testing.T, s *Session, a, b circuit.ComponentID) circuit.WireID {
	t.Helper()
	ctx := context.Background()
	if _, err := s.TerminalClick(ctx, a, circuit.TerminalRight); err != nil {
		t.Fatalf("first click: %v", err)
	}
	res, err := s.TerminalClick(ctx, b, circuit.TerminalLeft)
	if err != nil {
		t.Fatalf("second click: %v", err)
	}
	return res.Wire
}

func TestTerminalClickStateMachine(t *testing.T) {
	s := New("t1", Options{})
	ctx := context.Background()
	a := place(t, s, circuit.KindBattery)
	b := place(t, s, circuit.KindResistor)

	if got := s.State(); got != StateIdle {
		t.Fatalf("initial state = %v, want idle", got)
	}
	res, err := s.TerminalClick(ctx, a, circuit.TerminalRight)
	if err != nil {
		t.Fatalf("first click: %v", err)
	}
	if res.State != StateAwaitingSecondTerminal || s.State() != StateAwaitingSecondTerminal {
		t.Fatalf("after first click state = %v", res.State)
	}
	res, err = s.TerminalClick(ctx, b, circuit.TerminalLeft)
	if err != nil {
		t.Fatalf("second click: %v", err)
	}
	if res.State != StateIdle || res.Wire == 0 {
		t.Fatalf("second click result = %+v, want idle with a wire id", res)
	}
	if got := len(s.Wires()); got != 1 {
		t.Fatalf("wire count = %d, want 1", got)
	}
}

func TestTerminalClickSelfConnectionResets(t *testing.T) {
	s := New("t2", Options{})
	ctx := context.Background()
	a := place(t, s, circuit.KindResistor)

	if _, err := s.TerminalClick(ctx, a, circuit.TerminalLeft); err != nil {
		t.Fatalf("first click: %v", err)
	}
	res, err := s.TerminalClick(ctx, a, circuit.TerminalRight)
	if !errors.Is(err, circuit.ErrSelfConnection) {
		t.Fatalf("err = %v, want ErrSelfConnection", err)
	}
	if res.State != StateIdle || s.State() != StateIdle {
		t.Fatalf("self-connection should reset to idle, got %v", res.State)
	}
	if got := len(s.Wires()); got != 0 {
		t.Fatalf("wire count = %d, want 0", got)
	}
	// The machine accepts a fresh first click afterwards.
	if res, err := s.TerminalClick(ctx, a, circuit.TerminalLeft); err != nil || res.State != StateAwaitingSecondTerminal {
		t.Fatalf("re-arm after reset: %+v, %v", res, err)
	}
}

func TestTerminalClickRejectsBadInput(t *testing.T) {
	s := New("t3", Options{})
	ctx := context.Background()
	a := place(t, s, circuit.KindResistor)

	if _, err := s.TerminalClick(ctx, a, circuit.Terminal("center")); !errors.Is(err, circuit.ErrBadTerminal) {
		t.Fatalf("err = %v, want ErrBadTerminal", err)
	}
	if _, err := s.TerminalClick(ctx, circuit.ComponentID(99), circuit.TerminalLeft); !errors.Is(err, circuit.ErrUnknownComponent) {
		t.Fatalf("err = %v, want ErrUnknownComponent", err)
	}
	if s.State() != StateIdle {
		t.Fatalf("rejected clicks should not arm the machine, state = %v", s.State())
	}
}

func TestEditComponentRejectionSkipsRecompute(t *testing.T) {
	notifier := &captureNotifier{}
	s := New("t4", Options{Notifier: notifier})
	ctx := context.Background()
	id := place(t, s, circuit.KindResistor)
	before := notifier.count()

	err := s.EditComponent(ctx, id, "resistance", -5)
	if !errors.Is(err, circuit.ErrInvalidEdit) {
		t.Fatalf("err = %v, want ErrInvalidEdit", err)
	}
	if notifier.count() != before {
		t.Fatal("rejected edit triggered a recompute")
	}
	if got := s.Components()[0].Resistance; got != circuit.DefaultResistorOhms {
		t.Fatalf("resistance = %v, want prior value %v", got, circuit.DefaultResistorOhms)
	}

	if err := s.EditComponent(ctx, id, "resistance", 470); err != nil {
		t.Fatalf("valid edit: %v", err)
	}
	if notifier.count() != before+1 {
		t.Fatal("accepted edit did not recompute")
	}
	if got := s.Components()[0].Resistance; got != 470 {
		t.Fatalf("resistance = %v, want 470", got)
	}
}

func TestEditComponentUnknownField(t *testing.T) {
	s := New("t5", Options{})
	id := place(t, s, circuit.KindResistor)
	err := s.EditComponent(context.Background(), id, "wattage", 5)
	if !errors.Is(err, circuit.ErrInvalidEdit) {
		t.Fatalf("err = %v, want ErrInvalidEdit", err)
	}
}

func TestToggleSwitchScenario(t *testing.T) {
	s := New("t6", Options{})
	ctx := context.Background()
	bat := place(t, s, circuit.KindBattery)
	sw := place(t, s, circuit.KindSwitch)
	bulb := place(t, s, circuit.KindBulb)
	connect(t, s, bat, sw)
	connect(t, s, sw, bulb)
	connect(t, s, bulb, bat)

	attrs, err := s.RenderState(bulb)
	if err != nil {
		t.Fatalf("RenderState: %v", err)
	}
	if !attrs.Powered || attrs.Glow == 0 {
		t.Fatalf("bulb should glow with the switch closed: %+v", attrs)
	}

	closed, err := s.ToggleSwitch(ctx, sw)
	if err != nil || closed {
		t.Fatalf("toggle = %v, %v, want open", closed, err)
	}
	attrs, _ = s.RenderState(bulb)
	if attrs.Powered || attrs.Glow != 0 {
		t.Fatalf("bulb should be dark with the switch open: %+v", attrs)
	}

	closed, err = s.ToggleSwitch(ctx, sw)
	if err != nil || !closed {
		t.Fatalf("toggle = %v, %v, want closed", closed, err)
	}
	attrs, _ = s.RenderState(bulb)
	if !attrs.Powered {
		t.Fatalf("bulb should relight: %+v", attrs)
	}

	if _, err := s.ToggleSwitch(ctx, bulb); !errors.Is(err, circuit.ErrNotASwitch) {
		t.Fatalf("err = %v, want ErrNotASwitch", err)
	}
	if _, err := s.ToggleSwitch(ctx, circuit.ComponentID(99)); !errors.Is(err, circuit.ErrUnknownComponent) {
		t.Fatalf("err = %v, want ErrUnknownComponent", err)
	}
}

func TestSeriesSwitchCircuitSolvesAndRecovers(t *testing.T) {
	s := New("t11", Options{})
	ctx := context.Background()
	bat := place(t, s, circuit.KindBattery)
	sw := place(t, s, circuit.KindSwitch)
	res := place(t, s, circuit.KindResistor)
	connect(t, s, bat, sw)
	connect(t, s, sw, res)
	connect(t, s, res, bat)

	want := circuit.DefaultBatteryVolts / (circuit.BatteryInternalOhms + circuit.SwitchClosedOhms + circuit.DefaultResistorOhms)
	before := s.Components()
	if got := before[2].Current; math.Abs(got-want) > 1e-12 {
		t.Fatalf("series current = %v, want %v", got, want)
	}

	if _, err := s.ToggleSwitch(ctx, sw); err != nil {
		t.Fatalf("open switch: %v", err)
	}
	for _, c := range s.Components() {
		if c.Current != 0 || c.VoltageDrop != 0 || c.Powered {
			t.Fatalf("component %d still energized with the switch open: %+v", c.ID, c)
		}
	}

	if _, err := s.ToggleSwitch(ctx, sw); err != nil {
		t.Fatalf("close switch: %v", err)
	}
	after := s.Components()
	for i := range before {
		if after[i].Current != before[i].Current || after[i].VoltageDrop != before[i].VoltageDrop {
			t.Fatalf("recompute diverged for component %d: %+v vs %+v", after[i].ID, after[i], before[i])
		}
	}
}

func TestDeleteComponentCascades(t *testing.T) {
	s := New("t7", Options{})
	ctx := context.Background()
	bat := place(t, s, circuit.KindBattery)
	res := place(t, s, circuit.KindResistor)
	bulb := place(t, s, circuit.KindBulb)
	connect(t, s, bat, res)
	connect(t, s, res, bulb)
	connect(t, s, bulb, bat)

	s.DeleteComponent(ctx, res)
	if got := len(s.Components()); got != 2 {
		t.Fatalf("component count = %d, want 2", got)
	}
	// Only the bulb-battery wire survives the cascade, and one wire
	// cannot close a loop.
	if got := len(s.Wires()); got != 1 {
		t.Fatalf("wire count = %d, want 1", got)
	}
	for _, c := range s.Components() {
		if c.Powered || c.Current != 0 {
			t.Fatalf("component %d still energized after cascade: %+v", c.ID, c)
		}
	}
}

func TestDeleteWireRecomputes(t *testing.T) {
	s := New("t8", Options{})
	ctx := context.Background()
	bat := place(t, s, circuit.KindBattery)
	res := place(t, s, circuit.KindResistor)
	connect(t, s, bat, res)
	w := connect(t, s, res, bat)

	if !s.Components()[1].Powered {
		t.Fatal("resistor should be powered before the cut")
	}
	s.DeleteWire(ctx, w)
	if s.Components()[1].Powered {
		t.Fatal("resistor still powered after the cut")
	}
}

func TestLoadReplacesTopologyAndResetsMachine(t *testing.T) {
	s := New("t9", Options{})
	ctx := context.Background()
	a := place(t, s, circuit.KindResistor)
	if _, err := s.TerminalClick(ctx, a, circuit.TerminalLeft); err != nil {
		t.Fatalf("arm: %v", err)
	}

	topo := circuit.NewTopology()
	bat, _ := topo.AddComponent(circuit.KindBattery, circuit.Point{})
	res, _ := topo.AddComponent(circuit.KindResistor, circuit.Point{})
	topo.AddWire(bat, circuit.TerminalRight, res, circuit.TerminalLeft)
	topo.AddWire(res, circuit.TerminalRight, bat, circuit.TerminalLeft)
	s.Load(ctx, topo)

	if s.State() != StateIdle {
		t.Fatalf("state after load = %v, want idle", s.State())
	}
	comps := s.Components()
	if len(comps) != 2 || comps[0].Kind != circuit.KindBattery {
		t.Fatalf("loaded components = %+v", comps)
	}
	if !comps[1].Powered {
		t.Fatal("load should recompute the restored circuit")
	}
	if r := s.Report(); r.Batteries != 1 || r.Loops == 0 {
		t.Fatalf("report after load = %+v", r)
	}
}

func TestSessionMetrics(t *testing.T) {
	reg := metrics.New()
	s := New("t10", Options{Metrics: reg})
	bat := place(t, s, circuit.KindBattery)
	res := place(t, s, circuit.KindResistor)
	connect(t, s, bat, res)
	connect(t, s, res, bat)

	// Two placements and two completed wires each recompute once.
	if got := reg.Counter("voltsim_recomputes_total", "").Value(); got != 4 {
		t.Fatalf("recompute count = %d, want 4", got)
	}
	if got := reg.Counter("voltsim_loops_solved_total", "").Value(); got == 0 {
		t.Fatal("loops solved counter never moved")
	}
}
