package circuit

import (
	"math"
	"sort"
)

// Topology is the pair (component set, wire set), an arena keyed by
// auto-incremented ids. It has a single writer — the interaction
// controller — and is read through accessors by the solver and the
// render projector. It is not safe for concurrent use; the owning
// session serialises access.
type Topology struct {
	components map[ComponentID]*Component
	wires      map[WireID]*Wire
	nextComp   ComponentID
	nextWire   WireID
}

// NewTopology creates an empty topology.
func NewTopology() *Topology {
	return &Topology{
		components: make(map[ComponentID]*Component),
		wires:      make(map[WireID]*Wire),
	}
}

// AddComponent places a new component and returns its id.
func (t *Topology) AddComponent(kind Kind, pos Point) (ComponentID, error) {
	if !ValidKinds[kind] {
		return 0, ErrUnknownKind
	}
	t.nextComp++
	c := NewComponent(kind, pos)
	c.ID = t.nextComp
	t.components[c.ID] = &c
	return c.ID, nil
}

// AddWire connects two distinct components at named terminals and
// returns the wire id. Terminal slot collisions are permitted and model
// junctions. Wiring a component to itself fails with ErrSelfConnection.
func (t *Topology) AddWire(from ComponentID, fromSlot Terminal, to ComponentID, toSlot Terminal) (WireID, error) {
	if from == to {
		return 0, ErrSelfConnection
	}
	if !ValidTerminals[fromSlot] || !ValidTerminals[toSlot] {
		return 0, ErrBadTerminal
	}
	if _, ok := t.components[from]; !ok {
		return 0, ErrUnknownComponent
	}
	if _, ok := t.components[to]; !ok {
		return 0, ErrUnknownComponent
	}
	t.nextWire++
	w := &Wire{ID: t.nextWire, From: from, FromSlot: fromSlot, To: to, ToSlot: toSlot}
	t.wires[w.ID] = w
	return w.ID, nil
}

// RemoveComponent deletes a component and every wire incident on it.
// Removing a non-existent id is a no-op.
func (t *Topology) RemoveComponent(id ComponentID) {
	if _, ok := t.components[id]; !ok {
		return
	}
	delete(t.components, id)
	for wid, w := range t.wires {
		if w.From == id || w.To == id {
			delete(t.wires, wid)
		}
	}
}

// RemoveWire deletes a wire. Removing a non-existent id is a no-op.
func (t *Topology) RemoveWire(id WireID) {
	delete(t.wires, id)
}

// Patch holds optional field updates for UpdateComponent. Nil fields are
// left untouched.
type Patch struct {
	Resistance    *float64
	SourceVoltage *float64
	ForwardDrop   *float64
	RatedCurrent  *float64
	Closed        *bool
}

// UpdateComponent applies a patch to a component. Resistance and source
// voltage must be finite and positive, ground keeps its zero resistance,
// and only batteries carry a source voltage; a rejected edit keeps the
// prior value and returns an EditError wrapping ErrInvalidEdit.
func (t *Topology) UpdateComponent(id ComponentID, p Patch) error {
	c, ok := t.components[id]
	if !ok {
		return ErrUnknownComponent
	}
	if p.Resistance != nil {
		if c.Kind == KindGround || !validPositive(*p.Resistance) {
			return NewEditError("resistance", *p.Resistance)
		}
		c.Resistance = *p.Resistance
	}
	if p.SourceVoltage != nil {
		if c.Kind != KindBattery || !validPositive(*p.SourceVoltage) {
			return NewEditError("source_voltage", *p.SourceVoltage)
		}
		c.SourceVoltage = *p.SourceVoltage
	}
	if p.ForwardDrop != nil {
		if !validPositive(*p.ForwardDrop) {
			return NewEditError("forward_drop", *p.ForwardDrop)
		}
		c.ForwardDrop = *p.ForwardDrop
	}
	if p.RatedCurrent != nil {
		if !validPositive(*p.RatedCurrent) {
			return NewEditError("rated_current", *p.RatedCurrent)
		}
		c.RatedCurrent = *p.RatedCurrent
	}
	if p.Closed != nil {
		c.Closed = *p.Closed
	}
	return nil
}

func validPositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// Component returns the live component for id.
func (t *Topology) Component(id ComponentID) (*Component, bool) {
	c, ok := t.components[id]
	return c, ok
}

// Components returns all components sorted by id. The solver iterates
// this to keep recomputes deterministic.
func (t *Topology) Components() []*Component {
	out := make([]*Component, 0, len(t.components))
	for _, c := range t.components {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Wires returns all wires sorted by id.
func (t *Topology) Wires() []*Wire {
	out := make([]*Wire, 0, len(t.wires))
	for _, w := range t.wires {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ComponentCount returns the number of components.
func (t *Topology) ComponentCount() int { return len(t.components) }

// WireCount returns the number of wires.
func (t *Topology) WireCount() int { return len(t.wires) }

// ResetDerived zeroes every solver output. Called at the start of each
// recompute; a topology with no discoverable loop stays in this resting
// state and that is not an error.
func (t *Topology) ResetDerived() {
	for _, c := range t.components {
		c.Current = 0
		c.VoltageDrop = 0
		c.Reading = 0
		c.Powered = false
	}
}
