package library

import (
	"testing"
	"time"

	"github.com/VoltSim/voltsim-mvp/engine/circuit"
)

func buildCircuit(t *testing.T) ([]circuit.Component, []circuit.Wire) {
	t.Helper()
	topo := circuit.NewTopology()
	bat, err := topo.AddComponent(circuit.KindBattery, circuit.Point{X: 10, Y: 20})
	if err != nil {
		t.Fatalf("AddComponent: %v", err)
	}
	sw, _ := topo.AddComponent(circuit.KindSwitch, circuit.Point{X: 30, Y: 20})
	bulb, _ := topo.AddComponent(circuit.KindBulb, circuit.Point{X: 50, Y: 20})
	volts := 12.0
	if err := topo.UpdateComponent(bat, circuit.Patch{SourceVoltage: &volts}); err != nil {
		t.Fatalf("UpdateComponent: %v", err)
	}
	open := false
	if err := topo.UpdateComponent(sw, circuit.Patch{Closed: &open}); err != nil {
		t.Fatalf("UpdateComponent: %v", err)
	}
	topo.AddWire(bat, circuit.TerminalRight, sw, circuit.TerminalLeft)
	topo.AddWire(sw, circuit.TerminalRight, bulb, circuit.TerminalLeft)
	topo.AddWire(bulb, circuit.TerminalRight, bat, circuit.TerminalLeft)

	var comps []circuit.Component
	for _, c := range topo.Components() {
		comps = append(comps, *c)
	}
	var wires []circuit.Wire
	for _, w := range topo.Wires() {
		wires = append(wires, *w)
	}
	return comps, wires
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	comps, wires := buildCircuit(t)
	snap := NewSnapshot(NewID(), "bench circuit", comps, wires)

	topo, err := snap.Restore()
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	restored := topo.Components()
	if len(restored) != len(comps) {
		t.Fatalf("component count = %d, want %d", len(restored), len(comps))
	}
	for i, c := range restored {
		if c.Kind != comps[i].Kind || c.Position != comps[i].Position {
			t.Fatalf("component %d = %+v, want kind %s at %v", i, c, comps[i].Kind, comps[i].Position)
		}
	}
	if restored[0].SourceVoltage != 12 {
		t.Fatalf("battery voltage = %v, want 12", restored[0].SourceVoltage)
	}
	if restored[1].Closed {
		t.Fatal("switch should restore open")
	}
	if got := topo.WireCount(); got != len(wires) {
		t.Fatalf("wire count = %d, want %d", got, len(wires))
	}
	for i, w := range topo.Wires() {
		if w.FromSlot != wires[i].FromSlot || w.ToSlot != wires[i].ToSlot {
			t.Fatalf("wire %d slots = %s/%s, want %s/%s", i, w.FromSlot, w.ToSlot, wires[i].FromSlot, wires[i].ToSlot)
		}
	}
}

func TestSnapshotRestoreSkipsDanglingWires(t *testing.T) {
	comps, wires := buildCircuit(t)
	wires = append(wires, circuit.Wire{
		ID: 99, From: circuit.ComponentID(42), FromSlot: circuit.TerminalLeft,
		To: comps[0].ID, ToSlot: circuit.TerminalRight,
	})
	snap := NewSnapshot(NewID(), "with dangler", comps, wires)

	topo, err := snap.Restore()
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := topo.WireCount(); got != len(wires)-1 {
		t.Fatalf("wire count = %d, want dangler skipped (%d)", got, len(wires)-1)
	}
}

func TestSnapshotRestoreBadKind(t *testing.T) {
	snap := Snapshot{Components: []circuit.Component{{ID: 1, Kind: circuit.Kind("flux")}}}
	if _, err := snap.Restore(); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestSnapshotMetadata(t *testing.T) {
	comps, wires := buildCircuit(t)
	snap := NewSnapshot("abc", "named", comps, wires)
	meta := snap.Metadata()
	if meta.ID != "abc" || meta.Name != "named" {
		t.Fatalf("meta = %+v", meta)
	}
	if meta.Components != int64(len(comps)) || meta.Wires != int64(len(wires)) {
		t.Fatalf("meta counts = %+v", meta)
	}
	if meta.CreatedAt.IsZero() || meta.CreatedAt.Location() != time.UTC {
		t.Fatalf("created_at = %v, want UTC timestamp", meta.CreatedAt)
	}
}

func TestPartMapRoundTrip(t *testing.T) {
	in := circuit.Component{
		ID: 7, Kind: circuit.KindLED,
		Position:   circuit.Point{X: 5, Y: -3},
		Resistance: 20, SourceVoltage: 0, Closed: true,
		ForwardDrop: 2, RatedCurrent: 0.02,
	}
	out := partFromProps(partToMap(in))
	if out != in {
		t.Fatalf("round trip mangled component:\n in: %+v\nout: %+v", in, out)
	}
}

func TestMetaMapRoundTrip(t *testing.T) {
	in := Meta{ID: "x", Name: "y", CreatedAt: time.Now().UTC().Truncate(time.Microsecond), Components: 4, Wires: 5}
	out := metaFromProps(metaToMap(in))
	if !out.CreatedAt.Equal(in.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", out.CreatedAt, in.CreatedAt)
	}
	out.CreatedAt = in.CreatedAt
	if out != in {
		t.Fatalf("round trip mangled meta:\n in: %+v\nout: %+v", in, out)
	}
}

func TestNewIDShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 16; i++ {
		id := NewID()
		if len(id) != 36 {
			t.Fatalf("id %q has length %d, want 36", id, len(id))
		}
		if id[14] != '4' {
			t.Fatalf("id %q missing version nibble", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
