package similarity

import (
	"math"
	"testing"

	"github.com/VoltSim/voltsim-mvp/engine/circuit"
)

func TestFingerprintEmpty(t *testing.T) {
	v := Fingerprint(nil, nil)
	if len(v) != FingerprintDims {
		t.Fatalf("len = %d, want %d", len(v), FingerprintDims)
	}
	for i, x := range v {
		if x != 0 {
			t.Fatalf("v[%d] = %v, want 0 for empty circuit", i, x)
		}
	}
}

func TestFingerprintKindHistogram(t *testing.T) {
	comps := []circuit.Component{
		{ID: 1, Kind: circuit.KindBattery, SourceVoltage: 9, Resistance: 0.01},
		{ID: 2, Kind: circuit.KindResistor, Resistance: 100},
		{ID: 3, Kind: circuit.KindResistor, Resistance: 100},
		{ID: 4, Kind: circuit.KindBulb, Resistance: 10},
	}
	v := Fingerprint(comps, nil)

	if got := v[0]; got != 0.5 {
		t.Fatalf("resistor fraction = %v, want 0.5", got)
	}
	if got := v[3]; got != 0.25 {
		t.Fatalf("battery fraction = %v, want 0.25", got)
	}
	if got := v[8]; got != 0.25 {
		t.Fatalf("bulb fraction = %v, want 0.25", got)
	}
	if got := v[1]; got != 0 {
		t.Fatalf("capacitor fraction = %v, want 0", got)
	}
}

func TestFingerprintShapeFeatures(t *testing.T) {
	comps := []circuit.Component{
		{ID: 1, Kind: circuit.KindBattery, SourceVoltage: 9, Resistance: 0.01},
		{ID: 2, Kind: circuit.KindSwitch, Resistance: 0.01, Closed: true},
		{ID: 3, Kind: circuit.KindSwitch, Resistance: 0.01, Closed: false},
		{ID: 4, Kind: circuit.KindBulb, Resistance: 10},
	}
	wires := []circuit.Wire{
		{ID: 1, From: 1, To: 2},
		{ID: 2, From: 2, To: 4},
		{ID: 3, From: 4, To: 1},
	}
	v := Fingerprint(comps, wires)

	if want := float32(3.0 / 8.0); v[11] != want {
		t.Fatalf("wire density = %v, want %v", v[11], want)
	}
	// Six wire endpoints over four components, scaled by the terminal cap.
	if want := float32(6.0 / 4.0 / 4.0); math.Abs(float64(v[12]-want)) > 1e-6 {
		t.Fatalf("mean degree feature = %v, want %v", v[12], want)
	}
	if v[13] != 0.5 {
		t.Fatalf("closed switch fraction = %v, want 0.5", v[13])
	}
	if want := float32(9.0 / 100.0); math.Abs(float64(v[14]-want)) > 1e-6 {
		t.Fatalf("voltage feature = %v, want %v", v[14], want)
	}
}

func TestFingerprintNoSwitchesReadsFullyClosed(t *testing.T) {
	comps := []circuit.Component{{ID: 1, Kind: circuit.KindResistor, Resistance: 100}}
	v := Fingerprint(comps, nil)
	if v[13] != 1 {
		t.Fatalf("switch feature = %v, want 1 when no switches exist", v[13])
	}
}

func TestFingerprintIgnoresSolverOutputs(t *testing.T) {
	base := []circuit.Component{
		{ID: 1, Kind: circuit.KindBattery, SourceVoltage: 9, Resistance: 0.01},
		{ID: 2, Kind: circuit.KindResistor, Resistance: 100},
	}
	wires := []circuit.Wire{{ID: 1, From: 1, To: 2}, {ID: 2, From: 2, To: 1}}
	before := Fingerprint(base, wires)

	solved := make([]circuit.Component, len(base))
	copy(solved, base)
	for i := range solved {
		solved[i].Current = 0.09
		solved[i].VoltageDrop = 9
		solved[i].Powered = true
	}
	after := Fingerprint(solved, wires)

	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("v[%d] changed with solver state: %v vs %v", i, before[i], after[i])
		}
	}
}

func TestFingerprintClampsExtremes(t *testing.T) {
	comps := []circuit.Component{
		{ID: 1, Kind: circuit.KindBattery, SourceVoltage: 5000, Resistance: 0.01},
	}
	wires := make([]circuit.Wire, 40)
	for i := range wires {
		wires[i] = circuit.Wire{ID: circuit.WireID(i + 1), From: 1, To: 1}
	}
	v := Fingerprint(comps, wires)
	for i, x := range v {
		if x < 0 || x > 1 {
			t.Fatalf("v[%d] = %v outside [0, 1]", i, x)
		}
	}
}
