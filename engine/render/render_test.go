package render

import (
	"math"
	"testing"

	"github.com/VoltSim/voltsim-mvp/engine/circuit"
)

func TestProjectBulbGlow(t *testing.T) {
	tests := []struct {
		name string
		comp circuit.Component
		want float64
	}{
		{
			name: "unpowered bulb is dark",
			comp: circuit.Component{Kind: circuit.KindBulb, Resistance: 10, RatedCurrent: 0.3},
			want: 0,
		},
		{
			name: "rated drop gives full glow",
			comp: circuit.Component{
				Kind: circuit.KindBulb, Powered: true,
				Resistance: 10, RatedCurrent: 0.3, Current: 0.3, VoltageDrop: 3,
			},
			want: 1,
		},
		{
			name: "half the rated drop gives half glow",
			comp: circuit.Component{
				Kind: circuit.KindBulb, Powered: true,
				Resistance: 10, RatedCurrent: 0.3, Current: 0.15, VoltageDrop: 1.5,
			},
			want: 0.5,
		},
		{
			name: "over-driven bulb clamps to one",
			comp: circuit.Component{
				Kind: circuit.KindBulb, Powered: true,
				Resistance: 10, RatedCurrent: 0.3, Current: 0.9, VoltageDrop: 9,
			},
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Project(tt.comp)
			if math.Abs(got.Glow-tt.want) > 1e-12 {
				t.Fatalf("Glow = %v, want %v", got.Glow, tt.want)
			}
		})
	}
}

func TestProjectLEDGlow(t *testing.T) {
	tests := []struct {
		name string
		comp circuit.Component
		want float64
	}{
		{
			name: "unpowered led is dark",
			comp: circuit.Component{Kind: circuit.KindLED},
			want: 0,
		},
		{
			name: "reference current gives full glow",
			comp: circuit.Component{Kind: circuit.KindLED, Powered: true, Current: LEDReferenceAmps},
			want: 1,
		},
		{
			name: "quarter reference current",
			comp: circuit.Component{Kind: circuit.KindLED, Powered: true, Current: 0.005},
			want: 0.25,
		},
		{
			name: "over-current clamps to one",
			comp: circuit.Component{Kind: circuit.KindLED, Powered: true, Current: 0.5},
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Project(tt.comp)
			if math.Abs(got.Glow-tt.want) > 1e-12 {
				t.Fatalf("Glow = %v, want %v", got.Glow, tt.want)
			}
		})
	}
}

func TestProjectSwitchIcon(t *testing.T) {
	open := Project(circuit.Component{Kind: circuit.KindSwitch, Closed: false})
	if open.Icon != "open" {
		t.Fatalf("Icon = %q, want open", open.Icon)
	}
	closed := Project(circuit.Component{Kind: circuit.KindSwitch, Closed: true})
	if closed.Icon != "closed" {
		t.Fatalf("Icon = %q, want closed", closed.Icon)
	}
}

func TestProjectMeterReadings(t *testing.T) {
	v := Project(circuit.Component{Kind: circuit.KindVoltmeter, Powered: true, Reading: 8.99910009})
	if v.Reading != "8.999V" {
		t.Fatalf("voltmeter Reading = %q, want 8.999V", v.Reading)
	}
	a := Project(circuit.Component{Kind: circuit.KindAmmeter, Powered: true, Reading: 0.0899910009})
	if a.Reading != "0.090A" {
		t.Fatalf("ammeter Reading = %q, want 0.090A", a.Reading)
	}
	idle := Project(circuit.Component{Kind: circuit.KindAmmeter})
	if idle.Reading != "0.000A" {
		t.Fatalf("idle ammeter Reading = %q, want 0.000A", idle.Reading)
	}
}

func TestProjectPlainComponents(t *testing.T) {
	got := Project(circuit.Component{Kind: circuit.KindResistor, Powered: true})
	if got.Glow != 0 || got.Icon != "" || got.Reading != "" {
		t.Fatalf("resistor should carry only the powered flag: %+v", got)
	}
	if !got.Powered || got.Kind != circuit.KindResistor {
		t.Fatalf("projection lost base fields: %+v", got)
	}
}
