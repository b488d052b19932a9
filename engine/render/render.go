// Package render maps solved component state to the attributes the
// external drawing layer consumes. Projection is pure: nothing here
// mutates the topology, and the drawing layer queries it after every
// recompute.
package render

import (
	"fmt"

	"github.com/VoltSim/voltsim-mvp/engine/circuit"
	"github.com/VoltSim/voltsim-mvp/engine/solve"
)

// LEDReferenceAmps is the nominal current at which an LED reaches full
// glow intensity.
const LEDReferenceAmps = 0.02

// ReadingPrecision is the number of decimals in formatted meter readouts.
const ReadingPrecision = 3

// Attributes is the visual state of one component.
type Attributes struct {
	Kind    circuit.Kind `json:"kind"`
	Powered bool         `json:"powered"`
	Glow    float64      `json:"glow,omitempty"`    // bulb, led: 0..1
	Icon    string       `json:"icon,omitempty"`    // switch: "open" or "closed"
	Reading string       `json:"reading,omitempty"` // voltmeter, ammeter
}

// Project computes the render attributes for a component.
func Project(c circuit.Component) Attributes {
	attrs := Attributes{Kind: c.Kind, Powered: c.Powered}
	switch c.Kind {
	case circuit.KindBulb:
		attrs.Glow = bulbGlow(c)
	case circuit.KindLED:
		attrs.Glow = ledGlow(c)
	case circuit.KindSwitch:
		if c.Closed {
			attrs.Icon = "closed"
		} else {
			attrs.Icon = "open"
		}
	case circuit.KindVoltmeter:
		attrs.Reading = formatReading(c.Reading, "V")
	case circuit.KindAmmeter:
		attrs.Reading = formatReading(c.Reading, "A")
	case circuit.KindResistor, circuit.KindCapacitor, circuit.KindInductor,
		circuit.KindBattery, circuit.KindGround, circuit.KindDiode:
		// No extra visual state beyond the powered flag.
	}
	return attrs
}

// bulbGlow scales brightness by the drop relative to the bulb's rated
// operating point, clamped to full intensity.
func bulbGlow(c circuit.Component) float64 {
	if !c.Powered || c.Current <= solve.PoweredEpsilon {
		return 0
	}
	rated := c.Resistance * c.RatedCurrent
	if rated <= 0 {
		return 1
	}
	return clamp01(c.VoltageDrop / rated)
}

// ledGlow scales brightness by current relative to the nominal LED
// reference current.
func ledGlow(c circuit.Component) float64 {
	if !c.Powered || c.Current <= solve.PoweredEpsilon {
		return 0
	}
	return clamp01(c.Current / LEDReferenceAmps)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func formatReading(v float64, unit string) string {
	return fmt.Sprintf("%.*f%s", ReadingPrecision, v, unit)
}
