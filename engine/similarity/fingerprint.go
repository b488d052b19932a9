// Package similarity indexes archived circuits by a topology fingerprint
// vector in Qdrant, so the API can suggest structurally similar example
// circuits for whatever a user is building.
package similarity

import (
	"math"

	"github.com/VoltSim/voltsim-mvp/engine/circuit"
)

// FingerprintDims is the fixed dimensionality of the topology vector:
// eleven kind fractions followed by five shape features.
const FingerprintDims = 16

// kindOrder fixes the histogram layout of the fingerprint.
var kindOrder = []circuit.Kind{
	circuit.KindResistor, circuit.KindCapacitor, circuit.KindInductor,
	circuit.KindBattery, circuit.KindGround, circuit.KindDiode,
	circuit.KindLED, circuit.KindSwitch, circuit.KindBulb,
	circuit.KindVoltmeter, circuit.KindAmmeter,
}

// Fingerprint reduces a topology to a fixed-size feature vector. The
// encoding only looks at structure and nominal parameters, never at
// solver outputs, so the same circuit fingerprints identically before
// and after a recompute.
func Fingerprint(components []circuit.Component, wires []circuit.Wire) []float32 {
	v := make([]float32, FingerprintDims)
	n := len(components)
	if n == 0 {
		return v
	}

	counts := make(map[circuit.Kind]int, len(kindOrder))
	closedSwitches, switches := 0, 0
	var totalVoltage, totalResistance float64
	for _, c := range components {
		counts[c.Kind]++
		if c.Kind == circuit.KindSwitch {
			switches++
			if c.Closed {
				closedSwitches++
			}
		}
		totalVoltage += c.SourceVoltage
		totalResistance += c.Resistance
	}
	for i, k := range kindOrder {
		v[i] = float32(counts[k]) / float32(n)
	}

	// Shape features, each clamped to [0, 1].
	v[11] = clamp1(float64(len(wires)) / float64(2*n)) // wire density
	v[12] = clamp1(meanDegree(components, wires) / 4)  // four terminals max
	if switches > 0 {
		v[13] = float32(closedSwitches) / float32(switches)
	} else {
		v[13] = 1
	}
	v[14] = clamp1(totalVoltage / 100)
	v[15] = clamp1(math.Log10(1+totalResistance) / 6)
	return v
}

func meanDegree(components []circuit.Component, wires []circuit.Wire) float64 {
	if len(components) == 0 {
		return 0
	}
	degree := make(map[circuit.ComponentID]int, len(components))
	for _, w := range wires {
		degree[w.From]++
		degree[w.To]++
	}
	total := 0
	for _, d := range degree {
		total += d
	}
	return float64(total) / float64(len(components))
}

func clamp1(v float64) float32 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return float32(v)
}
