package solve

import "github.com/VoltSim/voltsim-mvp/engine/circuit"

const (
	// MinLoopResistance floors the series sum so a bare-wire short
	// divides by an epsilon instead of zero.
	MinLoopResistance = 0.01
	// PoweredEpsilon is the current threshold below which a component
	// counts as unpowered.
	PoweredEpsilon = 1e-6
)

// Report summarises one full recompute.
type Report struct {
	Batteries int `json:"batteries"`
	Loops     int `json:"loops"`
}

// Run performs a full recompute: reset derived state, rebuild adjacency,
// discover loops per battery, and solve each loop with the lumped
// series model. Batteries are visited in ascending id order and loops in
// discovery order, so repeated runs on an unchanged topology yield
// bit-identical results. With no battery, or none with a discoverable
// loop, everything stays at the zeroed resting state.
func Run(topo *circuit.Topology) Report {
	topo.ResetDerived()
	adj := BuildAdjacency(topo)
	maxDepth := topo.ComponentCount() + 1

	var report Report
	for _, c := range topo.Components() {
		if c.Kind != circuit.KindBattery {
			continue
		}
		report.Batteries++
		for _, loop := range FindLoops(adj, c.ID, maxDepth) {
			solveLoop(topo, adj, loop)
			report.Loops++
		}
	}
	return report
}

// solveLoop applies the lumped series model to one discovered loop:
// total source voltage over total series resistance gives the loop
// current, and every non-source, non-meter member gets its Ohm's-law
// share. Later loops overwrite shared components solved by earlier
// ones; that is the accepted single-loop-at-a-time scope of this tool.
func solveLoop(topo *circuit.Topology, adj Adjacency, loop Loop) {
	var totalVoltage, totalResistance float64
	for _, id := range loop {
		c, ok := topo.Component(id)
		if !ok {
			continue
		}
		switch {
		case c.Kind == circuit.KindBattery:
			totalVoltage += c.SourceVoltage
			totalResistance += c.Resistance // internal resistance
		case c.Kind.IsMeter():
			// Meters do not load the loop.
		default:
			totalResistance += c.Resistance
		}
	}
	if totalResistance <= 0 {
		totalResistance = MinLoopResistance
	}
	current := totalVoltage / totalResistance

	// First pass assigns the resistive members so voltmeters can read a
	// settled neighbor drop in the second pass.
	for _, id := range loop {
		c, ok := topo.Component(id)
		if !ok || c.Kind.IsMeter() {
			continue
		}
		if c.Kind == circuit.KindBattery {
			c.Current = current
			c.Powered = true
			continue
		}
		c.Current = current
		c.VoltageDrop = current * c.Resistance
		c.Powered = current > PoweredEpsilon
	}

	for _, id := range loop {
		c, ok := topo.Component(id)
		if !ok || !c.Kind.IsMeter() {
			continue
		}
		c.Current = current
		c.Powered = current > PoweredEpsilon
		switch c.Kind {
		case circuit.KindVoltmeter:
			c.Reading = voltmeterReading(topo, adj, c.ID, totalVoltage)
		case circuit.KindAmmeter:
			c.Reading = current
		}
	}
}

// voltmeterReading returns the voltage drop of the meter's first wired
// non-meter neighbor, falling back to the loop's total voltage when no
// suitable neighbor exists.
func voltmeterReading(topo *circuit.Topology, adj Adjacency, id circuit.ComponentID, totalVoltage float64) float64 {
	for _, e := range adj[id] {
		n, ok := topo.Component(e.To)
		if !ok || n.Kind.IsMeter() {
			continue
		}
		return n.VoltageDrop
	}
	return totalVoltage
}
