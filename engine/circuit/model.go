// Package circuit defines the circuit data model and the topology store:
// components, wires, terminals, and the id-keyed arena that owns them.
// It is the ground-truth graph for the solver pipeline and holds no
// derived state beyond the per-component solve outputs.
package circuit

// Kind identifies a component variant. The set is closed; the solver and
// the render projector match on it exhaustively.
type Kind string

const (
	KindResistor  Kind = "resistor"
	KindCapacitor Kind = "capacitor"
	KindInductor  Kind = "inductor"
	KindBattery   Kind = "battery"
	KindGround    Kind = "ground"
	KindDiode     Kind = "diode"
	KindLED       Kind = "led"
	KindSwitch    Kind = "switch"
	KindBulb      Kind = "bulb"
	KindVoltmeter Kind = "voltmeter"
	KindAmmeter   Kind = "ammeter"
)

// ValidKinds is the set of recognised component kinds.
var ValidKinds = map[Kind]bool{
	KindResistor: true, KindCapacitor: true, KindInductor: true,
	KindBattery: true, KindGround: true, KindDiode: true,
	KindLED: true, KindSwitch: true, KindBulb: true,
	KindVoltmeter: true, KindAmmeter: true,
}

// IsMeter reports whether the kind is a measuring instrument. Meters are
// excluded from series resistance sums and never receive a voltage drop.
func (k Kind) IsMeter() bool {
	return k == KindVoltmeter || k == KindAmmeter
}

// Terminal names one of a component's four connection slots.
type Terminal string

const (
	TerminalTop    Terminal = "top"
	TerminalBottom Terminal = "bottom"
	TerminalLeft   Terminal = "left"
	TerminalRight  Terminal = "right"
)

// ValidTerminals is the set of recognised terminal slots.
var ValidTerminals = map[Terminal]bool{
	TerminalTop: true, TerminalBottom: true,
	TerminalLeft: true, TerminalRight: true,
}

// ComponentID identifies a component within one topology.
type ComponentID int64

// WireID identifies a wire within one topology.
type WireID int64

// Point is a 2D placement coordinate. It has no electrical meaning.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Component is a node in the circuit graph. Resistance, SourceVoltage
// and the kind-specific extras are user-editable inputs; Current,
// VoltageDrop, Reading and Powered are solver outputs reset at the start
// of every recompute.
type Component struct {
	ID       ComponentID `json:"id"`
	Kind     Kind        `json:"kind"`
	Position Point       `json:"position"`

	Resistance    float64 `json:"resistance"`
	SourceVoltage float64 `json:"source_voltage"`

	Current     float64 `json:"current"`
	VoltageDrop float64 `json:"voltage_drop"`
	Powered     bool    `json:"powered"`

	// Kind-specific extras.
	Closed       bool    `json:"closed,omitempty"`        // switch
	ForwardDrop  float64 `json:"forward_drop,omitempty"`  // diode, led
	RatedCurrent float64 `json:"rated_current,omitempty"` // bulb
	Reading      float64 `json:"reading,omitempty"`       // voltmeter, ammeter
}

// Wire is an edge connecting two distinct components at named terminals.
// Multiple wires may share a terminal; that models a junction.
type Wire struct {
	ID       WireID      `json:"id"`
	From     ComponentID `json:"from"`
	FromSlot Terminal    `json:"from_slot"`
	To       ComponentID `json:"to"`
	ToSlot   Terminal    `json:"to_slot"`
}

// Nominal electrical defaults assigned at placement. Capacitors and
// inductors get fixed lumped resistances: the solver is a DC Ohm's-law
// model, not a time-domain one.
const (
	DefaultResistorOhms  = 100.0
	DefaultCapacitorOhms = 1000.0
	DefaultInductorOhms  = 10.0
	DefaultBatteryVolts  = 9.0
	BatteryInternalOhms  = 0.01
	DefaultDiodeOhms     = 1.0
	DiodeForwardDrop     = 0.7
	DefaultLEDOhms       = 20.0
	LEDForwardDrop       = 2.0
	SwitchClosedOhms     = 0.01
	DefaultBulbOhms      = 10.0
	DefaultBulbRatedAmps = 0.3
)

// NewComponent creates a component of the given kind at a position, with
// the kind's nominal electrical defaults. The id is assigned by the
// topology on insertion.
func NewComponent(kind Kind, pos Point) Component {
	c := Component{Kind: kind, Position: pos}
	switch kind {
	case KindResistor:
		c.Resistance = DefaultResistorOhms
	case KindCapacitor:
		c.Resistance = DefaultCapacitorOhms
	case KindInductor:
		c.Resistance = DefaultInductorOhms
	case KindBattery:
		c.Resistance = BatteryInternalOhms
		c.SourceVoltage = DefaultBatteryVolts
	case KindGround:
		// Ground is always a zero-resistance reference.
	case KindDiode:
		c.Resistance = DefaultDiodeOhms
		c.ForwardDrop = DiodeForwardDrop
	case KindLED:
		c.Resistance = DefaultLEDOhms
		c.ForwardDrop = LEDForwardDrop
	case KindSwitch:
		c.Resistance = SwitchClosedOhms
		c.Closed = true
	case KindBulb:
		c.Resistance = DefaultBulbOhms
		c.RatedCurrent = DefaultBulbRatedAmps
	case KindVoltmeter, KindAmmeter:
		// Meters do not load the circuit in the lumped model.
	}
	return c
}

// Conducting reports whether current can pass through the component. An
// open switch is the only non-conducting state; its edges are dropped
// during adjacency construction rather than stamped with a resistance.
func (c *Component) Conducting() bool {
	return c.Kind != KindSwitch || c.Closed
}
