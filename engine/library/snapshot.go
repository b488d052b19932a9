// Package library is the shared circuit archive: snapshots of circuit
// topologies persisted as small graphs in Neo4j, so solved circuits can
// be listed, reloaded into a session, and fed to the similarity index.
package library

import (
	"fmt"
	"time"

	"github.com/VoltSim/voltsim-mvp/engine/circuit"
)

// Snapshot is a self-contained copy of one circuit topology. IDs inside
// the component and wire lists are session-local; Restore remaps them.
type Snapshot struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	CreatedAt  time.Time           `json:"created_at"`
	Components []circuit.Component `json:"components"`
	Wires      []circuit.Wire      `json:"wires"`
}

// Meta is the archive listing entry for a snapshot.
type Meta struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	Components int64     `json:"components"`
	Wires      int64     `json:"wires"`
}

// NewSnapshot captures components and wires under an archive id.
func NewSnapshot(id, name string, components []circuit.Component, wires []circuit.Wire) Snapshot {
	return Snapshot{
		ID:         id,
		Name:       name,
		CreatedAt:  time.Now().UTC(),
		Components: components,
		Wires:      wires,
	}
}

// Restore rebuilds a fresh topology from the snapshot, replaying
// placements and wirings through the store's own mutation surface so
// the arena assigns new ids. Solver outputs are not carried over; the
// next recompute regenerates them.
func (s Snapshot) Restore() (*circuit.Topology, error) {
	topo := circuit.NewTopology()
	remap := make(map[circuit.ComponentID]circuit.ComponentID, len(s.Components))

	for _, c := range s.Components {
		id, err := topo.AddComponent(c.Kind, c.Position)
		if err != nil {
			return nil, fmt.Errorf("library: restore component %d: %w", c.ID, err)
		}
		remap[c.ID] = id
		patch := circuit.Patch{Closed: &c.Closed}
		if c.Resistance > 0 {
			patch.Resistance = &c.Resistance
		}
		if c.SourceVoltage > 0 {
			patch.SourceVoltage = &c.SourceVoltage
		}
		if c.ForwardDrop > 0 {
			patch.ForwardDrop = &c.ForwardDrop
		}
		if c.RatedCurrent > 0 {
			patch.RatedCurrent = &c.RatedCurrent
		}
		if err := topo.UpdateComponent(id, patch); err != nil {
			return nil, fmt.Errorf("library: restore component %d: %w", c.ID, err)
		}
	}

	for _, w := range s.Wires {
		from, ok := remap[w.From]
		if !ok {
			continue // dangling wire in the stored snapshot
		}
		to, ok := remap[w.To]
		if !ok {
			continue
		}
		if _, err := topo.AddWire(from, w.FromSlot, to, w.ToSlot); err != nil {
			return nil, fmt.Errorf("library: restore wire %d: %w", w.ID, err)
		}
	}
	return topo, nil
}

// Metadata summarises the snapshot for listings.
func (s Snapshot) Metadata() Meta {
	return Meta{
		ID:         s.ID,
		Name:       s.Name,
		CreatedAt:  s.CreatedAt,
		Components: int64(len(s.Components)),
		Wires:      int64(len(s.Wires)),
	}
}
