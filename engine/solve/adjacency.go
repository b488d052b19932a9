// Package solve implements the recompute pipeline for a circuit
// topology: adjacency construction, per-battery loop discovery, and the
// lumped Ohm's-law solve that assigns current and voltage drop to every
// component. The model is deliberately a pedagogical DC series
// approximation, not mesh or nodal analysis.
package solve

import (
	"sort"

	"github.com/VoltSim/voltsim-mvp/engine/circuit"
)

// Edge is one traversable hop: the neighbor it reaches and the wire it
// rides on. Keeping the wire identity lets the loop finder refuse to
// double back over the wire it just used, so a component dangling off
// the battery on a single wire never reads as a closed circuit.
type Edge struct {
	To   circuit.ComponentID
	Wire circuit.WireID
}

// Adjacency maps each component id to its outgoing edges. Parallel
// wires between the same pair stay distinct edges.
type Adjacency map[circuit.ComponentID][]Edge

// BuildAdjacency derives the adjacency map from the topology's wires.
// It is rebuilt from scratch on every recompute — never cached. An edge
// is omitted when either endpoint is an open switch (the broken path),
// and wires whose endpoints no longer exist are dropped silently:
// cascading deletes are expected to prevent them, so a dangling wire is
// not worth raising over. Edge lists are sorted by neighbor id then
// wire id so loop discovery order is stable across runs.
func BuildAdjacency(topo *circuit.Topology) Adjacency {
	adj := make(Adjacency)
	for _, w := range topo.Wires() {
		from, ok := topo.Component(w.From)
		if !ok {
			continue
		}
		to, ok := topo.Component(w.To)
		if !ok {
			continue
		}
		if !from.Conducting() || !to.Conducting() {
			continue
		}
		adj[w.From] = append(adj[w.From], Edge{To: w.To, Wire: w.ID})
		adj[w.To] = append(adj[w.To], Edge{To: w.From, Wire: w.ID})
	}
	for id, edges := range adj {
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].To != edges[j].To {
				return edges[i].To < edges[j].To
			}
			return edges[i].Wire < edges[j].Wire
		})
		adj[id] = edges
	}
	return adj
}
