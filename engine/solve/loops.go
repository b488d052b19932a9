package solve

import "github.com/VoltSim/voltsim-mvp/engine/circuit"

// Loop is a simple cycle of component ids beginning at a battery. The
// source appears once, at index 0; the final hop back to it is implied.
type Loop []circuit.ComponentID

// FindLoops enumerates simple cycles that start and end at source,
// walking the adjacency edges depth-first with backtracking. A return
// to the source after at least two hops counts as a discovered loop,
// provided the closing hop does not reuse the wire the path arrived on:
// a single wire out and straight back is not a circuit, but two
// parallel wires between a battery and one component are. Recursion
// depth is capped at maxDepth — callers pass component count + 1 — so
// termination is guaranteed even on densely interconnected graphs. A
// component may appear in many discovered loops but never twice within
// one.
//
// This is cycle enumeration, not mesh analysis: each loop is later
// solved independently, and a later loop may overwrite values a shared
// component received from an earlier one.
func FindLoops(adj Adjacency, source circuit.ComponentID, maxDepth int) []Loop {
	var loops []Loop
	visited := map[circuit.ComponentID]bool{source: true}
	path := Loop{source}

	var dfs func(at circuit.ComponentID, via circuit.WireID)
	dfs = func(at circuit.ComponentID, via circuit.WireID) {
		if len(path) > maxDepth {
			return
		}
		for _, e := range adj[at] {
			if e.To == source {
				// len(path) counts nodes; two nodes means the return
				// hop is the second hop, the minimal accepted cycle.
				if len(path) >= 2 && e.Wire != via {
					loop := make(Loop, len(path))
					copy(loop, path)
					loops = append(loops, loop)
				}
				continue
			}
			if visited[e.To] {
				continue
			}
			visited[e.To] = true
			path = append(path, e.To)
			dfs(e.To, e.Wire)
			path = path[:len(path)-1]
			visited[e.To] = false
		}
	}
	dfs(source, 0)
	return loops
}
