package library

import (
	"context"
	"fmt"
	"time"

	"github.com/VoltSim/voltsim-mvp/engine/circuit"
	"github.com/VoltSim/voltsim-mvp/pkg/repo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// Store persists circuit snapshots in Neo4j as
// (:Circuit)-[:HAS_PART]->(:Part) graphs with (:Part)-[:CONNECTS_TO]->(:Part)
// wire relationships.
type Store struct {
	driver   neo4j.DriverWithContext
	circuits *repo.Neo4jRepo[Meta, string]
}

// NewStore creates a Store on top of an open Neo4j driver.
func NewStore(driver neo4j.DriverWithContext) *Store {
	return &Store{
		driver:   driver,
		circuits: newCircuitRepo(driver),
	}
}

func newCircuitRepo(driver neo4j.DriverWithContext) *repo.Neo4jRepo[Meta, string] {
	return repo.NewNeo4jRepo[Meta, string](driver, "Circuit", metaToMap, metaFromRecord)
}

// SaveSnapshot writes the snapshot as one transaction: the circuit node,
// its part nodes, and the wire relationships between them.
func (s *Store) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		meta := snap.Metadata()
		if _, err := tx.Run(ctx,
			`MERGE (c:Circuit {id: $id}) SET c += $props`,
			map[string]any{"id": snap.ID, "props": metaToMap(meta)},
		); err != nil {
			return nil, err
		}

		// Replace semantics: drop previous parts so re-archiving the
		// same id cannot leave orphans behind.
		if _, err := tx.Run(ctx,
			`MATCH (:Circuit {id: $id})-[:HAS_PART]->(p:Part) DETACH DELETE p`,
			map[string]any{"id": snap.ID},
		); err != nil {
			return nil, err
		}

		for _, comp := range snap.Components {
			if _, err := tx.Run(ctx,
				`MATCH (c:Circuit {id: $circuit})
				 MERGE (p:Part {id: $id}) SET p += $props
				 MERGE (c)-[:HAS_PART]->(p)`,
				map[string]any{
					"circuit": snap.ID,
					"id":      partID(snap.ID, comp.ID),
					"props":   partToMap(comp),
				},
			); err != nil {
				return nil, err
			}
		}

		for _, w := range snap.Wires {
			if _, err := tx.Run(ctx,
				`MATCH (a:Part {id: $from}), (b:Part {id: $to})
				 MERGE (a)-[r:CONNECTS_TO {id: $id}]->(b)
				 SET r.from_slot = $fromSlot, r.to_slot = $toSlot`,
				map[string]any{
					"from":     partID(snap.ID, w.From),
					"to":       partID(snap.ID, w.To),
					"id":       int64(w.ID),
					"fromSlot": string(w.FromSlot),
					"toSlot":   string(w.ToSlot),
				},
			); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// LoadSnapshot reads one archived circuit back into a Snapshot.
func (s *Store) LoadSnapshot(ctx context.Context, id string) (Snapshot, error) {
	meta, err := s.circuits.Get(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{ID: meta.ID, Name: meta.Name, CreatedAt: meta.CreatedAt}

	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	parts, err := sess.Run(ctx,
		`MATCH (:Circuit {id: $id})-[:HAS_PART]->(p:Part)
		 RETURN p ORDER BY p.comp`,
		map[string]any{"id": id})
	if err != nil {
		return Snapshot{}, err
	}
	for parts.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](parts.Record(), "p")
		if err != nil {
			return Snapshot{}, err
		}
		snap.Components = append(snap.Components, partFromProps(node.Props))
	}

	wires, err := sess.Run(ctx,
		`MATCH (:Circuit {id: $id})-[:HAS_PART]->(a:Part)-[r:CONNECTS_TO]->(b:Part)
		 RETURN r, a.comp AS from, b.comp AS to ORDER BY r.id`,
		map[string]any{"id": id})
	if err != nil {
		return Snapshot{}, err
	}
	for wires.Next(ctx) {
		rec := wires.Record()
		rel, _, err := neo4j.GetRecordValue[dbtype.Relationship](rec, "r")
		if err != nil {
			return Snapshot{}, err
		}
		from, _ := rec.Get("from")
		to, _ := rec.Get("to")
		snap.Wires = append(snap.Wires, wireFromProps(rel.Props, from, to))
	}
	return snap, nil
}

// ListCircuits returns archive metadata pages in stable id order, so
// repeated listings paginate consistently.
func (s *Store) ListCircuits(ctx context.Context, offset, limit int) ([]Meta, error) {
	return s.circuits.List(ctx, repo.ListOpts{Offset: offset, Limit: limit})
}

// DeleteCircuit removes a circuit and its parts.
func (s *Store) DeleteCircuit(ctx context.Context, id string) error {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	_, err := sess.Run(ctx,
		`MATCH (c:Circuit {id: $id})
		 OPTIONAL MATCH (c)-[:HAS_PART]->(p:Part)
		 DETACH DELETE c, p`,
		map[string]any{"id": id})
	return err
}

// --- mapping helpers ---

// partID namespaces a component id under its circuit so parts of
// different archived circuits never collide.
func partID(circuitID string, comp circuit.ComponentID) string {
	return fmt.Sprintf("%s-%d", circuitID, comp)
}

func metaToMap(m Meta) map[string]any {
	return map[string]any{
		"id":         m.ID,
		"name":       m.Name,
		"created_at": m.CreatedAt.UTC().Format(time.RFC3339Nano),
		"components": m.Components,
		"wires":      m.Wires,
	}
}

func metaFromRecord(rec *neo4j.Record) (Meta, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return Meta{}, err
	}
	return metaFromProps(node.Props), nil
}

func metaFromProps(props map[string]any) Meta {
	m := Meta{
		ID:         strProp(props, "id"),
		Name:       strProp(props, "name"),
		Components: intProp(props, "components"),
		Wires:      intProp(props, "wires"),
	}
	if ts, err := time.Parse(time.RFC3339Nano, strProp(props, "created_at")); err == nil {
		m.CreatedAt = ts
	}
	return m
}

func partToMap(c circuit.Component) map[string]any {
	return map[string]any{
		"comp":           int64(c.ID),
		"kind":           string(c.Kind),
		"x":              c.Position.X,
		"y":              c.Position.Y,
		"resistance":     c.Resistance,
		"source_voltage": c.SourceVoltage,
		"closed":         c.Closed,
		"forward_drop":   c.ForwardDrop,
		"rated_current":  c.RatedCurrent,
	}
}

func partFromProps(props map[string]any) circuit.Component {
	return circuit.Component{
		ID:            circuit.ComponentID(intProp(props, "comp")),
		Kind:          circuit.Kind(strProp(props, "kind")),
		Position:      circuit.Point{X: floatProp(props, "x"), Y: floatProp(props, "y")},
		Resistance:    floatProp(props, "resistance"),
		SourceVoltage: floatProp(props, "source_voltage"),
		Closed:        boolProp(props, "closed"),
		ForwardDrop:   floatProp(props, "forward_drop"),
		RatedCurrent:  floatProp(props, "rated_current"),
	}
}

func wireFromProps(props map[string]any, from, to any) circuit.Wire {
	w := circuit.Wire{
		ID:       circuit.WireID(intProp(props, "id")),
		FromSlot: circuit.Terminal(strProp(props, "from_slot")),
		ToSlot:   circuit.Terminal(strProp(props, "to_slot")),
	}
	if v, ok := from.(int64); ok {
		w.From = circuit.ComponentID(v)
	}
	if v, ok := to.(int64); ok {
		w.To = circuit.ComponentID(v)
	}
	return w
}

func strProp(props map[string]any, key string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return ""
}

func intProp(props map[string]any, key string) int64 {
	if n, ok := props[key].(int64); ok {
		return n
	}
	return 0
}

func floatProp(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func boolProp(props map[string]any, key string) bool {
	if b, ok := props[key].(bool); ok {
		return b
	}
	return false
}
