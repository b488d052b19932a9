// Package main seeds the circuit archive with canonical teaching
// circuits so a fresh deployment has examples to list, restore, and
// match against.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/VoltSim/voltsim-mvp/engine/circuit"
	"github.com/VoltSim/voltsim-mvp/engine/library"
	"github.com/VoltSim/voltsim-mvp/engine/session"
	"github.com/VoltSim/voltsim-mvp/engine/similarity"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("seed failed", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx := context.Background()

	driver, err := neo4j.NewDriverWithContext(
		envOr("NEO4J_URL", "neo4j://localhost:7687"),
		neo4j.BasicAuth(envOr("NEO4J_USER", "neo4j"), envOr("NEO4J_PASS", "password"), ""),
	)
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)
	archive := library.NewStore(driver)

	vectors, err := similarity.New(envOr("QDRANT_URL", "localhost:6334"), envOr("QDRANT_COLLECTION", "voltsim-circuits"))
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectors.Close()
	if err := vectors.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("qdrant collection: %w", err)
	}

	seeds := []struct {
		name  string
		build func(ctx context.Context, s *session.Session) error
	}{
		{"series loop", buildSeriesLoop},
		{"switch demo", buildSwitchDemo},
		{"meter rig", buildMeterRig},
	}

	for _, seed := range seeds {
		s := session.New(library.NewID(), session.Options{Logger: logger})
		if err := seed.build(ctx, s); err != nil {
			return fmt.Errorf("build %q: %w", seed.name, err)
		}

		snap := library.NewSnapshot(library.NewID(), seed.name, s.Components(), s.Wires())
		if err := archive.SaveSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("save %q: %w", seed.name, err)
		}
		if err := vectors.Upsert(ctx, []similarity.Record{{
			ID:         snap.ID,
			Vector:     similarity.Fingerprint(snap.Components, snap.Wires),
			Name:       snap.Name,
			Components: len(snap.Components),
			Wires:      len(snap.Wires),
		}}); err != nil {
			return fmt.Errorf("index %q: %w", seed.name, err)
		}
		logger.Info("seeded circuit", "name", seed.name, "id", snap.ID,
			"components", len(snap.Components), "wires", len(snap.Wires))
	}
	return nil
}

// buildSeriesLoop wires a battery through two resistors and back.
func buildSeriesLoop(ctx context.Context, s *session.Session) error {
	bat, err := s.PlaceComponent(ctx, circuit.KindBattery, circuit.Point{X: 0, Y: 0})
	if err != nil {
		return err
	}
	r1, err := s.PlaceComponent(ctx, circuit.KindResistor, circuit.Point{X: 100, Y: 0})
	if err != nil {
		return err
	}
	r2, err := s.PlaceComponent(ctx, circuit.KindResistor, circuit.Point{X: 100, Y: 100})
	if err != nil {
		return err
	}
	return wireRing(ctx, s, bat, r1, r2)
}

// buildSwitchDemo wires a battery, a switch, and a bulb in series.
func buildSwitchDemo(ctx context.Context, s *session.Session) error {
	bat, err := s.PlaceComponent(ctx, circuit.KindBattery, circuit.Point{X: 0, Y: 0})
	if err != nil {
		return err
	}
	sw, err := s.PlaceComponent(ctx, circuit.KindSwitch, circuit.Point{X: 100, Y: 0})
	if err != nil {
		return err
	}
	bulb, err := s.PlaceComponent(ctx, circuit.KindBulb, circuit.Point{X: 100, Y: 100})
	if err != nil {
		return err
	}
	return wireRing(ctx, s, bat, sw, bulb)
}

// buildMeterRig puts an ammeter and a voltmeter in the loop alongside a
// resistor. Meters add no load, so the voltmeter reads the resistor's
// drop and the ammeter reads the loop current.
func buildMeterRig(ctx context.Context, s *session.Session) error {
	bat, err := s.PlaceComponent(ctx, circuit.KindBattery, circuit.Point{X: 0, Y: 0})
	if err != nil {
		return err
	}
	res, err := s.PlaceComponent(ctx, circuit.KindResistor, circuit.Point{X: 100, Y: 0})
	if err != nil {
		return err
	}
	volt, err := s.PlaceComponent(ctx, circuit.KindVoltmeter, circuit.Point{X: 200, Y: 0})
	if err != nil {
		return err
	}
	amp, err := s.PlaceComponent(ctx, circuit.KindAmmeter, circuit.Point{X: 100, Y: 100})
	if err != nil {
		return err
	}
	return wireRing(ctx, s, bat, res, volt, amp)
}

// wireRing connects ids in a closed ring through the session's terminal
// state machine.
func wireRing(ctx context.Context, s *session.Session, ids ...circuit.ComponentID) error {
	for i, id := range ids {
		next := ids[(i+1)%len(ids)]
		if err := clickPair(ctx, s, id, circuit.TerminalRight, next, circuit.TerminalLeft); err != nil {
			return err
		}
	}
	return nil
}

func clickPair(ctx context.Context, s *session.Session, a circuit.ComponentID, at circuit.Terminal, b circuit.ComponentID, bt circuit.Terminal) error {
	if _, err := s.TerminalClick(ctx, a, at); err != nil {
		return err
	}
	_, err := s.TerminalClick(ctx, b, bt)
	return err
}
