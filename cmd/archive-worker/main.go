// Package main implements the archive worker: it consumes solved-circuit
// events from NATS and keeps a live snapshot of every session in the
// Neo4j archive and the Qdrant fingerprint index.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/VoltSim/voltsim-mvp/engine/library"
	"github.com/VoltSim/voltsim-mvp/engine/session"
	"github.com/VoltSim/voltsim-mvp/engine/similarity"
	"github.com/VoltSim/voltsim-mvp/pkg/fn"
	"github.com/VoltSim/voltsim-mvp/pkg/natsutil"
	"github.com/VoltSim/voltsim-mvp/pkg/resilience"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"golang.org/x/time/rate"
)

// Config holds all environment-based configuration.
type Config struct {
	NATSURL    string
	Neo4jURL   string
	Neo4jUser  string
	Neo4jPass  string
	QdrantURL  string
	Collection string
	WritesPerS float64
}

func loadConfig() Config {
	writes, err := strconv.ParseFloat(envOr("ARCHIVE_WRITES_PER_SECOND", "5"), 64)
	if err != nil || writes <= 0 {
		writes = 5
	}
	return Config{
		NATSURL:    envOr("NATS_URL", nats.DefaultURL),
		Neo4jURL:   envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:  envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:  envOr("NEO4J_PASS", "password"),
		QdrantURL:  envOr("QDRANT_URL", "localhost:6334"),
		Collection: envOr("QDRANT_COLLECTION", "voltsim-circuits"),
		WritesPerS: writes,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(loadConfig(), logger); err != nil {
		logger.Error("worker exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nc, err := nats.Connect(cfg.NATSURL, nats.Name("voltsim-archive-worker"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)

	vectors, err := similarity.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectors.Close()

	if err := vectors.EnsureCollection(ctx); err != nil {
		logger.Warn("qdrant collection check failed", "err", err)
	}

	w := &worker{
		archive: library.NewStore(driver),
		vectors: vectors,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		limiter: rate.NewLimiter(rate.Limit(cfg.WritesPerS), 1),
		logger:  logger,
	}
	pipeline := w.pipeline()

	sub, err := natsutil.Subscribe(nc, session.SolvedSubject, func(msgCtx context.Context, ev session.SolvedEvent) {
		if result := pipeline(msgCtx, ev); result.IsErr() {
			_, err := result.Unwrap()
			logger.Error("archive pipeline failed", "session", ev.SessionID, "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", session.SolvedSubject, err)
	}
	defer sub.Unsubscribe()

	logger.Info("archive worker running", "subject", session.SolvedSubject)
	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}

// archiver is the subset of the library store the worker needs.
type archiver interface {
	SaveSnapshot(ctx context.Context, snap library.Snapshot) error
}

// indexer is the subset of the similarity store the worker needs.
type indexer interface {
	Upsert(ctx context.Context, records []similarity.Record) error
}

type worker struct {
	archive archiver
	vectors indexer
	breaker *resilience.Breaker
	limiter *rate.Limiter
	logger  *slog.Logger
}

// pipeline builds the event handling stages: snapshot the event, persist
// it to the archive behind the rate limiter and breaker, then index its
// fingerprint.
func (w *worker) pipeline() fn.Stage[session.SolvedEvent, library.Snapshot] {
	snapshot := fn.MapStage(func(ev session.SolvedEvent) library.Snapshot {
		snap := library.NewSnapshot(ev.SessionID, "session "+short(ev.SessionID), ev.Components, ev.Wires)
		snap.CreatedAt = ev.SolvedAt
		return snap
	})

	persist := fn.Traced("archive.persist", func(ctx context.Context, snap library.Snapshot) fn.Result[library.Snapshot] {
		if err := w.limiter.Wait(ctx); err != nil {
			return fn.Errf[library.Snapshot]("rate limit wait: %w", err)
		}
		result := fn.Retry(ctx, retryPolicy, func(ctx context.Context) fn.Result[library.Snapshot] {
			err := w.breaker.Call(ctx, func(ctx context.Context) error {
				return w.archive.SaveSnapshot(ctx, snap)
			})
			return fn.FromPair(snap, err)
		})
		return result
	})

	index := fn.TapStage(func(ctx context.Context, snap library.Snapshot) {
		err := w.vectors.Upsert(ctx, []similarity.Record{{
			ID:         snap.ID,
			Vector:     similarity.Fingerprint(snap.Components, snap.Wires),
			Name:       snap.Name,
			Components: len(snap.Components),
			Wires:      len(snap.Wires),
		}})
		if err != nil {
			w.logger.Warn("fingerprint index failed", "circuit", snap.ID, "err", err)
		}
	})

	return fn.Then(fn.Then(snapshot, persist), index)
}

var retryPolicy = fn.RetryOpts{
	MaxAttempts: 3,
	InitialWait: 200 * time.Millisecond,
	MaxWait:     2 * time.Second,
	Jitter:      true,
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
