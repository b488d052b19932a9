// Package main implements the VoltSim API server: HTTP access to live
// simulation sessions, the circuit archive, and similar-circuit search.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VoltSim/voltsim-mvp/engine/library"
	"github.com/VoltSim/voltsim-mvp/engine/session"
	"github.com/VoltSim/voltsim-mvp/engine/similarity"
	"github.com/VoltSim/voltsim-mvp/pkg/metrics"
	"github.com/VoltSim/voltsim-mvp/pkg/mid"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Config holds all environment-based configuration.
type Config struct {
	Port       string
	NATSURL    string
	Neo4jURL   string
	Neo4jUser  string
	Neo4jPass  string
	QdrantURL  string
	Collection string
	CORSOrigin string
}

func loadConfig() Config {
	return Config{
		Port:       envOr("PORT", "8080"),
		NATSURL:    envOr("NATS_URL", nats.DefaultURL),
		Neo4jURL:   envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:  envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:  envOr("NEO4J_PASS", "password"),
		QdrantURL:  envOr("QDRANT_URL", "localhost:6334"),
		Collection: envOr("QDRANT_COLLECTION", "voltsim-circuits"),
		CORSOrigin: envOr("CORS_ORIGIN", "*"),
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
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to NATS ---
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("voltsim-api"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	// --- Connect to Neo4j ---
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)

	archive := library.NewStore(driver)

	// --- Connect to Qdrant ---
	vectors, err := similarity.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectors.Close()

	if err := vectors.EnsureCollection(ctx); err != nil {
		logger.Warn("qdrant collection check failed", "err", err)
	}

	// --- Build HTTP server ---
	registry := metrics.New()
	srv := newServer(serverDeps{
		logger:  logger,
		metrics: registry,
		archive: archive,
		vectors: vectors,
		sessionOpts: session.Options{
			Logger:   logger,
			Notifier: &natsNotifier{nc: nc, logger: logger},
			Metrics:  registry,
		},
	})

	handler := mid.Chain(srv.routes(),
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("voltsim-api"),
	)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}
