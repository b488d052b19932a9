package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/VoltSim/voltsim-mvp/engine/circuit"
	"github.com/VoltSim/voltsim-mvp/engine/library"
	"github.com/VoltSim/voltsim-mvp/engine/session"
	"github.com/VoltSim/voltsim-mvp/engine/similarity"
	"github.com/VoltSim/voltsim-mvp/pkg/metrics"
)

// archiveStore is the subset of the library store the handlers need.
type archiveStore interface {
	SaveSnapshot(ctx context.Context, snap library.Snapshot) error
	LoadSnapshot(ctx context.Context, id string) (library.Snapshot, error)
	ListCircuits(ctx context.Context, offset, limit int) ([]library.Meta, error)
}

// vectorIndex is the subset of the similarity store the handlers need.
type vectorIndex interface {
	Upsert(ctx context.Context, records []similarity.Record) error
	Search(ctx context.Context, vector []float32, topK int) ([]similarity.Hit, error)
}

type serverDeps struct {
	logger      *slog.Logger
	metrics     *metrics.Registry
	archive     archiveStore
	vectors     vectorIndex
	sessionOpts session.Options
}

type server struct {
	deps serverDeps

	mu       sync.RWMutex
	sessions map[string]*session.Session
	gauge    *metrics.Gauge
}

func newServer(deps serverDeps) *server {
	s := &server{
		deps:     deps,
		sessions: make(map[string]*session.Session),
	}
	if deps.metrics != nil {
		s.gauge = deps.metrics.Gauge("voltsim_sessions_live", "Currently open simulation sessions.")
	}
	return s
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSessionState)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleCloseSession)
	mux.HandleFunc("POST /api/sessions/{id}/components", s.handlePlaceComponent)
	mux.HandleFunc("POST /api/sessions/{id}/terminals", s.handleTerminalClick)
	mux.HandleFunc("PATCH /api/sessions/{id}/components/{cid}", s.handleEditComponent)
	mux.HandleFunc("POST /api/sessions/{id}/components/{cid}/toggle", s.handleToggleSwitch)
	mux.HandleFunc("DELETE /api/sessions/{id}/components/{cid}", s.handleDeleteComponent)
	mux.HandleFunc("DELETE /api/sessions/{id}/wires/{wid}", s.handleDeleteWire)
	mux.HandleFunc("GET /api/sessions/{id}/components/{cid}/render", s.handleRenderState)
	mux.HandleFunc("POST /api/sessions/{id}/archive", s.handleArchive)
	mux.HandleFunc("POST /api/sessions/{id}/restore", s.handleRestore)
	mux.HandleFunc("GET /api/circuits", s.handleListCircuits)
	mux.HandleFunc("GET /api/circuits/{id}/similar", s.handleSimilar)
	if s.deps.metrics != nil {
		mux.Handle("GET /metrics", s.deps.metrics.Handler())
	}
	return mux
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	id := library.NewID()
	sess := session.New(id, s.deps.sessionOpts)

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	if s.gauge != nil {
		s.gauge.Inc()
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "state": string(session.StateIdle)})
}

func (s *server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[r.PathValue("id")]
	s.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
	}
	return sess, ok
}

func (s *server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if s.gauge != nil {
		s.gauge.Dec()
	}
	w.WriteHeader(http.StatusNoContent)
}

// sessionStateResponse is the full observable state of a session.
type sessionStateResponse struct {
	ID         string                   `json:"id"`
	State      session.InteractionState `json:"state"`
	Batteries  int                      `json:"batteries"`
	Loops      int                      `json:"loops"`
	Components []circuit.Component      `json:"components"`
	Wires      []circuit.Wire           `json:"wires"`
}

func (s *server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	report := sess.Report()
	writeJSON(w, http.StatusOK, sessionStateResponse{
		ID:         sess.ID(),
		State:      sess.State(),
		Batteries:  report.Batteries,
		Loops:      report.Loops,
		Components: sess.Components(),
		Wires:      sess.Wires(),
	})
}

func (s *server) handlePlaceComponent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Kind circuit.Kind `json:"kind"`
		X    float64      `json:"x"`
		Y    float64      `json:"y"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := sess.PlaceComponent(r.Context(), req.Kind, circuit.Point{X: req.X, Y: req.Y})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *server) handleTerminalClick(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Component circuit.ComponentID `json:"component"`
		Terminal  circuit.Terminal    `json:"terminal"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := sess.TerminalClick(r.Context(), req.Component, req.Terminal)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleEditComponent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	cid, ok := pathID(w, r, "cid")
	if !ok {
		return
	}
	var req struct {
		Field string      `json:"field"`
		Value json.Number `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	value, err := req.Value.Float64()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "value must be numeric")
		return
	}
	if err := sess.EditComponent(r.Context(), circuit.ComponentID(cid), req.Field, value); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleToggleSwitch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	cid, ok := pathID(w, r, "cid")
	if !ok {
		return
	}
	closed, err := sess.ToggleSwitch(r.Context(), circuit.ComponentID(cid))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"closed": closed})
}

func (s *server) handleDeleteComponent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	cid, ok := pathID(w, r, "cid")
	if !ok {
		return
	}
	sess.DeleteComponent(r.Context(), circuit.ComponentID(cid))
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleDeleteWire(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	wid, ok := pathID(w, r, "wid")
	if !ok {
		return
	}
	sess.DeleteWire(r.Context(), circuit.WireID(wid))
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleRenderState(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	cid, ok := pathID(w, r, "cid")
	if !ok {
		return
	}
	attrs, err := sess.RenderState(circuit.ComponentID(cid))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attrs)
}

func (s *server) handleArchive(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	snap := library.NewSnapshot(library.NewID(), req.Name, sess.Components(), sess.Wires())
	if err := s.deps.archive.SaveSnapshot(r.Context(), snap); err != nil {
		s.deps.logger.Error("archive save failed", "err", err)
		writeError(w, http.StatusInternalServerError, "archive save failed")
		return
	}
	if err := s.deps.vectors.Upsert(r.Context(), []similarity.Record{{
		ID:         snap.ID,
		Vector:     similarity.Fingerprint(snap.Components, snap.Wires),
		Name:       snap.Name,
		Components: len(snap.Components),
		Wires:      len(snap.Wires),
	}}); err != nil {
		// The snapshot is saved; a missing fingerprint only degrades
		// similar-circuit search.
		s.deps.logger.Warn("fingerprint index failed", "circuit", snap.ID, "err", err)
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": snap.ID})
}

func (s *server) handleRestore(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		CircuitID string `json:"circuit_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	snap, err := s.deps.archive.LoadSnapshot(r.Context(), req.CircuitID)
	if err != nil {
		writeError(w, http.StatusNotFound, "circuit not found")
		return
	}
	topo, err := snap.Restore()
	if err != nil {
		s.deps.logger.Error("snapshot restore failed", "circuit", snap.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "snapshot restore failed")
		return
	}
	sess.Load(r.Context(), topo)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleListCircuits(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	metas, err := s.deps.archive.ListCircuits(r.Context(), offset, limit)
	if err != nil {
		s.deps.logger.Error("archive list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "archive list failed")
		return
	}
	if metas == nil {
		metas = []library.Meta{}
	}
	writeJSON(w, http.StatusOK, metas)
}

func (s *server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	topK, _ := strconv.Atoi(r.URL.Query().Get("top_k"))
	if topK <= 0 {
		topK = 5
	}
	snap, err := s.deps.archive.LoadSnapshot(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "circuit not found")
		return
	}
	hits, err := s.deps.vectors.Search(r.Context(), similarity.Fingerprint(snap.Components, snap.Wires), topK+1)
	if err != nil {
		s.deps.logger.Error("similarity search failed", "err", err)
		writeError(w, http.StatusInternalServerError, "similarity search failed")
		return
	}
	// The query circuit matches itself; drop it from the results.
	out := make([]similarity.Hit, 0, len(hits))
	for _, h := range hits {
		if h.ID != id {
			out = append(out, h)
		}
	}
	if len(out) > topK {
		out = out[:topK]
	}
	writeJSON(w, http.StatusOK, out)
}

// --- helpers ---

func pathID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(key), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+key)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeDomainError maps core errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, circuit.ErrSelfConnection):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, circuit.ErrUnknownComponent), errors.Is(err, circuit.ErrUnknownWire):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, circuit.ErrInvalidEdit):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, circuit.ErrUnknownKind), errors.Is(err, circuit.ErrBadTerminal), errors.Is(err, circuit.ErrNotASwitch):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
