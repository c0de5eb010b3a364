// Package server provides the local HTTP control surface: state, mode
// switching, a live event stream and recorded takes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/airtune/internal/app"
	"github.com/ayusman/airtune/internal/engine"
	"github.com/ayusman/airtune/internal/input"
	"github.com/ayusman/airtune/internal/midi"
	"github.com/ayusman/airtune/internal/palette"
	"github.com/ayusman/airtune/internal/store"
)

// StateSource provides the latest loop snapshot.
type StateSource interface {
	Snapshot() *app.Snapshot
}

// Config holds the server configuration. Routes whose dependency is nil are
// not registered.
type Config struct {
	State    StateSource
	Commands *input.Queue
	Hub      *Hub
	Store    *store.Store
	MIDI     midi.Config
	Log      *zap.Logger
}

// Server represents the HTTP server for the AirTune application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	log    *zap.Logger
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	log := config.Log
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		log:    log,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.State != nil {
		s.mux.HandleFunc("/api/state", s.handleState)
	}
	if s.config.Commands != nil {
		s.mux.HandleFunc("/api/mode", s.handleMode)
	}
	if s.config.Hub != nil {
		s.mux.Handle("/api/events", s.config.Hub)
	}
	if s.config.Store != nil {
		s.mux.HandleFunc("GET /api/takes", s.handleListTakes)
		s.mux.HandleFunc("GET /api/takes/{id}", s.handleGetTake)
		s.mux.HandleFunc("DELETE /api/takes/{id}", s.handleDeleteTake)
		s.mux.HandleFunc("GET /api/takes/{id}/midi", s.handleTakeMIDI)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("http server listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

// NoteJSON is the JSON form of a note.
type NoteJSON struct {
	ID    string  `json:"id"`
	Pitch string  `json:"pitch"`
	MIDI  int     `json:"midi"`
	Freq  float64 `json:"freq"`
}

// StateResponse is the body of GET /api/state.
type StateResponse struct {
	Mode     string     `json:"mode"`
	Sounding []NoteJSON `json:"sounding"`
	Chord    string     `json:"chord,omitempty"`
	Hands    int        `json:"hands"`
	Degraded bool       `json:"degraded"`
	Valves   string     `json:"valves,omitempty"`
	Breath   bool       `json:"breath"`
	Frames   uint64     `json:"frames"`
}

func newStateResponse(snap *app.Snapshot) StateResponse {
	resp := StateResponse{
		Mode:     snap.Mode.String(),
		Sounding: make([]NoteJSON, len(snap.Sounding)),
		Chord:    snap.Chord,
		Hands:    snap.Hands,
		Degraded: snap.Degraded,
		Breath:   snap.Breath,
		Frames:   snap.Frames,
	}
	for i, n := range snap.Sounding {
		resp.Sounding[i] = NoteJSON{ID: string(n.ID), Pitch: n.Pitch, MIDI: n.MIDI, Freq: n.Freq}
	}
	if snap.Mode == palette.Trumpet {
		resp.Valves = snap.Valves.String()
	}
	return resp
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.config.State.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "not running")
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(snap))
}

// ModeRequest is the body of POST /api/mode.
type ModeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	mode, err := palette.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.config.Commands.Send(input.ForMode(mode)) {
		writeError(w, http.StatusServiceUnavailable, "command queue full")
		return
	}
	s.log.Info("mode switch requested", zap.Stringer("mode", mode))
	writeJSON(w, http.StatusAccepted, ModeRequest{Mode: mode.String()})
}

// TakeJSON is the JSON form of a recorded take.
type TakeJSON struct {
	ID        string     `json:"id"`
	Mode      string     `json:"mode"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Events    int        `json:"events"`
	Duration  string     `json:"duration,omitempty"`
}

func newTakeJSON(t *store.Take) TakeJSON {
	out := TakeJSON{
		ID:        t.ID,
		Mode:      t.Mode,
		StartedAt: t.StartedAt,
		EndedAt:   t.EndedAt,
		Events:    t.Events,
	}
	if t.EndedAt != nil {
		out.Duration = t.Duration().String()
	}
	return out
}

func (s *Server) handleListTakes(w http.ResponseWriter, r *http.Request) {
	takes, err := s.config.Store.Takes().List()
	if err != nil {
		s.log.Error("list takes", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list takes")
		return
	}

	out := make([]TakeJSON, len(takes))
	for i, t := range takes {
		out[i] = newTakeJSON(t)
	}
	writeJSON(w, http.StatusOK, map[string]any{"takes": out})
}

// getTake writes the error response itself and returns nil when the take
// cannot be loaded.
func (s *Server) getTake(w http.ResponseWriter, id string) *store.Take {
	take, err := s.config.Store.Takes().GetByID(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "take not found")
		return nil
	}
	if err != nil {
		s.log.Error("get take", zap.String("take", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get take")
		return nil
	}
	return take
}

func (s *Server) handleGetTake(w http.ResponseWriter, r *http.Request) {
	take := s.getTake(w, r.PathValue("id"))
	if take == nil {
		return
	}

	stored, err := s.config.Store.Events().ListByTake(take.ID)
	if err != nil {
		s.log.Error("list take events", zap.String("take", take.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}

	events := make([]EventMessage, 0, len(stored))
	for _, e := range stored {
		ev, err := e.Event(take.StartedAt)
		if err != nil {
			s.log.Warn("skipping stored event", zap.Int("seq", e.Seq), zap.Error(err))
			continue
		}
		events = append(events, newEventMessage(ev))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"take":   newTakeJSON(take),
		"events": events,
	})
}

func (s *Server) handleDeleteTake(w http.ResponseWriter, r *http.Request) {
	err := s.config.Store.Takes().Delete(r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "take not found")
		return
	}
	if err != nil {
		s.log.Error("delete take", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete take")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTakeMIDI(w http.ResponseWriter, r *http.Request) {
	take := s.getTake(w, r.PathValue("id"))
	if take == nil {
		return
	}

	stored, err := s.config.Store.Events().ListByTake(take.ID)
	if err != nil {
		s.log.Error("list take events", zap.String("take", take.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}

	events := make([]engine.Event, 0, len(stored))
	for _, e := range stored {
		ev, err := e.Event(take.StartedAt)
		if err != nil {
			continue
		}
		events = append(events, ev)
	}

	w.Header().Set("Content-Type", "audio/midi")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "take-"+take.ID+".mid"))
	if err := midi.WriteSMF(w, "AirTune "+take.Mode, events, s.config.MIDI); err != nil {
		s.log.Error("write midi", zap.String("take", take.ID), zap.Error(err))
	}
}
