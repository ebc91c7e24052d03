package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/kettle-controller/db"
	"github.com/thatsimonsguy/kettle-controller/internal/model"
	"github.com/thatsimonsguy/kettle-controller/internal/queue"
	"github.com/thatsimonsguy/kettle-controller/internal/status"
)

const (
	defaultSessionLimit = 20
	maxSessionLimit     = 500
)

// Pusher is the write side the handlers use; in production the command queue.
type Pusher interface {
	Push(cmd model.Command) (model.Command, error)
}

type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	queue      Pusher
	db         *sql.DB
	now        func() time.Time
}

type DataResponse struct {
	Temp    float64 `json:"temp"`
	Mode    string  `json:"mode"`
	Target  int     `json:"target"`
	Heating bool    `json:"heating"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer builds the HTTP surface. database may be nil, in which case the
// session history endpoint reports that the journal is disabled.
func NewServer(tracker *status.Tracker, q Pusher, database *sql.DB) *Server {
	s := &Server{
		tracker: tracker,
		queue:   q,
		db:      database,
		now:     time.Now,
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routed mux wrapped in the CORS handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/data", s.handleData)
	mux.HandleFunc("/start", s.handleStart)
	mux.HandleFunc("/stop", s.handleStop)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/sessions", s.handleSessions)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		mux.ServeHTTP(w, r)
	})
}

func (s *Server) ListenAndServe(port int) error {
	s.httpServer.Addr = fmt.Sprintf("0.0.0.0:%d", port)
	log.Info().Str("address", s.httpServer.Addr).Msg("Starting REST API server")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	snap := s.tracker.Snapshot()
	s.writeJSON(w, http.StatusOK, DataResponse{
		Temp:    snap.Temperature,
		Mode:    snap.ModeName,
		Target:  int(snap.Target),
		Heating: snap.Heating,
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if !allowCommandMethod(r) {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	raw := r.URL.Query().Get("temp")
	if raw == "" {
		s.writeText(w, http.StatusBadRequest, "Missing temperature parameter")
		return
	}
	celsius, err := strconv.Atoi(raw)
	if err != nil {
		s.writeText(w, http.StatusBadRequest, "Invalid temperature")
		return
	}
	p, err := model.ParsePreset(celsius)
	if err != nil {
		log.Info().Str("temp", raw).Str("remote", r.RemoteAddr).Msg("Rejected start with invalid temperature")
		s.writeText(w, http.StatusBadRequest, "Invalid temperature")
		return
	}

	s.submit(w, r, model.Command{Kind: model.CommandStartHeating, Preset: p})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !allowCommandMethod(r) {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.submit(w, r, model.Command{Kind: model.CommandStop})
}

// submit pushes cmd and answers without waiting for the controller.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, cmd model.Command) {
	cmd.ID = uuid.NewString()
	cmd.Source = model.SourceRemote
	cmd.IssuedAt = s.now()

	queued, err := s.queue.Push(cmd)
	if err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			s.writeText(w, http.StatusServiceUnavailable, "Command queue full")
			return
		}
		log.Error().Err(err).Str("command", string(cmd.Kind)).Msg("Failed to queue command")
		s.writeText(w, http.StatusInternalServerError, "Internal error")
		return
	}

	log.Info().
		Str("command", string(queued.Kind)).
		Int("preset", int(queued.Preset)).
		Str("command_id", queued.ID).
		Uint64("seq", queued.Seq).
		Str("remote", r.RemoteAddr).
		Msg("Remote command queued")
	s.writeText(w, http.StatusOK, "OK")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.tracker.Snapshot())
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Journal not enabled")
		return
	}

	limit := defaultSessionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxSessionLimit {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid limit. Must be between 1 and %d", maxSessionLimit))
			return
		}
		limit = n
	}

	sessions, err := db.ListSessions(s.db, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list heat sessions")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, sessions)
}

func allowCommandMethod(r *http.Request) bool {
	return r.Method == http.MethodGet || r.Method == http.MethodPost
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

func (s *Server) writeText(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	w.Write([]byte(message))
}
