package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aretw0/dialogtree/internal/logging"
	"github.com/aretw0/dialogtree/internal/runtime"
	graphview "github.com/aretw0/dialogtree/internal/presentation/graph"
	"github.com/aretw0/dialogtree/pkg/domain"
	"github.com/aretw0/dialogtree/pkg/graph"
	"github.com/aretw0/dialogtree/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the session API.
type Server struct {
	Sessions *session.Manager
	Graph    *graph.Graph
	Streams  *StreamManager

	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer exposes the metrics of g on /metrics instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewHandler creates the HTTP handler for sessions walking g.
func NewHandler(mgr *session.Manager, g *graph.Graph, opts ...Option) http.Handler {
	s := &Server{
		Sessions: mgr,
		Graph:    g,
		gatherer: prometheus.DefaultGatherer,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/graph", s.GetGraph)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.CreateSession)
		r.Get("/", s.ListSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Post("/turns", s.Respond)
			r.Post("/restart", s.Restart)
			r.Get("/history", s.GetHistory)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TurnRequest is the body of POST /sessions/{id}/turns.
type TurnRequest struct {
	Text string `json:"text"`
}

// CreateSessionResponse is the body returned by POST /sessions.
type CreateSessionResponse struct {
	SessionID string        `json:"session_id"`
	Turn      *runtime.Turn `json:"turn"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	step, err := s.Sessions.CreateStep(r.Context())
	if err != nil {
		s.fail(w, r, "create session", err)
		return
	}
	s.publish(step)
	s.writeJSON(w, http.StatusCreated, CreateSessionResponse{SessionID: step.SessionID, Turn: step.Turn})
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Sessions.List(r.Context())
	if err != nil {
		s.fail(w, r, "list sessions", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.Sessions.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "load session", err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, "delete session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Respond handles POST /sessions/{id}/turns.
func (s *Server) Respond(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Warn("Respond: invalid request body", "err", err)
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	text, err := session.SanitizeInput(body.Text)
	if err != nil {
		s.fail(w, r, "sanitize input", err)
		return
	}

	step, err := s.Sessions.RespondStep(r.Context(), id, text)
	if err != nil {
		s.fail(w, r, "respond", err)
		return
	}
	s.publish(step)
	s.writeJSON(w, http.StatusOK, step.Turn)
}

// Restart handles POST /sessions/{id}/restart.
func (s *Server) Restart(w http.ResponseWriter, r *http.Request) {
	step, err := s.Sessions.RestartStep(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "restart", err)
		return
	}
	s.publish(step)
	s.writeJSON(w, http.StatusOK, step.Turn)
}

// GetHistory handles GET /sessions/{id}/history.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	tree, err := s.Sessions.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "load history", err)
		return
	}
	data, err := tree.Serialize()
	if err != nil {
		s.fail(w, r, "serialize history", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// GetGraph handles GET /graph.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	var overlay *graphview.GraphOverlay
	if id := r.URL.Query().Get("session_id"); id != "" {
		state, err := s.Sessions.Load(r.Context(), id)
		if err != nil {
			s.fail(w, r, "load session", err)
			return
		}
		overlay = &graphview.GraphOverlay{CurrentNode: state.CurrentNodeID}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graphview.GenerateMermaid(s.Graph, overlay)))
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// publish broadcasts the state change of a step to the session subscribers.
func (s *Server) publish(step *session.Step) {
	diff := domain.Diff(step.Before, step.After)
	if diff == nil {
		return
	}
	payload, err := json.Marshal(diff)
	if err != nil {
		return
	}
	s.Streams.Broadcast(step.SessionID, string(payload))
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err, "request_id", middleware.GetReqID(r.Context()))
	} else {
		s.logger.Debug(op+" rejected", "err", err)
	}
	s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInputTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, session.ErrInvalidUTF8):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotStarted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrService):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
