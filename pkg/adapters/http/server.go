package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/internal/presentation/graph"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/observability"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/runner"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server exposes a DialogueService over HTTP.
type Server struct {
	Service ports.DialogueService
	Graphs  ports.GraphLoader
	Streams *StreamManager
	Metrics *observability.Metrics
	Logger  *slog.Logger

	validate bool
}

// Option configures the Server.
type Option func(*Server)

// WithMetrics serves GET /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.Metrics = m
	}
}

// WithLogger configures the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// WithStreams shares a StreamManager, typically the one registered as a
// session.ChangeListener so that SSE clients see every change.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithRequestValidation checks requests against the embedded OpenAPI document.
func WithRequestValidation() Option {
	return func(s *Server) {
		s.validate = true
	}
}

// StartRequest is the body of POST /sessions.
type StartRequest struct {
	Graph     string           `json:"graph"`
	Variables domain.Variables `json:"variables,omitempty"`
}

// AdvanceRequest is the body of POST /sessions/{id}/advance.
// Choice is ignored when the session is parked at a line.
type AdvanceRequest struct {
	Choice any `json:"choice,omitempty"`
}

// SessionResponse pairs a session with the step it is parked at.
type SessionResponse struct {
	Session *domain.Session   `json:"session"`
	Step    domain.StepResult `json:"step"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHandler creates the HTTP handler. It fails only when request validation is
// enabled and the embedded OpenAPI document cannot be loaded.
func NewHandler(svc ports.DialogueService, graphs ports.GraphLoader, opts ...Option) (http.Handler, error) {
	s := &Server{Service: svc, Graphs: graphs}
	for _, opt := range opts {
		opt(s)
	}
	if s.Logger == nil {
		s.Logger = logging.NewNop()
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.Logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(enableCORS)

	if s.validate {
		v, err := newRequestValidator()
		if err != nil {
			return nil, err
		}
		r.Use(v.middleware)
	}

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openAPIDocument)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	}

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)

	r.Route("/graphs", func(r chi.Router) {
		r.Get("/", s.ListGraphs)
		r.Get("/{name}", s.GetGraph)
		r.Get("/{name}/mermaid", s.GetGraphMermaid)
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/", s.StartSession)
		r.Get("/{id}", s.GetSession)
		r.Delete("/{id}", s.DeleteSession)
		r.Post("/{id}/advance", s.AdvanceSession)
		r.Post("/{id}/reset", s.ResetSession)
		r.Get("/{id}/events", s.SubscribeEvents)
	})

	return r, nil
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

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.Logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Parley API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "parley-http",
		"version":     parley.Version,
		"api_version": apiVersion(),
	})
}

// ListGraphs handles GET /graphs.
func (s *Server) ListGraphs(w http.ResponseWriter, r *http.Request) {
	names, err := s.Graphs.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"graphs": names})
}

// GetGraph handles GET /graphs/{name}.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	g, err := s.Graphs.Load(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, g)
}

// GetGraphMermaid handles GET /graphs/{name}/mermaid[?session=id].
func (s *Server) GetGraphMermaid(w http.ResponseWriter, r *http.Request) {
	g, err := s.Graphs.Load(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var overlay *graph.GraphOverlay
	if id := r.URL.Query().Get("session"); id != "" {
		sess, _, err := s.Service.Get(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		overlay = graph.OverlayFromState(sess.State)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, graph.GenerateMermaid(g, overlay))
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Service.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

// StartSession handles POST /sessions.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var body StartRequest
	if err := decodeBody(r, &body); err != nil || body.Graph == "" {
		s.badRequest(w, "invalid request body: graph is required", err)
		return
	}

	sess, step, err := s.Service.Start(r.Context(), body.Graph, body.Variables)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, SessionResponse{Session: sess, Step: step})
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, step, err := s.Service.Get(r.Context(), chi.URLParam(r, "id"))
	s.respond(w, r, sess, step, err)
}

// AdvanceSession handles POST /sessions/{id}/advance.
func (s *Server) AdvanceSession(w http.ResponseWriter, r *http.Request) {
	var body AdvanceRequest
	if err := decodeBody(r, &body); err != nil {
		s.badRequest(w, "invalid request body", err)
		return
	}
	if text, ok := body.Choice.(string); ok {
		clean, err := runner.SanitizeInput(text)
		if err != nil {
			s.badRequest(w, fmt.Sprintf("invalid choice: %v", err), err)
			return
		}
		body.Choice = clean
	}

	sess, step, err := s.Service.Advance(r.Context(), chi.URLParam(r, "id"), body.Choice)
	s.respond(w, r, sess, step, err)
}

// ResetSession handles POST /sessions/{id}/reset.
func (s *Server) ResetSession(w http.ResponseWriter, r *http.Request) {
	sess, step, err := s.Service.Reset(r.Context(), chi.URLParam(r, "id"))
	s.respond(w, r, sess, step, err)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, sess *domain.Session, step domain.StepResult, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, SessionResponse{Session: sess, Step: step})
}

// decodeBody accepts an empty body as the zero value. Numbers stay json.Number.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) badRequest(w http.ResponseWriter, msg string, err error) {
	s.Logger.Warn("bad request", "msg", msg, "err", err)
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrGraphNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidVariables):
		status = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	default:
		s.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
