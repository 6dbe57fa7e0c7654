package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/internal/presentation/graph"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/runner"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	graphsURI        = "parley://graphs"
	graphURIPrefix   = graphsURI + "/"
	graphURITemplate = graphURIPrefix + "{name}"
)

// SessionResponse is the structured result of every dialogue tool.
type SessionResponse struct {
	SessionID string            `json:"session_id" jsonschema_description:"Pass this to advance_dialogue"`
	Graph     string            `json:"graph"`
	Step      domain.StepResult `json:"step" jsonschema_description:"Where the dialogue stopped: a line to show, a choice to answer, or the end"`
	Variables domain.Variables  `json:"variables,omitempty"`
	History   []string          `json:"history,omitempty"`
}

// StartArgs are the arguments of start_dialogue.
type StartArgs struct {
	Graph     string           `json:"graph"`
	Variables domain.Variables `json:"variables,omitempty"`
}

// AdvanceArgs are the arguments of advance_dialogue.
type AdvanceArgs struct {
	SessionID string `json:"session_id"`
	Choice    any    `json:"choice,omitempty"`
}

// SessionArgs identify a session.
type SessionArgs struct {
	SessionID string `json:"session_id"`
}

// Server exposes a DialogueService as an MCP server.
type Server struct {
	service   ports.DialogueService
	loader    ports.GraphLoader
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(service ports.DialogueService, loader ports.GraphLoader, opts ...Option) *Server {
	s := &Server{
		service:   service,
		loader:    loader,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("parley-mcp", parley.Version, server.WithResourceCapabilities(false, false)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://localhost" + addr
	if !strings.HasPrefix(addr, ":") {
		baseURL = "http://" + addr
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_graphs",
		mcp.WithDescription("List the dialogue graphs that can be started."),
	), s.handleListGraphs)

	s.mcpServer.AddTool(mcp.NewTool("start_dialogue",
		mcp.WithDescription("Start a new dialogue session and run it to its first line or choice."),
		mcp.WithString("graph", mcp.Required(), mcp.Description("Graph name, as returned by list_graphs")),
		mcp.WithObject("variables", mcp.Description("Initial game variables: strings, numbers or booleans")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("advance_dialogue",
		mcp.WithDescription("Continue a session. At a choice, pass the zero-based index of an available option; "+
			"an invalid or unavailable index ends the dialogue."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id from start_dialogue")),
		mcp.WithNumber("choice", mcp.Description("Option index (only when the step is awaiting_choice)")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleAdvance))

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Show where a session is parked without moving it."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleGet))

	s.mcpServer.AddTool(mcp.NewTool("reset_dialogue",
		mcp.WithDescription("Restart a session from its initial variables."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleReset))
}

func (s *Server) handleListGraphs(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := s.loader.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	if names == nil {
		names = []string{}
	}
	jsonBytes, _ := json.Marshal(names)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, args StartArgs) (SessionResponse, error) {
	if args.Graph == "" {
		return SessionResponse{}, fmt.Errorf("graph is required")
	}
	sess, step, err := s.service.Start(ctx, args.Graph, args.Variables)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("start failed: %w", err)
	}
	return newSessionResponse(sess, step), nil
}

func (s *Server) handleAdvance(ctx context.Context, _ mcp.CallToolRequest, args AdvanceArgs) (SessionResponse, error) {
	if text, ok := args.Choice.(string); ok {
		clean, err := runner.SanitizeInput(text)
		if err != nil {
			s.logger.Warn("MCP advance: input rejected", "err", err, "size", len(text))
			return SessionResponse{}, fmt.Errorf("input rejected: %w", err)
		}
		args.Choice = clean
	}
	sess, step, err := s.service.Advance(ctx, args.SessionID, args.Choice)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("advance failed: %w", err)
	}
	return newSessionResponse(sess, step), nil
}

func (s *Server) handleGet(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (SessionResponse, error) {
	sess, step, err := s.service.Get(ctx, args.SessionID)
	if err != nil {
		return SessionResponse{}, err
	}
	return newSessionResponse(sess, step), nil
}

func (s *Server) handleReset(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (SessionResponse, error) {
	sess, step, err := s.service.Reset(ctx, args.SessionID)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("reset failed: %w", err)
	}
	return newSessionResponse(sess, step), nil
}

func newSessionResponse(sess *domain.Session, step domain.StepResult) SessionResponse {
	resp := SessionResponse{SessionID: sess.ID, Graph: sess.Graph, Step: step}
	if sess.State != nil {
		resp.Variables = sess.State.Variables
		resp.History = sess.State.History
	}
	return resp
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(graphsURI, "Dialogue graphs",
		mcp.WithResourceDescription("Names of the available graphs"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		names, err := s.loader.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list graphs: %w", err)
		}
		jsonBytes, _ := json.Marshal(names)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: graphsURI, MIMEType: "application/json", Text: string(jsonBytes)},
		}, nil
	})

	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(graphURITemplate, "Dialogue graph",
		mcp.WithTemplateDescription("A graph definition (JSON) and its Mermaid flowchart"),
		mcp.WithTemplateMIMEType("application/json"),
	), s.readGraph)
}

func (s *Server) readGraph(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	name := strings.TrimPrefix(uri, graphURIPrefix)
	if name == "" || name == uri {
		return nil, fmt.Errorf("invalid graph uri %q", uri)
	}
	g, err := s.loader.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	jsonBytes, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: "application/json", Text: string(jsonBytes)},
		mcp.TextResourceContents{URI: uri + "#mermaid", MIMEType: "text/vnd.mermaid", Text: graph.GenerateMermaid(g, nil)},
	}, nil
}
