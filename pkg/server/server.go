// Package server provides the MCP server implementation for the route energy
// calculator.
package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/evroute/gpx2energy/pkg/tools"
	"github.com/evroute/gpx2energy/pkg/version"
)

const (
	// ServerName is the name of the MCP server
	ServerName = "gpx2energy-server"
)

// Server encapsulates the MCP server with the energy analysis tools.
type Server struct {
	srv          *mcpserver.MCPServer
	logger       *slog.Logger
	stopCh       chan struct{}
	doneCh       chan struct{}
	running      bool
	mu           sync.Mutex
	once         sync.Once // Ensure we only close stopCh once
	ctxCancel    context.CancelFunc
	ctxGoroutine sync.Once // Ensure we only start one context goroutine
}

// NewServer creates a new route energy MCP server with all tools registered.
func NewServer() (*Server, error) {
	logger := slog.Default()
	logger.Info("initializing route energy MCP server",
		"name", ServerName,
		"version", version.BuildVersion)

	srv := mcpserver.NewMCPServer(
		ServerName,
		version.BuildVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)

	registry := tools.NewRegistry(logger)
	registry.RegisterAll(srv)

	return &Server{
		srv:    srv,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Run starts the MCP server using stdin/stdout for communication.
// This method blocks until the server is stopped or an error occurs.
func (s *Server) Run() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	go func() {
		defer close(s.doneCh)
		err := mcpserver.ServeStdio(s.srv)
		if err != nil && err != io.EOF {
			s.logger.Error("server error", "error", err)
		}

		// Ensure the main Run loop is notified that the
		// server has finished processing.
		s.Shutdown()
	}()

	<-s.stopCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	<-s.doneCh
	return nil
}

// RunWithContext starts the MCP server and allows for graceful shutdown via context.
// This method blocks until the context is canceled or an error occurs.
func (s *Server) RunWithContext(ctx context.Context) error {
	s.ctxGoroutine.Do(func() {
		derived, cancel := context.WithCancel(ctx)
		s.ctxCancel = cancel

		go func() {
			select {
			case <-derived.Done():
				s.Shutdown()
			case <-s.stopCh:
				// Already being shut down
			}
		}()
	})

	return s.Run()
}

// Shutdown initiates a graceful shutdown of the server.
// It does not block and returns immediately.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	// Double close of the channel would panic.
	s.once.Do(func() {
		close(s.stopCh)
	})

	if s.ctxCancel != nil {
		s.ctxCancel()
	}
}

// WaitForShutdown blocks until the server has fully shut down.
func (s *Server) WaitForShutdown() {
	<-s.doneCh
}

// GetMCPServer returns the underlying MCP server instance for HTTP transport
func (s *Server) GetMCPServer() *mcpserver.MCPServer {
	return s.srv
}

// Handler is a plain HTTP front end over the analysis tools, for callers that
// are not MCP clients.
type Handler struct {
	logger *slog.Logger
}

// NewHandler creates a new server handler
func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

// ServeHTTP implements the http.Handler interface
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	path := r.URL.Path
	method := r.Method

	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = generateRequestID()
	}

	h.logger.Info("request started",
		"request_id", reqID,
		"method", method,
		"path", path,
		"remote_addr", r.RemoteAddr,
		"user_agent", r.UserAgent())

	var status int
	var err error

	switch {
	case path == "/health":
		status, err = h.handleHealth(w, r)
	case path == "/analyze":
		status, err = h.handleAnalyze(w, r)
	case path == "/vehicle":
		status, err = h.handleVehicle(w, r)
	default:
		status = http.StatusNotFound
		http.NotFound(w, r)
	}

	duration := time.Since(start)
	if err != nil {
		h.logger.Error("request failed",
			"request_id", reqID,
			"method", method,
			"path", path,
			"status", status,
			"duration", duration,
			"error", err)
	} else {
		h.logger.Info("request completed",
			"request_id", reqID,
			"method", method,
			"path", path,
			"status", status,
			"duration", duration)
	}
}

// handleHealth handles health check requests
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) (int, error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
		h.logger.Error("failed to write health response", "error", err)
		return http.StatusOK, err
	}

	return http.StatusOK, nil
}

// handleAnalyze runs the commute analysis over server-local GPX files named in
// the query string, with optional vehicle overrides passed as numeric query
// parameters.
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) (int, error) {
	q := r.URL.Query()

	files := q["file"]
	if len(files) == 1 && strings.Contains(files[0], ",") {
		files = strings.Split(files[0], ",")
	}

	args := map[string]any{
		"files": files,
	}
	vehicle := map[string]any{}
	for _, key := range []string{
		"mass", "drag_coefficient", "frontal_area", "rolling_resistance",
		"rated_power", "top_speed",
		"battery_efficiency", "controller_efficiency", "motor_efficiency", "gearbox_efficiency",
	} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			http.Error(w, "invalid "+key, http.StatusBadRequest)
			return http.StatusBadRequest, nil
		}
		vehicle[key] = v
	}
	if len(vehicle) > 0 {
		args["vehicle"] = vehicle
	}

	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      "analyze_commute",
			Arguments: args,
		},
	}

	result, err := tools.HandleAnalyzeCommute(r.Context(), req)
	if err != nil {
		return http.StatusInternalServerError, err
	}

	return h.writeToolResult(w, result)
}

// handleVehicle reports the reference vehicle parameters.
func (h *Handler) handleVehicle(w http.ResponseWriter, r *http.Request) (int, error) {
	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name: "reference_vehicle",
		},
	}

	result, err := tools.HandleReferenceVehicle(r.Context(), req)
	if err != nil {
		return http.StatusInternalServerError, err
	}

	return h.writeToolResult(w, result)
}

func (h *Handler) writeToolResult(w http.ResponseWriter, result *mcp.CallToolResult) (int, error) {
	var content string
	for _, c := range result.Content {
		if t, ok := c.(mcp.TextContent); ok {
			content = t.Text
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	status := http.StatusOK
	if result.IsError {
		status = http.StatusBadRequest
	}
	w.WriteHeader(status)

	if _, err := w.Write([]byte(content)); err != nil {
		h.logger.Error("failed to write response", "error", err)
		return status, err
	}

	return status, nil
}

// generateRequestID generates a unique request ID
func generateRequestID() string {
	return time.Now().Format("20060102150405.000000000")
}
