// Package server provides the HTTP control surface and rendering consumer of
// the podoscan capture station.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ayusman/podoscan/internal/server/api"
	"github.com/ayusman/podoscan/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Control   api.Controller
	Feed      *Feed
	Logger    *zap.Logger
}

// Server represents the HTTP server of the capture station.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())

	// Register session API handler if Store is configured
	if s.config.Store != nil {
		sessions := api.NewSessionHandler(s.config.Store, s.config.Logger)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)
	}

	// Register control signals if the capture loop is attached
	if s.config.Control != nil {
		control := api.NewControlHandler(s.config.Control, s.config.Logger)
		s.mux.HandleFunc("/api/capture", control.Capture)
		s.mux.HandleFunc("/api/quit", control.Quit)
		s.mux.HandleFunc("/api/status", control.Status)
	}

	// Register the rendering endpoints if a Feed is configured
	if s.config.Feed != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Feed))
		s.mux.Handle("/api/live", s.config.Feed.Live())
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}
	if s.config.Control != nil {
		response["capture"] = s.config.Control.State().String()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}
