package server

import (
	"context"
	"net/http"
	"time"

	"github.com/vertextoedge/download-manager/internal/port"
	"go.uber.org/zap"
)

// Config contains HTTP server configuration
type Config struct {
	BindAddr     string
	APIToken     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		BindAddr:     "127.0.0.1:8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// MetricsSource exposes event counters for the stats endpoint
type MetricsSource interface {
	GetMetrics() map[string]int64
}

// Server represents the HTTP API server
type Server struct {
	config          *Config
	store           port.Store
	logger          *zap.Logger
	server          *http.Server
	downloadHandler *DownloadHandler
	settingsHandler *SettingsHandler
	historyHandler  *HistoryHandler
}

// New creates a new HTTP server
func New(cfg *Config, downloads port.DownloadService, store port.Store, metrics MetricsSource, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Server{
		config: cfg,
		store:  store,
		logger: logger,
	}

	s.downloadHandler = NewDownloadHandler(downloads, logger)
	s.settingsHandler = NewSettingsHandler(downloads, logger)
	s.historyHandler = NewHistoryHandler(store, downloads, metrics, logger)

	api := http.NewServeMux()

	// Downloads
	api.HandleFunc("GET /api/downloads", s.downloadHandler.HandleList)
	api.HandleFunc("POST /api/downloads", s.downloadHandler.HandleAdd)
	api.HandleFunc("GET /api/downloads/{id}", s.downloadHandler.HandleGet)
	api.HandleFunc("POST /api/downloads/{id}/start", s.downloadHandler.HandleStart)
	api.HandleFunc("POST /api/downloads/{id}/pause", s.downloadHandler.HandlePause)
	api.HandleFunc("POST /api/downloads/{id}/resume", s.downloadHandler.HandleResume)
	api.HandleFunc("POST /api/downloads/{id}/cancel", s.downloadHandler.HandleCancel)
	api.HandleFunc("POST /api/downloads/{id}/retry", s.downloadHandler.HandleRetry)
	api.HandleFunc("GET /api/downloads/{id}/events", s.historyHandler.HandleEvents)

	// Settings
	api.HandleFunc("GET /api/settings", s.settingsHandler.HandleGet)
	api.HandleFunc("PUT /api/settings/concurrency", s.settingsHandler.HandleConcurrency)
	api.HandleFunc("PUT /api/settings/server", s.settingsHandler.HandleServer)

	// History and stats
	api.HandleFunc("GET /api/history", s.historyHandler.HandleHistory)
	api.HandleFunc("GET /debug/stats", s.historyHandler.HandleStats)

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	var protected http.Handler = api
	if cfg.APIToken != "" {
		protected = BearerAuthMiddleware(cfg.APIToken, logger)(api)
	}
	mux.Handle("/", protected)

	s.server = &http.Server{
		Addr:         cfg.BindAddr,
		Handler:      LoggingMiddleware(logger)(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.store.Ping(); err != nil {
		s.logger.Error("health check failed", zap.Error(err))
		http.Error(w, "Database connection failed", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"healthy","time":"` + time.Now().Format(time.RFC3339) + `"}`))
}
