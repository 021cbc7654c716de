// Package web provides the HTTP server and routing
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"musicvault/internal/config"
	"musicvault/internal/downloads"
	"musicvault/internal/network"
	"musicvault/internal/uploads"
	"musicvault/internal/web/handlers"
)

// Server represents the HTTP server
type Server struct {
	server   *http.Server
	handlers *handlers.Handlers
	logger   *slog.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, orchestrator *downloads.Orchestrator, registry *uploads.Registry, monitor *network.Monitor) *Server {
	h := handlers.NewHandlers(orchestrator, registry, monitor)

	mux := http.NewServeMux()

	// Download management
	mux.HandleFunc("POST /api/downloads/{type}/{id}", h.StartDownload)
	mux.HandleFunc("DELETE /api/downloads/{type}/{id}", h.DeleteDownload)
	mux.HandleFunc("POST /api/downloads/{id}/cancel", h.CancelDownload)
	mux.HandleFunc("POST /api/downloads/clear", h.ClearDownloads)
	mux.HandleFunc("GET /api/downloads", h.ListDownloads)
	mux.HandleFunc("GET /api/downloads/progress", h.DownloadProgress)
	mux.HandleFunc("GET /api/downloads/size", h.OfflineSize)

	// Status
	mux.HandleFunc("GET /api/network", h.NetworkStatus)
	mux.HandleFunc("GET /api/uploads/stats", h.UploadStats)
	mux.HandleFunc("GET /api/uploads/active", h.ActiveUploads)
	mux.HandleFunc("GET /api/admin/uploads", h.AdminUploadDump)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		server:   server,
		handlers: h,
		logger:   slog.Default(),
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
