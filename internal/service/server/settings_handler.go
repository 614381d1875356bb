package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/vertextoedge/download-manager/internal/domain"
	"github.com/vertextoedge/download-manager/internal/port"
	"go.uber.org/zap"
)

// SettingsHandler handles runtime settings requests
type SettingsHandler struct {
	downloads port.DownloadService
	logger    *zap.Logger
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(downloads port.DownloadService, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		downloads: downloads,
		logger:    logger,
	}
}

type settingsResponse struct {
	MaxConcurrent int    `json:"max_concurrent"`
	ServerURL     string `json:"server_url"`
	HasAuthToken  bool   `json:"has_auth_token"`
}

type concurrencyRequest struct {
	Limit *int `json:"limit"`
}

type serverRequest struct {
	ServerURL string `json:"server_url"`
	AuthToken string `json:"auth_token"`
}

// HandleGet returns the current settings; the token itself is never echoed
func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.writeSettings(w)
}

// HandleConcurrency updates the concurrency limit
func (h *SettingsHandler) HandleConcurrency(w http.ResponseWriter, r *http.Request) {
	var req concurrencyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Limit == nil {
		writeError(w, h.logger, fmt.Errorf("%w: limit is required", domain.ErrInvalidInput))
		return
	}

	h.downloads.SetConcurrencyLimit(*req.Limit)
	h.writeSettings(w)
}

// HandleServer updates the server URL and auth token
func (h *SettingsHandler) HandleServer(w http.ResponseWriter, r *http.Request) {
	var req serverRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	req.ServerURL = strings.TrimSpace(req.ServerURL)
	if req.ServerURL != "" {
		u, err := url.Parse(req.ServerURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			writeError(w, h.logger, fmt.Errorf("%w: server_url must be an http(s) URL", domain.ErrInvalidInput))
			return
		}
	}

	h.downloads.SetServerConfig(req.ServerURL, req.AuthToken)
	h.writeSettings(w)
}

func (h *SettingsHandler) writeSettings(w http.ResponseWriter) {
	serverURL, token := h.downloads.ServerConfig()
	writeJSON(w, http.StatusOK, settingsResponse{
		MaxConcurrent: h.downloads.ConcurrencyLimit(),
		ServerURL:     serverURL,
		HasAuthToken:  token != "",
	})
}
