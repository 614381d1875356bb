package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/vertextoedge/download-manager/internal/domain"
	"github.com/vertextoedge/download-manager/internal/port"
	"go.uber.org/zap"
)

// DownloadHandler handles download command requests
type DownloadHandler struct {
	downloads port.DownloadService
	logger    *zap.Logger
}

// NewDownloadHandler creates a new DownloadHandler
func NewDownloadHandler(downloads port.DownloadService, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		downloads: downloads,
		logger:    logger,
	}
}

type addRequest struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

type addResponse struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

// HandleList returns every tracked download
func (h *DownloadHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.downloads.List())
}

// HandleGet returns one download
func (h *DownloadHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	status, err := h.downloads.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleAdd registers a download. With ?start=true it is started right away;
// a failed start still returns the new id alongside the error.
func (h *DownloadHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	req.Filename = strings.TrimSpace(req.Filename)
	switch {
	case req.URL == "":
		writeError(w, h.logger, fmt.Errorf("%w: url is required", domain.ErrInvalidInput))
		return
	case req.Filename == "":
		writeError(w, h.logger, fmt.Errorf("%w: filename is required", domain.ErrInvalidInput))
		return
	case req.Size < 0:
		writeError(w, h.logger, fmt.Errorf("%w: size must not be negative", domain.ErrInvalidInput))
		return
	}

	id := h.downloads.Add(domain.DownloadRequest{
		URL:      req.URL,
		Filename: req.Filename,
		Size:     req.Size,
	})

	start, _ := strconv.ParseBool(r.URL.Query().Get("start"))
	if start {
		if err := h.downloads.Start(id); err != nil {
			writeJSON(w, statusFor(err), addResponse{ID: id, Error: err.Error()})
			return
		}
	}

	writeJSON(w, http.StatusCreated, addResponse{ID: id})
}

// HandleStart starts a download
func (h *DownloadHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.downloads.Start)
}

// HandlePause pauses a download
func (h *DownloadHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.downloads.Pause)
}

// HandleResume resumes a download
func (h *DownloadHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.downloads.Resume)
}

// HandleCancel cancels a download
func (h *DownloadHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.downloads.Cancel)
}

// HandleRetry retries a failed download
func (h *DownloadHandler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.downloads.Retry)
}

// command runs op on the path id and replies with the resulting status
func (h *DownloadHandler) command(w http.ResponseWriter, r *http.Request, op func(string) error) {
	id := r.PathValue("id")
	if err := op(id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	status, err := h.downloads.Get(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
