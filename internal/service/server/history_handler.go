package server

import (
	"net/http"
	"strconv"

	"github.com/vertextoedge/download-manager/internal/port"
	"go.uber.org/zap"
)

// HistoryHandler serves download history and runtime statistics
type HistoryHandler struct {
	store     port.HistoryRepository
	downloads port.DownloadService
	metrics   MetricsSource
	logger    *zap.Logger
}

// NewHistoryHandler creates a new HistoryHandler
func NewHistoryHandler(store port.HistoryRepository, downloads port.DownloadService, metrics MetricsSource, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{
		store:     store,
		downloads: downloads,
		metrics:   metrics,
		logger:    logger,
	}
}

// HandleHistory lists completed downloads, newest first
func (h *HistoryHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	items, err := h.store.ListHistory(limit)
	if err != nil {
		h.logger.Error("failed to list history", zap.Error(err))
		http.Error(w, "Failed to list history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// HandleEvents lists the recorded lifecycle events of one download
func (h *HistoryHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.ListEvents(r.PathValue("id"))
	if err != nil {
		h.logger.Error("failed to list events", zap.Error(err))
		http.Error(w, "Failed to list events", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

// HandleStats returns transfer counters
func (h *HistoryHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"active":         h.downloads.ActiveCount(),
		"queued":         h.downloads.QueuedCount(),
		"max_concurrent": h.downloads.ConcurrencyLimit(),
	}
	if h.metrics != nil {
		response["events"] = h.metrics.GetMetrics()
	}

	writeJSON(w, http.StatusOK, response)
}
