package event

import (
	"sync"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// LoggingHandler logs all events
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a new LoggingHandler
func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger}
}

// Handle logs the event
func (h *LoggingHandler) Handle(event DomainEvent) error {
	e, ok := event.(DownloadEvent)
	if !ok {
		h.logger.Debug("domain event",
			zap.String("event", event.EventName()),
			zap.Time("occurred_at", event.OccurredAt()),
		)
		return nil
	}

	switch e.Name {
	case NameDownloadFailed:
		h.logger.Warn("download failed",
			zap.String("id", e.DownloadID),
			zap.String("filename", e.Filename),
			zap.String("error", e.Error),
		)
	case NameDownloadCompleted:
		h.logger.Info("download completed",
			zap.String("id", e.DownloadID),
			zap.String("filename", e.Filename),
			zap.String("size", humanize.IBytes(uint64(e.DownloadedBytes))),
			zap.Duration("duration", e.Duration),
		)
	default:
		h.logger.Debug("download "+e.Status(),
			zap.String("id", e.DownloadID),
			zap.String("filename", e.Filename),
			zap.Int64("downloaded_bytes", e.DownloadedBytes),
			zap.Int64("total_bytes", e.TotalBytes),
		)
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (h *LoggingHandler) HandledEvents() []string {
	return []string{"*"} // Handle all events
}

// MetricsHandler counts download outcomes
type MetricsHandler struct {
	mu                 sync.Mutex
	downloadsStarted   int64
	downloadsCompleted int64
	downloadsFailed    int64
	downloadsCancelled int64
	bytesDownloaded    int64
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// Handle updates metrics based on the event
func (h *MetricsHandler) Handle(event DomainEvent) error {
	e, ok := event.(DownloadEvent)
	if !ok {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	switch e.Name {
	case NameDownloadStarted:
		h.downloadsStarted++
	case NameDownloadCompleted:
		h.downloadsCompleted++
		h.bytesDownloaded += e.DownloadedBytes
	case NameDownloadFailed:
		h.downloadsFailed++
	case NameDownloadCancelled:
		h.downloadsCancelled++
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (h *MetricsHandler) HandledEvents() []string {
	return []string{
		NameDownloadStarted,
		NameDownloadCompleted,
		NameDownloadFailed,
		NameDownloadCancelled,
	}
}

// GetMetrics returns current metrics
func (h *MetricsHandler) GetMetrics() map[string]int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return map[string]int64{
		"downloads_started":   h.downloadsStarted,
		"downloads_completed": h.downloadsCompleted,
		"downloads_failed":    h.downloadsFailed,
		"downloads_cancelled": h.downloadsCancelled,
		"bytes_downloaded":    h.bytesDownloaded,
	}
}
