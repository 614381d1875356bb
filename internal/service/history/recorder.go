package history

import (
	"fmt"

	"github.com/vertextoedge/download-manager/internal/domain"
	"github.com/vertextoedge/download-manager/internal/domain/event"
	"github.com/vertextoedge/download-manager/internal/port"
	"go.uber.org/zap"
)

// Recorder persists download lifecycle events and completed downloads
type Recorder struct {
	repo   port.HistoryRepository
	logger *zap.Logger
}

// NewRecorder creates a new Recorder
func NewRecorder(repo port.HistoryRepository, logger *zap.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		logger: logger,
	}
}

// Handle stores the event and, for completions, a history entry
func (r *Recorder) Handle(ev event.DomainEvent) error {
	e, ok := ev.(event.DownloadEvent)
	if !ok {
		return nil
	}

	rec := &domain.EventRecord{
		DownloadID: e.DownloadID,
		Event:      e.Name,
		Error:      e.Error,
		CreatedAt:  e.OccurredAt(),
	}
	if err := r.repo.AddEvent(rec); err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}

	if e.Name != event.NameDownloadCompleted {
		return nil
	}

	item := &domain.HistoryItem{
		DownloadID:   e.DownloadID,
		Filename:     e.Filename,
		URL:          e.URL,
		Size:         e.DownloadedBytes,
		DownloadPath: e.Path,
		CompletedAt:  e.OccurredAt(),
	}
	if err := r.repo.AddHistory(item); err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}

	r.logger.Debug("download recorded in history",
		zap.String("id", e.DownloadID),
		zap.Int64("history_id", item.ID))
	return nil
}

// HandledEvents returns the events this handler handles
func (r *Recorder) HandledEvents() []string {
	return []string{
		event.NameDownloadAdded,
		event.NameDownloadStarted,
		event.NameDownloadPaused,
		event.NameDownloadCancelled,
		event.NameDownloadCompleted,
		event.NameDownloadFailed,
	}
}
