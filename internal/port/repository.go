package port

import (
	"time"

	"github.com/vertextoedge/download-manager/internal/domain"
)

// HistoryRepository persists completed downloads and lifecycle events
type HistoryRepository interface {
	// AddHistory appends a completed download
	AddHistory(item *domain.HistoryItem) error

	// ListHistory returns the most recent completed downloads, newest first
	ListHistory(limit int) ([]*domain.HistoryItem, error)

	// AddEvent appends a lifecycle event
	AddEvent(rec *domain.EventRecord) error

	// ListEvents returns the events recorded for a download, oldest first
	ListEvents(downloadID string) ([]*domain.EventRecord, error)

	// DeleteOlderThan removes history and events older than the given age.
	// Returns the number of rows removed.
	DeleteOlderThan(age time.Duration) (int, error)
}

// Store combines all repository interfaces
type Store interface {
	HistoryRepository

	// Close closes the database connection
	Close() error

	// Ping checks database connectivity
	Ping() error
}
