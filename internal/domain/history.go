package domain

import "time"

// HistoryItem is a persisted record of a completed download
type HistoryItem struct {
	ID           int64     `json:"id"`
	DownloadID   string    `json:"download_id"`
	Filename     string    `json:"filename"`
	URL          string    `json:"url"`
	Size         int64     `json:"size"`
	DownloadPath string    `json:"download_path"`
	CompletedAt  time.Time `json:"completed_at"`
}

// EventRecord is a persisted lifecycle transition of a download
type EventRecord struct {
	ID         int64     `json:"id"`
	DownloadID string    `json:"download_id"`
	Event      string    `json:"event"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
