package event

import (
	"time"
)

// Event names
const (
	NameDownloadAdded     = "download.added"
	NameDownloadStarted   = "download.started"
	NameDownloadPaused    = "download.paused"
	NameDownloadCancelled = "download.cancelled"
	NameDownloadCompleted = "download.completed"
	NameDownloadFailed    = "download.failed"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	// EventName returns the name of the event
	EventName() string
	// OccurredAt returns when the event occurred
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events
type BaseEvent struct {
	Timestamp time.Time
}

// OccurredAt returns when the event occurred
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// DownloadEvent carries the state of a download at the moment of a transition.
// Name distinguishes added/started/paused/cancelled/completed/failed.
type DownloadEvent struct {
	BaseEvent
	Name            string
	DownloadID      string
	Filename        string
	URL             string
	Path            string
	DownloadedBytes int64
	TotalBytes      int64
	Error           string
	Duration        time.Duration
}

// EventName returns the event name
func (e DownloadEvent) EventName() string {
	return e.Name
}

// Status returns the lifecycle label reported for this event
func (e DownloadEvent) Status() string {
	switch e.Name {
	case NameDownloadAdded:
		return "queued"
	case NameDownloadStarted:
		return "downloading"
	case NameDownloadPaused:
		return "paused"
	case NameDownloadCancelled:
		return "cancelled"
	case NameDownloadCompleted:
		return "completed"
	case NameDownloadFailed:
		return "failed"
	default:
		return e.Name
	}
}

// NewDownloadEvent creates a new DownloadEvent stamped with the current time
func NewDownloadEvent(name, downloadID, filename, url string) DownloadEvent {
	return DownloadEvent{
		BaseEvent:  BaseEvent{Timestamp: time.Now()},
		Name:       name,
		DownloadID: downloadID,
		Filename:   filename,
		URL:        url,
	}
}
