package domain

import "sync"

// DownloadState is the lifecycle state of a download
type DownloadState string

const (
	StateQueued      DownloadState = "queued"
	StateDownloading DownloadState = "downloading"
	StatePaused      DownloadState = "paused"
	StateCompleted   DownloadState = "completed"
	StateFailed      DownloadState = "failed"
	StateCancelled   DownloadState = "cancelled"
)

// String returns the string representation of DownloadState
func (s DownloadState) String() string {
	return string(s)
}

// IsTerminal returns true for states a transfer cannot leave on its own
func (s DownloadState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// DownloadRequest is the immutable input for a download
type DownloadRequest struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// DownloadStatus is a point-in-time copy of a download's observable state
type DownloadStatus struct {
	ID              string        `json:"id"`
	Filename        string        `json:"filename"`
	URL             string        `json:"url"`
	State           DownloadState `json:"state"`
	DownloadedBytes int64         `json:"downloaded_bytes"`
	TotalBytes      int64         `json:"total_bytes"`
	SpeedBps        int64         `json:"speed_bps"`
	Error           string        `json:"error,omitempty"`
}

// StatusRecord is the live, lockable state of one download.
// It is shared between the registry (reads, state transitions) and the
// executor bound to it (progress writes).
type StatusRecord struct {
	mu     sync.RWMutex
	status DownloadStatus
}

// NewStatusRecord creates a queued record for the given request
func NewStatusRecord(id string, req DownloadRequest) *StatusRecord {
	return &StatusRecord{
		status: DownloadStatus{
			ID:         id,
			Filename:   req.Filename,
			URL:        req.URL,
			State:      StateQueued,
			TotalBytes: req.Size,
		},
	}
}

// Snapshot returns a copy of the current status
func (r *StatusRecord) Snapshot() DownloadStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// State returns the current lifecycle state
func (r *StatusRecord) State() DownloadState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status.State
}

// SetState transitions the record to the given state
func (r *StatusRecord) SetState(state DownloadState) {
	r.mu.Lock()
	r.status.State = state
	if state != StateFailed {
		r.status.Error = ""
	}
	if state != StateDownloading {
		r.status.SpeedBps = 0
	}
	r.mu.Unlock()
}

// CompareAndSetState transitions to next only if the record is currently in from.
// Returns true if the transition happened.
func (r *StatusRecord) CompareAndSetState(from, next DownloadState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.State != from {
		return false
	}
	r.status.State = next
	if next != StateDownloading {
		r.status.SpeedBps = 0
	}
	return true
}

// MarkFailed moves the record to Failed with the given message, unless it
// was already cancelled. Returns true if the record was marked.
func (r *StatusRecord) MarkFailed(message string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.State == StateCancelled {
		return false
	}
	r.status.State = StateFailed
	r.status.Error = message
	r.status.SpeedBps = 0
	return true
}

// Fail moves the record to Failed with the given message regardless of state
func (r *StatusRecord) Fail(message string) {
	r.mu.Lock()
	r.status.State = StateFailed
	r.status.Error = message
	r.status.SpeedBps = 0
	r.mu.Unlock()
}

// MarkCompleted moves the record to Completed unless it was cancelled
func (r *StatusRecord) MarkCompleted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.State == StateCancelled {
		return false
	}
	r.status.State = StateCompleted
	r.status.SpeedBps = 0
	return true
}

// ResetForRetry clears the error and the reported progress.
// The partial file on disk is untouched.
func (r *StatusRecord) ResetForRetry() {
	r.mu.Lock()
	r.status.Error = ""
	r.status.DownloadedBytes = 0
	r.status.SpeedBps = 0
	r.mu.Unlock()
}

// SetResumeOffset publishes the byte offset a transfer resumes from
func (r *StatusRecord) SetResumeOffset(offset int64) {
	r.mu.Lock()
	r.status.DownloadedBytes = offset
	r.mu.Unlock()
}

// SetTotalBytes records the resource size confirmed by the server
func (r *StatusRecord) SetTotalBytes(total int64) {
	r.mu.Lock()
	r.status.TotalBytes = total
	r.mu.Unlock()
}

// UpdateProgress publishes the running byte count and throughput
func (r *StatusRecord) UpdateProgress(downloaded, speedBps int64) {
	r.mu.Lock()
	r.status.DownloadedBytes = downloaded
	r.status.SpeedBps = speedBps
	r.mu.Unlock()
}
