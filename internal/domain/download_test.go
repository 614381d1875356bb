package domain

import (
	"sync"
	"testing"
)

func TestNewStatusRecord(t *testing.T) {
	r := NewStatusRecord("abc", DownloadRequest{URL: "http://x/a.bin", Filename: "a.bin", Size: 42})
	s := r.Snapshot()

	if s.ID != "abc" || s.Filename != "a.bin" || s.URL != "http://x/a.bin" {
		t.Errorf("unexpected identity fields: %+v", s)
	}
	if s.State != StateQueued {
		t.Errorf("State = %v, want %v", s.State, StateQueued)
	}
	if s.DownloadedBytes != 0 || s.TotalBytes != 42 {
		t.Errorf("bytes = %d/%d, want 0/42", s.DownloadedBytes, s.TotalBytes)
	}
}

func TestStatusRecord_MarkFailedRespectsCancelled(t *testing.T) {
	r := NewStatusRecord("id", DownloadRequest{Size: 10})
	r.SetState(StateCancelled)

	if r.MarkFailed("boom") {
		t.Error("MarkFailed() = true on cancelled record")
	}
	s := r.Snapshot()
	if s.State != StateCancelled || s.Error != "" {
		t.Errorf("got state=%v error=%q, want cancelled with no error", s.State, s.Error)
	}

	if r.MarkCompleted() {
		t.Error("MarkCompleted() = true on cancelled record")
	}
}

func TestStatusRecord_CompareAndSetState(t *testing.T) {
	r := NewStatusRecord("id", DownloadRequest{})
	r.SetState(StateDownloading)

	if !r.CompareAndSetState(StateDownloading, StatePaused) {
		t.Fatal("expected downloading -> paused")
	}
	if r.CompareAndSetState(StateDownloading, StatePaused) {
		t.Error("second transition should not apply")
	}
	if r.State() != StatePaused {
		t.Errorf("State() = %v, want paused", r.State())
	}
}

func TestStatusRecord_ResetForRetry(t *testing.T) {
	r := NewStatusRecord("id", DownloadRequest{Size: 100})
	r.UpdateProgress(60, 1000)
	r.MarkFailed("Server error. Please try again later.")

	r.ResetForRetry()
	s := r.Snapshot()
	if s.Error != "" || s.DownloadedBytes != 0 {
		t.Errorf("after reset: error=%q downloaded=%d", s.Error, s.DownloadedBytes)
	}
	if s.State != StateFailed {
		t.Errorf("ResetForRetry must not change state, got %v", s.State)
	}
}

func TestStatusRecord_ConcurrentAccess(t *testing.T) {
	r := NewStatusRecord("id", DownloadRequest{Size: 1 << 20})
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := int64(0); i < 1000; i++ {
			r.UpdateProgress(i, i*10)
		}
	}()
	go func() {
		defer wg.Done()
		var last int64
		for i := 0; i < 1000; i++ {
			s := r.Snapshot()
			if s.DownloadedBytes < last {
				t.Errorf("progress went backwards: %d < %d", s.DownloadedBytes, last)
				return
			}
			last = s.DownloadedBytes
		}
	}()
	wg.Wait()
}

func TestDownloadState_IsTerminal(t *testing.T) {
	tests := []struct {
		state DownloadState
		want  bool
	}{
		{StateQueued, false},
		{StateDownloading, false},
		{StatePaused, false},
		{StateCompleted, true},
		{StateFailed, true},
		{StateCancelled, true},
	}
	for _, tt := range tests {
		if got := tt.state.IsTerminal(); got != tt.want {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.state, got, tt.want)
		}
	}
}
