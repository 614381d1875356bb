package event

import (
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
)

type recordingHandler struct {
	mu     sync.Mutex
	names  []string
	events []string
	err    error
}

func (h *recordingHandler) Handle(event DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event.EventName())
	return h.err
}

func (h *recordingHandler) HandledEvents() []string {
	return h.names
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func TestInMemoryDispatcher_Sync(t *testing.T) {
	d := NewInMemoryDispatcher(false, zap.NewNop())
	completed := &recordingHandler{names: []string{NameDownloadCompleted}}
	all := &recordingHandler{names: []string{"*"}}
	d.Subscribe(completed)
	d.Subscribe(all)

	d.Dispatch(NewDownloadEvent(NameDownloadStarted, "1", "a.bin", "http://x/a.bin"))
	d.Dispatch(NewDownloadEvent(NameDownloadCompleted, "1", "a.bin", "http://x/a.bin"))

	if got := completed.count(); got != 1 {
		t.Errorf("completed handler got %d events, want 1", got)
	}
	if got := all.count(); got != 2 {
		t.Errorf("wildcard handler got %d events, want 2", got)
	}
}

func TestInMemoryDispatcher_AsyncWait(t *testing.T) {
	d := NewInMemoryDispatcher(true, zap.NewNop())
	h := &recordingHandler{names: []string{"*"}, err: errors.New("handler failure is logged")}
	d.Subscribe(h)

	for i := 0; i < 10; i++ {
		d.Dispatch(NewDownloadEvent(NameDownloadFailed, "1", "a.bin", ""))
	}
	d.Wait()

	if got := h.count(); got != 10 {
		t.Errorf("handler got %d events, want 10", got)
	}
}

func TestInMemoryDispatcher_Unsubscribe(t *testing.T) {
	d := NewInMemoryDispatcher(false, nil)
	h := &recordingHandler{names: []string{NameDownloadPaused}}
	d.Subscribe(h)
	d.Unsubscribe(h)

	d.Dispatch(NewDownloadEvent(NameDownloadPaused, "1", "a.bin", ""))
	if got := h.count(); got != 0 {
		t.Errorf("unsubscribed handler got %d events", got)
	}
}

func TestDownloadEvent_Status(t *testing.T) {
	tests := map[string]string{
		NameDownloadAdded:     "queued",
		NameDownloadStarted:   "downloading",
		NameDownloadPaused:    "paused",
		NameDownloadCancelled: "cancelled",
		NameDownloadCompleted: "completed",
		NameDownloadFailed:    "failed",
	}
	for name, want := range tests {
		if got := NewDownloadEvent(name, "1", "", "").Status(); got != want {
			t.Errorf("Status() for %s = %q, want %q", name, got, want)
		}
	}
}

func TestMetricsHandler(t *testing.T) {
	h := NewMetricsHandler()
	e := NewDownloadEvent(NameDownloadCompleted, "1", "a.bin", "")
	e.DownloadedBytes = 512
	h.Handle(e)
	h.Handle(NewDownloadEvent(NameDownloadFailed, "2", "b.bin", ""))

	m := h.GetMetrics()
	if m["downloads_completed"] != 1 || m["bytes_downloaded"] != 512 || m["downloads_failed"] != 1 {
		t.Errorf("unexpected metrics: %v", m)
	}
}
