package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vertextoedge/download-manager/internal/domain"
	"github.com/vertextoedge/download-manager/internal/domain/event"
	"github.com/vertextoedge/download-manager/internal/port"
	"go.uber.org/zap"
)

// Config holds the manager settings
type Config struct {
	// MaxConcurrent is the admission ceiling; 0 or less means unlimited
	MaxConcurrent int
	ServerURL     string
	AuthToken     string
	// SafetyMargin is the free space kept on top of each declared size
	SafetyMargin int64
	Executor     ExecutorConfig
}

// entry is the registry's unit of bookkeeping for one download
type entry struct {
	request domain.DownloadRequest
	record  *domain.StatusRecord

	// set only while a transfer is in flight; cancel is taken by the
	// first pause or cancel, done stays until the transfer unwinds
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time

	// waiting is true while the entry sits in the admission queue
	waiting bool
}

func (e *entry) inFlight() bool {
	return e.done != nil
}

// Manager is the download registry and scheduler
type Manager struct {
	fs        port.FileSystem
	executor  *Executor
	preflight *Preflight
	events    event.EventDispatcher
	logger    *zap.Logger

	mu            sync.Mutex
	entries       map[string]*entry
	order         []string
	pending       []string
	running       int
	maxConcurrent int

	settingsMu sync.RWMutex
	serverURL  string
	authToken  string

	activeMu sync.Mutex
	active   int

	wg sync.WaitGroup
}

// New creates a new Manager. fs also serves as the disk probe for preflight checks.
func New(cfg Config, fs port.FileSystem, client *http.Client, events event.EventDispatcher, logger *zap.Logger) *Manager {
	if events == nil {
		events = event.NewNullDispatcher()
	}
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = DefaultSafetyMargin
	}
	return &Manager{
		fs:            fs,
		executor:      NewExecutor(client, fs, cfg.Executor, logger),
		preflight:     NewPreflight(fs, cfg.SafetyMargin, logger),
		events:        events,
		logger:        logger,
		entries:       make(map[string]*entry),
		maxConcurrent: cfg.MaxConcurrent,
		serverURL:     strings.TrimSuffix(cfg.ServerURL, "/"),
		authToken:     cfg.AuthToken,
	}
}

// Add registers a new download in the Queued state and returns its id
func (m *Manager) Add(req domain.DownloadRequest) string {
	id := uuid.NewString()
	e := &entry{
		request: req,
		record:  domain.NewStatusRecord(id, req),
	}

	m.mu.Lock()
	m.entries[id] = e
	m.order = append(m.order, id)
	m.mu.Unlock()

	m.logger.Info("download added",
		zap.String("id", id),
		zap.String("filename", req.Filename),
		zap.Int64("size", req.Size))
	m.events.Dispatch(event.NewDownloadEvent(event.NameDownloadAdded, id, req.Filename, req.URL))

	return id
}

// Get returns a snapshot of one download
func (m *Manager) Get(id string) (domain.DownloadStatus, error) {
	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		return domain.DownloadStatus{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return e.record.Snapshot(), nil
}

// Start begins or resumes a download. Starting a download that is already
// running or waiting for admission is a no-op.
func (m *Manager) Start(id string) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if m.busyLocked(e) {
		m.mu.Unlock()
		return nil
	}
	req := e.request
	m.mu.Unlock()

	path, err := m.fs.DestinationPath(req.Filename)
	if err != nil {
		te := domain.NewTransferError(domain.KindInvalidInput,
			"Invalid file name. Choose a name inside the download folder.",
			fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		if !m.failIdle(e, te) {
			return nil
		}
		return te
	}

	if err := m.preflight.Check(m.fs.RootDir(), req.Size); err != nil {
		if !m.failIdle(e, err) {
			return nil
		}
		return err
	}

	m.mu.Lock()
	if m.busyLocked(e) {
		m.mu.Unlock()
		return nil
	}
	if m.atCapacityLocked() {
		e.waiting = true
		e.record.SetState(domain.StateQueued)
		m.pending = append(m.pending, id)
		queued := len(m.pending)
		m.mu.Unlock()

		m.logger.Info("download waiting for a free slot",
			zap.String("id", id),
			zap.Int("queue_position", queued))
		return nil
	}
	ev := m.launchLocked(id, e, path)
	m.mu.Unlock()

	m.events.Dispatch(ev)
	return nil
}

// Resume is Start; partial files are picked up by the executor
func (m *Manager) Resume(id string) error {
	return m.Start(id)
}

// Pause stops an in-flight download and waits for its transfer to unwind.
// Pausing a download that is not running does nothing.
func (m *Manager) Pause(id string) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	m.dequeueLocked(id, e)
	cancel, done := e.cancel, e.done
	e.cancel = nil
	m.mu.Unlock()

	if done == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	<-done

	m.settlePaused(id, e)
	return nil
}

// settlePaused moves a joined transfer to Paused unless it already reached
// a terminal state
func (m *Manager) settlePaused(id string, e *entry) {
	if !e.record.CompareAndSetState(domain.StateDownloading, domain.StatePaused) {
		return
	}
	snap := e.record.Snapshot()
	m.logger.Info("download paused",
		zap.String("id", id),
		zap.Int64("downloaded", snap.DownloadedBytes))
	m.events.Dispatch(m.newEvent(event.NameDownloadPaused, snap, ""))
}

// Cancel forces a download into Cancelled and waits for any transfer to unwind.
// The partial file stays on disk.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	m.dequeueLocked(id, e)
	e.record.SetState(domain.StateCancelled)
	cancel, done := e.cancel, e.done
	e.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	snap := e.record.Snapshot()
	m.logger.Info("download cancelled",
		zap.String("id", id),
		zap.Int64("downloaded", snap.DownloadedBytes))
	m.events.Dispatch(m.newEvent(event.NameDownloadCancelled, snap, ""))
	return nil
}

// Retry restarts a failed download. Progress is reset; the partial file is kept.
func (m *Manager) Retry(id string) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if state := e.record.State(); state != domain.StateFailed {
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot retry a %s download", domain.ErrInvalidState, state)
	}
	e.record.ResetForRetry()
	e.record.SetState(domain.StateQueued)
	m.mu.Unlock()

	m.logger.Info("retrying download", zap.String("id", id))
	return m.Start(id)
}

// List returns a snapshot of every download in insertion order
func (m *Manager) List() []domain.DownloadStatus {
	m.mu.Lock()
	records := make([]*domain.StatusRecord, 0, len(m.order))
	for _, id := range m.order {
		records = append(records, m.entries[id].record)
	}
	m.mu.Unlock()

	out := make([]domain.DownloadStatus, 0, len(records))
	for _, r := range records {
		out = append(out, r.Snapshot())
	}
	return out
}

// SetConcurrencyLimit updates the admission ceiling. Raising it admits
// waiting downloads immediately.
func (m *Manager) SetConcurrencyLimit(n int) {
	m.mu.Lock()
	m.maxConcurrent = n
	events := m.admitLocked()
	m.mu.Unlock()

	m.logger.Info("concurrency limit updated", zap.Int("max_concurrent", n))
	for _, ev := range events {
		m.events.Dispatch(ev)
	}
}

// ConcurrencyLimit returns the admission ceiling
func (m *Manager) ConcurrencyLimit() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxConcurrent
}

// SetServerConfig updates the server base URL and auth token used by
// subsequently started transfers
func (m *Manager) SetServerConfig(serverURL, authToken string) {
	m.settingsMu.Lock()
	m.serverURL = strings.TrimSuffix(serverURL, "/")
	m.authToken = authToken
	m.settingsMu.Unlock()

	m.logger.Info("server settings updated",
		zap.String("server_url", serverURL),
		zap.Bool("has_token", authToken != ""))
}

// ServerConfig returns the current server base URL and auth token
func (m *Manager) ServerConfig() (string, string) {
	m.settingsMu.RLock()
	defer m.settingsMu.RUnlock()
	return m.serverURL, m.authToken
}

// ActiveCount returns the number of transfers currently executing
func (m *Manager) ActiveCount() int {
	m.activeMu.Lock()
	defer m.activeMu.Unlock()
	return m.active
}

// QueuedCount returns the number of downloads waiting for admission
func (m *Manager) QueuedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Shutdown pauses every in-flight download and waits for the transfers to
// unwind or for ctx to expire
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.entries))
	for _, id := range m.order {
		e := m.entries[id]
		if e.inFlight() || e.waiting {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		for _, id := range ids {
			m.Pause(id)
		}
		m.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		m.logger.Info("all transfers stopped", zap.Int("paused", len(ids)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) busyLocked(e *entry) bool {
	return e.inFlight() || e.waiting || e.record.State() == domain.StateDownloading
}

func (m *Manager) atCapacityLocked() bool {
	return m.maxConcurrent > 0 && m.running >= m.maxConcurrent
}

func (m *Manager) dequeueLocked(id string, e *entry) {
	if !e.waiting {
		return
	}
	e.waiting = false
	for i, pid := range m.pending {
		if pid == id {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			break
		}
	}
}

// admitLocked launches waiting downloads while there is capacity
func (m *Manager) admitLocked() []event.DomainEvent {
	var events []event.DomainEvent
	for len(m.pending) > 0 && !m.atCapacityLocked() {
		id := m.pending[0]
		m.pending = m.pending[1:]

		e := m.entries[id]
		e.waiting = false

		path, err := m.fs.DestinationPath(e.request.Filename)
		if err != nil {
			m.logger.Warn("dropping queued download with invalid file name",
				zap.String("id", id),
				zap.Error(err))
			e.record.Fail("Invalid file name. Choose a name inside the download folder.")
			continue
		}
		events = append(events, m.launchLocked(id, e, path))
	}
	return events
}

// launchLocked marks the entry Downloading and spawns its transfer
func (m *Manager) launchLocked(id string, e *entry, path string) event.DomainEvent {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	e.cancel = cancel
	e.done = done
	e.startedAt = time.Now()
	e.record.SetState(domain.StateDownloading)
	m.running++

	job := m.buildJob(id, e.request, path)

	m.wg.Add(1)
	go m.run(ctx, id, e, job, done)

	ev := m.newEvent(event.NameDownloadStarted, e.record.Snapshot(), "")
	ev.Path = path
	return ev
}

// run executes one transfer and writes back its terminal state
func (m *Manager) run(ctx context.Context, id string, e *entry, job Job, done chan struct{}) {
	defer m.wg.Done()

	m.activeMu.Lock()
	m.active++
	m.activeMu.Unlock()

	result, err := m.executor.Run(ctx, job, e.record)

	// terminal write and slot release share one critical section
	var ev *event.DownloadEvent
	m.mu.Lock()
	switch {
	case err == nil && result.Completed:
		if e.record.MarkCompleted() {
			completed := m.newEvent(event.NameDownloadCompleted, e.record.Snapshot(), "")
			completed.Path = job.Path
			completed.Duration = result.Duration
			ev = &completed
		}
	case err != nil && !errors.Is(err, context.Canceled):
		if e.record.MarkFailed(err.Error()) {
			failed := m.newEvent(event.NameDownloadFailed, e.record.Snapshot(), err.Error())
			ev = &failed
		}
	default:
		// stopped by pause or cancel; the caller owns the state transition
	}
	if e.done == done {
		e.cancel, e.done = nil, nil
	}
	m.running--
	admitted := m.admitLocked()
	m.mu.Unlock()

	if ev != nil && ev.Name == event.NameDownloadFailed {
		m.logger.Warn("download failed",
			zap.String("id", id),
			zap.String("kind", string(domain.ErrorKindOf(err))),
			zap.Int("attempts", result.Attempts),
			zap.Error(err))
	}

	m.activeMu.Lock()
	m.active--
	m.activeMu.Unlock()

	close(done)

	if ev != nil {
		m.events.Dispatch(*ev)
	}
	for _, a := range admitted {
		m.events.Dispatch(a)
	}
}

// buildJob resolves the source URL against the server settings current at start time
func (m *Manager) buildJob(id string, req domain.DownloadRequest, path string) Job {
	serverURL, token := m.ServerConfig()

	target := resolveURL(serverURL, req.URL)
	header := http.Header{}
	if token != "" && sameOrigin(target, serverURL) {
		header.Set("Authorization", "Bearer "+token)
	}

	return Job{
		ID:     id,
		URL:    target,
		Path:   path,
		Header: header,
	}
}

// failIdle marks a download that could not start as Failed. It leaves a
// download alone that another Start launched or queued meanwhile.
func (m *Manager) failIdle(e *entry, err error) bool {
	m.mu.Lock()
	if m.busyLocked(e) {
		m.mu.Unlock()
		return false
	}
	e.record.Fail(err.Error())
	snap := e.record.Snapshot()
	m.mu.Unlock()

	m.logger.Warn("download failed to start",
		zap.String("id", snap.ID),
		zap.String("kind", string(domain.ErrorKindOf(err))),
		zap.Error(err))
	m.events.Dispatch(m.newEvent(event.NameDownloadFailed, snap, err.Error()))
	return true
}

func (m *Manager) newEvent(name string, snap domain.DownloadStatus, errMsg string) event.DownloadEvent {
	ev := event.NewDownloadEvent(name, snap.ID, snap.Filename, snap.URL)
	ev.DownloadedBytes = snap.DownloadedBytes
	ev.TotalBytes = snap.TotalBytes
	ev.Error = errMsg
	return ev
}

// resolveURL resolves a relative source against the server base URL
func resolveURL(serverURL, raw string) string {
	ref, err := url.Parse(raw)
	if err != nil || ref.IsAbs() || serverURL == "" {
		return raw
	}
	base, err := url.Parse(serverURL + "/")
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}

// sameOrigin reports whether target shares scheme and host with serverURL
func sameOrigin(target, serverURL string) bool {
	if serverURL == "" {
		return false
	}
	t, err := url.Parse(target)
	if err != nil {
		return false
	}
	s, err := url.Parse(serverURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(t.Scheme, s.Scheme) && strings.EqualFold(t.Host, s.Host)
}
