package maintenance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vertextoedge/download-manager/internal/domain"
	"github.com/vertextoedge/download-manager/internal/port"
	"go.uber.org/zap"
)

// mockHistoryRepository implements port.HistoryRepository for testing
type mockHistoryRepository struct {
	mu           sync.Mutex
	deleteCount  int
	deleteErr    error
	deleteCalled int
	lastAge      time.Duration
}

func (m *mockHistoryRepository) AddHistory(item *domain.HistoryItem) error { return nil }
func (m *mockHistoryRepository) ListHistory(limit int) ([]*domain.HistoryItem, error) {
	return nil, nil
}
func (m *mockHistoryRepository) AddEvent(rec *domain.EventRecord) error { return nil }
func (m *mockHistoryRepository) ListEvents(downloadID string) ([]*domain.EventRecord, error) {
	return nil, nil
}
func (m *mockHistoryRepository) DeleteOlderThan(age time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalled++
	m.lastAge = age
	return m.deleteCount, m.deleteErr
}

func (m *mockHistoryRepository) calls() (int, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteCalled, m.lastAge
}

// mockStats implements TransferStats for testing
type mockStats struct {
	mu     sync.Mutex
	called int
}

func (m *mockStats) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called++
	return 2
}

func (m *mockStats) QueuedCount() int { return 1 }

func (m *mockStats) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.called
}

// mockDisk implements port.DiskProbe for testing
type mockDisk struct {
	mu     sync.Mutex
	called int
}

func (m *mockDisk) GetDiskUsage(dir string) (*port.DiskUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called++
	return &port.DiskUsage{Total: 100, Used: 40, Free: 60, UsedPct: 40}, nil
}

func (m *mockDisk) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.called
}

func TestService_New(t *testing.T) {
	logger := zap.NewNop()

	s := New(nil, &mockHistoryRepository{}, &mockStats{}, nil, logger)
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.config.StatsInterval != time.Minute {
		t.Errorf("StatsInterval = %v, want %v", s.config.StatsInterval, time.Minute)
	}
	if s.config.HistoryMaxAge != 30*24*time.Hour {
		t.Errorf("HistoryMaxAge = %v, want %v", s.config.HistoryMaxAge, 30*24*time.Hour)
	}

	s = New(&Config{StatsInterval: 2 * time.Minute}, &mockHistoryRepository{}, &mockStats{}, nil, logger)
	if s.config.StatsInterval != 2*time.Minute {
		t.Errorf("StatsInterval = %v, want %v", s.config.StatsInterval, 2*time.Minute)
	}
	if s.config.CleanupInterval != time.Hour {
		t.Errorf("CleanupInterval = %v, want %v", s.config.CleanupInterval, time.Hour)
	}
}

func TestService_StartStop(t *testing.T) {
	history := &mockHistoryRepository{}
	stats := &mockStats{}
	disk := &mockDisk{}

	cfg := &Config{
		StatsInterval:   10 * time.Millisecond,
		CleanupInterval: time.Hour,
		HistoryMaxAge:   time.Hour,
		DownloadDir:     "/downloads",
	}
	s := New(cfg, history, stats, disk, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)

	cancel()
	s.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start() did not return after Stop()")
	}

	if stats.count() == 0 {
		t.Error("stats were not logged")
	}
	if disk.count() == 0 {
		t.Error("disk usage was not probed")
	}
	if called, _ := history.calls(); called != 0 {
		t.Errorf("history pruned %d times before its interval", called)
	}
}

func TestService_DoubleStart(t *testing.T) {
	s := New(nil, &mockHistoryRepository{}, &mockStats{}, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Start(ctx)
	time.Sleep(10 * time.Millisecond)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err == nil {
			t.Error("second Start() should fail while running")
		}
	case <-time.After(time.Second):
		t.Fatal("second Start() blocked")
	}
}

func TestService_PruneHistory(t *testing.T) {
	tests := []struct {
		name string
		repo *mockHistoryRepository
	}{
		{"rows removed", &mockHistoryRepository{deleteCount: 3}},
		{"nothing to remove", &mockHistoryRepository{}},
		{"repository error", &mockHistoryRepository{deleteErr: errors.New("database is locked")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				StatsInterval:   time.Hour,
				CleanupInterval: 10 * time.Millisecond,
				HistoryMaxAge:   48 * time.Hour,
			}
			s := New(cfg, tt.repo, &mockStats{}, nil, zap.NewNop())

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				s.Start(ctx)
				close(done)
			}()

			time.Sleep(50 * time.Millisecond)
			cancel()
			<-done

			called, age := tt.repo.calls()
			if called == 0 {
				t.Fatal("DeleteOlderThan was not called")
			}
			if age != 48*time.Hour {
				t.Errorf("DeleteOlderThan age = %v, want %v", age, 48*time.Hour)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.StatsInterval != time.Minute {
		t.Errorf("StatsInterval = %v, want %v", cfg.StatsInterval, time.Minute)
	}
	if cfg.CleanupInterval != time.Hour {
		t.Errorf("CleanupInterval = %v, want %v", cfg.CleanupInterval, time.Hour)
	}
	if cfg.HistoryMaxAge != 30*24*time.Hour {
		t.Errorf("HistoryMaxAge = %v, want %v", cfg.HistoryMaxAge, 30*24*time.Hour)
	}
}
