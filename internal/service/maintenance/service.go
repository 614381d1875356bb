package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vertextoedge/download-manager/internal/port"
	"go.uber.org/zap"
)

// Config contains maintenance service configuration
type Config struct {
	// StatsInterval is how often to log transfer statistics
	StatsInterval time.Duration

	// CleanupInterval is how often to prune history
	CleanupInterval time.Duration

	// HistoryMaxAge is the maximum age of history rows before pruning
	HistoryMaxAge time.Duration

	// DownloadDir is the directory whose free space is reported
	DownloadDir string
}

// DefaultConfig returns default maintenance configuration
func DefaultConfig() *Config {
	return &Config{
		StatsInterval:   time.Minute,
		CleanupInterval: time.Hour,
		HistoryMaxAge:   30 * 24 * time.Hour,
	}
}

// TransferStats reports scheduler occupancy
type TransferStats interface {
	ActiveCount() int
	QueuedCount() int
}

// Service handles periodic maintenance tasks
type Service struct {
	config  *Config
	history port.HistoryRepository
	stats   TransferStats
	disk    port.DiskProbe
	logger  *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new maintenance Service
func New(cfg *Config, history port.HistoryRepository, stats TransferStats, disk port.DiskProbe, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.StatsInterval == 0 {
		cfg.StatsInterval = time.Minute
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Hour
	}
	if cfg.HistoryMaxAge == 0 {
		cfg.HistoryMaxAge = 30 * 24 * time.Hour
	}

	return &Service{
		config:  cfg,
		history: history,
		stats:   stats,
		disk:    disk,
		logger:  logger,
	}
}

// Start runs the maintenance loop until ctx is cancelled or Stop is called
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("maintenance service already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("maintenance service started",
		zap.Duration("stats_interval", s.config.StatsInterval),
		zap.Duration("cleanup_interval", s.config.CleanupInterval),
		zap.Duration("history_max_age", s.config.HistoryMaxAge))

	s.wg.Add(1)
	go s.maintenanceLoop(ctx)

	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info("maintenance service stopped")
	return nil
}

// Stop stops the maintenance service
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
}

func (s *Service) maintenanceLoop(ctx context.Context) {
	defer s.wg.Done()

	statsTicker := time.NewTicker(s.config.StatsInterval)
	defer statsTicker.Stop()

	cleanupTicker := time.NewTicker(s.config.CleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-statsTicker.C:
			s.logStats()
		case <-cleanupTicker.C:
			s.pruneHistory()
		}
	}
}

// logStats logs scheduler occupancy and free space
func (s *Service) logStats() {
	fields := []zap.Field{
		zap.Int("active", s.stats.ActiveCount()),
		zap.Int("queued", s.stats.QueuedCount()),
	}

	if s.disk != nil && s.config.DownloadDir != "" {
		if usage, err := s.disk.GetDiskUsage(s.config.DownloadDir); err == nil && usage != nil {
			fields = append(fields,
				zap.String("disk_free", humanize.IBytes(usage.Free)),
				zap.Float64("disk_used_pct", usage.UsedPct))
		}
	}

	s.logger.Info("transfer stats", fields...)
}

// pruneHistory removes history and events older than HistoryMaxAge
func (s *Service) pruneHistory() {
	removed, err := s.history.DeleteOlderThan(s.config.HistoryMaxAge)
	if err != nil {
		s.logger.Error("failed to prune download history", zap.Error(err))
	} else if removed > 0 {
		s.logger.Info("pruned download history", zap.Int("count", removed))
	}
}
