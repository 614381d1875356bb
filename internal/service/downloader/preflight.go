package downloader

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/vertextoedge/download-manager/internal/domain"
	"github.com/vertextoedge/download-manager/internal/port"
	"go.uber.org/zap"
)

const (
	mib = 1024 * 1024

	// DefaultSafetyMargin is added on top of the declared size
	DefaultSafetyMargin int64 = 100 * mib
)

// Preflight validates free space before a transfer starts
type Preflight struct {
	probe  port.DiskProbe
	margin int64
	logger *zap.Logger
}

// NewPreflight creates a new Preflight check
func NewPreflight(probe port.DiskProbe, margin int64, logger *zap.Logger) *Preflight {
	if margin < 0 {
		margin = DefaultSafetyMargin
	}
	return &Preflight{
		probe:  probe,
		margin: margin,
		logger: logger,
	}
}

// Check returns an insufficient-space error if dir's volume cannot hold
// required bytes plus the safety margin. A failed probe only logs a warning.
func (p *Preflight) Check(dir string, required int64) error {
	if required < 0 {
		required = 0
	}
	needed := uint64(required) + uint64(p.margin)

	usage, err := p.probe.GetDiskUsage(dir)
	if err != nil || usage == nil {
		p.logger.Warn("could not check disk space, continuing",
			zap.String("dir", dir),
			zap.Error(err))
		return nil
	}

	if usage.Free < needed {
		p.logger.Debug("insufficient disk space",
			zap.String("dir", dir),
			zap.String("needed", humanize.IBytes(needed)),
			zap.String("available", humanize.IBytes(usage.Free)))

		msg := fmt.Sprintf("Insufficient disk space: Need %d MB but only %d MB available. Please free up space and try again.",
			needed/mib, usage.Free/mib)
		return domain.NewTransferError(domain.KindInsufficientSpace, msg, domain.ErrInsufficientSpace)
	}

	return nil
}
