package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vertextoedge/download-manager/internal/domain"
	"github.com/vertextoedge/download-manager/internal/port"
	"github.com/vertextoedge/download-manager/internal/util/ratelimiter"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const chunkSize = 32 * 1024

// ExecutorConfig tunes a single transfer
type ExecutorConfig struct {
	// RequestTimeout bounds connecting, waiting for headers, and any gap
	// between two received chunks
	RequestTimeout time.Duration
	// MaxAttempts is the total number of request attempts, including the first
	MaxAttempts int
	// RetryBackoff is the fixed wait between attempts
	RetryBackoff time.Duration
	// ProgressInterval is the minimum gap between progress publications
	ProgressInterval time.Duration
	// BytesPerSecond caps throughput per transfer; 0 means unlimited
	BytesPerSecond int64
}

// DefaultExecutorConfig returns the default transfer settings
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		RequestTimeout:   300 * time.Second,
		MaxAttempts:      3,
		RetryBackoff:     2 * time.Second,
		ProgressInterval: 100 * time.Millisecond,
	}
}

// Job describes one transfer run
type Job struct {
	ID     string
	URL    string
	Path   string
	Header http.Header
}

// Result summarizes a transfer run
type Result struct {
	// Completed is false when the run stopped because its context was cancelled
	Completed    bool
	ResumedFrom  int64
	BytesWritten int64
	Attempts     int
	Duration     time.Duration
}

// Executor streams a remote resource into a local file, resuming from
// whatever is already on disk
type Executor struct {
	client *http.Client
	fs     port.FileSystem
	cfg    ExecutorConfig
	logger *zap.Logger
}

// NewHTTPClient creates the HTTP client used for transfers.
// The client has no overall timeout; stalls are detected per attempt.
func NewHTTPClient(requestTimeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   requestTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: requestTimeout,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		DisableCompression:    true,
	}
	return &http.Client{Transport: transport}
}

// NewExecutor creates a new Executor
func NewExecutor(client *http.Client, fs port.FileSystem, cfg ExecutorConfig, logger *zap.Logger) *Executor {
	defaults := DefaultExecutorConfig()
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = defaults.RetryBackoff
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = defaults.ProgressInterval
	}
	if client == nil {
		client = NewHTTPClient(cfg.RequestTimeout)
	}
	return &Executor{
		client: client,
		fs:     fs,
		cfg:    cfg,
		logger: logger,
	}
}

// session is an accepted response and the per-attempt context bound to it
type session struct {
	resp     *http.Response
	ctx      context.Context
	stop     context.CancelCauseFunc
	watchdog *time.Timer
}

func (s *session) close() {
	s.watchdog.Stop()
	s.resp.Body.Close()
	s.stop(nil)
}

// Run transfers job.URL into job.Path, publishing progress into record.
// It never writes the record's lifecycle state. A cancelled ctx ends the
// run without error and with Result.Completed false.
func (e *Executor) Run(ctx context.Context, job Job, record *domain.StatusRecord) (Result, error) {
	started := time.Now()
	result := Result{}

	offset, err := e.fs.PartialSize(job.Path)
	if err != nil {
		return result, domain.NewTransferError(domain.KindStreamIO,
			"Could not read the partially downloaded file. Check the download folder and try again.", err)
	}

	discard := false
	if offset > 0 {
		total := record.Snapshot().TotalBytes
		switch {
		case total > 0 && offset == total:
			e.logger.Info("download already complete on disk",
				zap.String("id", job.ID),
				zap.String("path", job.Path))
			result.ResumedFrom = offset
			record.SetResumeOffset(offset)
			result.Completed = true
			return result, nil
		case total > 0 && offset > total:
			e.logger.Warn("partial file larger than expected, restarting from zero",
				zap.String("id", job.ID),
				zap.Int64("on_disk", offset),
				zap.Int64("expected", total))
			offset = 0
			discard = true
		default:
			result.ResumedFrom = offset
			record.SetResumeOffset(offset)
			e.logger.Info("resuming download",
				zap.String("id", job.ID),
				zap.Int64("from_byte", offset))
		}
	}

	s, attempts, err := e.connect(ctx, job, offset)
	result.Attempts = attempts
	if err != nil {
		if ctx.Err() != nil {
			return result, nil
		}
		return result, err
	}
	defer s.close()

	err = e.stream(ctx, job, s, offset, discard, record, &result)
	result.Duration = time.Since(started)
	if err != nil {
		return result, err
	}

	if result.Completed {
		e.logger.Info("download finished",
			zap.String("id", job.ID),
			zap.String("path", job.Path),
			zap.String("written", humanize.IBytes(uint64(result.BytesWritten))),
			zap.Int64("resumed_from", result.ResumedFrom),
			zap.Duration("duration", result.Duration))
	}
	return result, nil
}

// connect opens the response, retrying request-stage failures with a fixed backoff
func (e *Executor) connect(ctx context.Context, job Job, offset int64) (*session, int, error) {
	for attempt := 1; ; attempt++ {
		s, err := e.open(ctx, job, offset)
		if err == nil {
			return s, attempt, nil
		}
		if ctx.Err() != nil {
			return nil, attempt, ctx.Err()
		}

		var te *domain.TransferError
		if !errors.As(err, &te) {
			return nil, attempt, err
		}
		if !domain.IsRetryable(err) || attempt >= e.cfg.MaxAttempts {
			e.logger.Debug("download request failed",
				zap.String("id", job.ID),
				zap.Int("attempts", attempt),
				zap.Error(te.Unwrap()))
			return nil, attempt, te
		}

		wait, _ := domain.GetRetryAfter(err)
		e.logger.Warn("download request failed, retrying",
			zap.String("id", job.ID),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.cfg.MaxAttempts),
			zap.Duration("backoff", wait),
			zap.String("reason", te.Message))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, attempt, ctx.Err()
		case <-timer.C:
		}
	}
}

// open performs one request attempt
func (e *Executor) open(ctx context.Context, job Job, offset int64) (*session, error) {
	actx, stop := context.WithCancelCause(ctx)

	req, err := http.NewRequestWithContext(actx, http.MethodGet, job.URL, nil)
	if err != nil {
		stop(nil)
		return nil, domain.NewTransferError(domain.KindNetwork,
			"Network request failed. Check your internet connection and try again.", err)
	}
	for k, v := range job.Header {
		req.Header[k] = append([]string(nil), v...)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	watchdog := time.AfterFunc(e.cfg.RequestTimeout, func() { stop(errStalled) })

	resp, err := e.client.Do(req)
	if err != nil {
		watchdog.Stop()
		if errors.Is(context.Cause(actx), errStalled) {
			err = errStalled
		}
		stop(nil)
		return nil, domain.NewRetryableError(ClassifyTransportError(err), e.cfg.RetryBackoff)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		watchdog.Stop()
		stop(nil)
		return nil, domain.NewRetryableError(ClassifyStatus(resp.StatusCode), e.cfg.RetryBackoff)
	}

	return &session{resp: resp, ctx: actx, stop: stop, watchdog: watchdog}, nil
}

// stream appends the response body to the destination file
func (e *Executor) stream(ctx context.Context, job Job, s *session, offset int64, truncate bool, record *domain.StatusRecord, result *Result) error {
	resp := s.resp

	if offset > 0 && resp.StatusCode == http.StatusOK {
		e.logger.Warn("server ignored range request, restarting from zero",
			zap.String("id", job.ID),
			zap.Int64("discarded", offset))
		offset = 0
		truncate = true
		result.ResumedFrom = 0
		record.SetResumeOffset(0)
	}
	if resp.ContentLength >= 0 {
		record.SetTotalBytes(offset + resp.ContentLength)
	}

	file, err := e.fs.OpenAppend(job.Path, truncate)
	if err != nil {
		return domain.NewTransferError(domain.KindStreamIO,
			"Could not write to the download folder. Check permissions and free space.", err)
	}

	var throttle *rate.Limiter
	if e.cfg.BytesPerSecond > 0 {
		burst := int(e.cfg.BytesPerSecond)
		if burst < chunkSize {
			burst = chunkSize
		}
		throttle = rate.NewLimiter(rate.Limit(e.cfg.BytesPerSecond), burst)
	}

	gate := ratelimiter.New(e.cfg.ProgressInterval)
	gate.Mark()
	started := time.Now()
	downloaded := offset
	publish := func() {
		record.UpdateProgress(downloaded, throughput(downloaded-offset, time.Since(started)))
	}

	buf := make([]byte, chunkSize)
	stopped := false

	for !stopped {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			s.watchdog.Reset(e.cfg.RequestTimeout)
			if _, werr := file.Write(buf[:n]); werr != nil {
				file.Close()
				publish()
				return domain.NewTransferError(domain.KindStreamIO,
					"Could not write to the download file. Check free space and try again.", werr)
			}
			downloaded += int64(n)
			result.BytesWritten += int64(n)

			if ok, _ := gate.Allow(); ok {
				publish()
			}
			if throttle != nil {
				if werr := throttle.WaitN(ctx, n); werr != nil && ctx.Err() != nil {
					stopped = true
				}
			}
		}

		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			if ctx.Err() != nil {
				stopped = true
				break
			}
			file.Close()
			publish()
			if errors.Is(context.Cause(s.ctx), errStalled) {
				rerr = errStalled
			}
			return ClassifyTransportError(rerr)
		}
		if ctx.Err() != nil {
			stopped = true
		}
	}

	if err := file.Sync(); err != nil {
		file.Close()
		return domain.NewTransferError(domain.KindStreamIO,
			"Could not save the download file. Check free space and try again.", err)
	}
	if err := file.Close(); err != nil {
		return domain.NewTransferError(domain.KindStreamIO,
			"Could not save the download file. Check free space and try again.", err)
	}

	if !stopped && resp.ContentLength < 0 {
		record.SetTotalBytes(downloaded)
	}
	publish()

	result.Completed = !stopped
	return nil
}

func throughput(bytes int64, elapsed time.Duration) int64 {
	if elapsed <= 0 || bytes <= 0 {
		return 0
	}
	return int64(float64(bytes) / elapsed.Seconds())
}
