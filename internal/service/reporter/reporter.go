package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vertextoedge/download-manager/internal/domain/event"
	"go.uber.org/zap"
)

// ServerSettings supplies the server base URL and auth token
type ServerSettings interface {
	ServerConfig() (serverURL, authToken string)
}

// progressReport is the body POSTed to the server
type progressReport struct {
	DownloadID      string  `json:"downloadId"`
	FileName        string  `json:"fileName"`
	BytesDownloaded int64   `json:"bytesDownloaded"`
	TotalBytes      int64   `json:"totalBytes"`
	Status          string  `json:"status"`
	Error           *string `json:"error"`
}

// Reporter forwards download state changes to the configured server.
// Delivery is best effort; failures are only logged.
type Reporter struct {
	client   *http.Client
	settings ServerSettings
	timeout  time.Duration
	logger   *zap.Logger
}

// New creates a new Reporter
func New(settings ServerSettings, timeout time.Duration, logger *zap.Logger) *Reporter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Reporter{
		client:   &http.Client{Timeout: timeout},
		settings: settings,
		timeout:  timeout,
		logger:   logger,
	}
}

// Handle POSTs the event to <server_url>/api/app-progress
func (r *Reporter) Handle(ev event.DomainEvent) error {
	e, ok := ev.(event.DownloadEvent)
	if !ok {
		return nil
	}

	serverURL, token := r.settings.ServerConfig()
	if serverURL == "" {
		return nil
	}

	if err := r.send(serverURL, token, e); err != nil {
		r.logger.Debug("progress report not delivered",
			zap.String("id", e.DownloadID),
			zap.String("status", e.Status()),
			zap.Error(err))
	}
	return nil
}

func (r *Reporter) send(serverURL, token string, e event.DownloadEvent) error {
	report := progressReport{
		DownloadID:      e.DownloadID,
		FileName:        e.Filename,
		BytesDownloaded: e.DownloadedBytes,
		TotalBytes:      e.TotalBytes,
		Status:          e.Status(),
	}
	if e.Error != "" {
		msg := e.Error
		report.Error = &msg
	}

	body, err := json.Marshal(report)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/api/app-progress", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (r *Reporter) HandledEvents() []string {
	return []string{
		event.NameDownloadStarted,
		event.NameDownloadPaused,
		event.NameDownloadCancelled,
		event.NameDownloadCompleted,
		event.NameDownloadFailed,
	}
}
