package port

import "github.com/vertextoedge/download-manager/internal/domain"

// DownloadService is the command surface of the download registry
type DownloadService interface {
	Add(req domain.DownloadRequest) string
	Get(id string) (domain.DownloadStatus, error)
	List() []domain.DownloadStatus

	Start(id string) error
	Pause(id string) error
	Resume(id string) error
	Cancel(id string) error
	Retry(id string) error

	SetConcurrencyLimit(n int)
	ConcurrencyLimit() int
	SetServerConfig(serverURL, authToken string)
	ServerConfig() (serverURL, authToken string)

	ActiveCount() int
	QueuedCount() int
}
