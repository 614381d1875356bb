package port

import (
	"io"
)

// DiskUsage represents disk usage statistics
type DiskUsage struct {
	Total   uint64  // Total disk space in bytes
	Used    uint64  // Used disk space in bytes
	Free    uint64  // Free disk space available to the process in bytes
	UsedPct float64 // Used percentage (0-100)
}

// DiskProbe reports free space for a directory's volume
type DiskProbe interface {
	// GetDiskUsage returns disk usage statistics for the volume holding dir
	GetDiskUsage(dir string) (*DiskUsage, error)
}

// DestinationFile is an open, append-only download destination
type DestinationFile interface {
	io.Writer
	// Sync flushes written data to stable storage
	Sync() error
	Close() error
}

// FileSystem defines the filesystem operations used by transfers
type FileSystem interface {
	DiskProbe

	// RootDir returns the download directory
	RootDir() string

	// DestinationPath returns <RootDir>/<filename>, rejecting names that
	// would escape the download directory
	DestinationPath(filename string) (string, error)

	// PartialSize returns the current size of the file at path,
	// or 0 if it does not exist
	PartialSize(path string) (int64, error)

	// OpenAppend opens path for appending, creating it if absent.
	// When truncate is true any existing content is discarded first.
	OpenAppend(path string, truncate bool) (DestinationFile, error)
}
