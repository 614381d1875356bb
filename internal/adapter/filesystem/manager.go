package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vertextoedge/download-manager/internal/port"
)

// Manager handles the local download directory
type Manager struct {
	rootDir string
}

// Ensure Manager implements port.FileSystem
var _ port.FileSystem = (*Manager)(nil)

// NewManager creates a new filesystem manager, creating rootDir if needed
func NewManager(rootDir string) (*Manager, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	return &Manager{rootDir: rootDir}, nil
}

// RootDir returns the download directory
func (m *Manager) RootDir() string {
	return m.rootDir
}

// DestinationPath returns the local path for a download's file name
func (m *Manager) DestinationPath(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("empty file name")
	}

	path := filepath.Join(m.rootDir, filename)

	// Prevent directory traversal
	root := filepath.Clean(m.rootDir) + string(filepath.Separator)
	if !strings.HasPrefix(filepath.Clean(path), root) {
		return "", fmt.Errorf("invalid file name: %q", filename)
	}

	return path, nil
}

// EnsureDir ensures the directory for a file path exists
func (m *Manager) EnsureDir(filePath string) error {
	return os.MkdirAll(filepath.Dir(filePath), 0755)
}

// PartialSize returns the size of an existing (partial) file, 0 if absent
func (m *Manager) PartialSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}

// OpenAppend opens the destination file in append mode
func (m *Manager) OpenAppend(path string, truncate bool) (port.DestinationFile, error) {
	if err := m.EnsureDir(path); err != nil {
		return nil, fmt.Errorf("failed to create parent dir: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if truncate {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}
