// Package fs provides the OS-backed xs.FilesystemManager used to read media
// uploads and hook import files.
package fs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"xsched/internal/xs"
)

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
type OSFilesystemManager struct {
	// maxSize rejects files larger than this many bytes; zero means no limit.
	maxSize int64
}

// NewOSFilesystemManager creates a filesystem manager that refuses files
// larger than maxSize bytes. A zero maxSize disables the check.
func NewOSFilesystemManager(maxSize int64) *OSFilesystemManager {
	return &OSFilesystemManager{maxSize: maxSize}
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*xs.Path, error) {
	if rawPath == "" {
		return nil, fmt.Errorf("empty path")
	}
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	switch {
	case mode.IsDir():
		return nil, fmt.Errorf("is a directory: %s", absPath)
	case mode&os.ModeDevice != 0:
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	case mode&os.ModeNamedPipe != 0:
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	case mode&os.ModeSocket != 0:
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	case !mode.IsRegular():
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}
	if m.maxSize > 0 && info.Size() > m.maxSize {
		return nil, fmt.Errorf("file too large: %s is %d bytes, limit %d", absPath, info.Size(), m.maxSize)
	}

	return xs.NewPath(absPath, info.Size()), nil
}

// Open opens a resolved file for reading.
func (m *OSFilesystemManager) Open(path *xs.Path) (io.ReadCloser, error) {
	return os.Open(path.String())
}

// Compile-time check that OSFilesystemManager implements xs.FilesystemManager interface
var _ xs.FilesystemManager = (*OSFilesystemManager)(nil)
