package testutil

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"xsched/internal/xs"
)

// MockFilesystemManager is an in-memory filesystem for testing.
type MockFilesystemManager struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files: make(map[string][]byte),
	}
}

// AddFile adds a file to the mock filesystem.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filepath.Clean(path)] = content
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*xs.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[absPath]
	if !ok {
		return nil, fmt.Errorf("stat path: no such file: %s", absPath)
	}
	return xs.NewPath(absPath, int64(len(content))), nil
}

func (m *MockFilesystemManager) Open(path *xs.Path) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path.String())
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

// Compile-time check that MockFilesystemManager implements xs.FilesystemManager interface
var _ xs.FilesystemManager = (*MockFilesystemManager)(nil)
