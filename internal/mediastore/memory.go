package mediastore

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"xsched/internal/model"
	"xsched/internal/xs"
)

const memoryScheme = "mem://"

// MemoryStore is an in-memory implementation of the MediaStore interface.
// It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte // key -> content
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string][]byte)}
}

func (m *MemoryStore) Put(kind model.MediaKind, name string, r io.Reader, size int64) (string, error) {
	key, err := objectKey(kind, name)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read media: %w", err)
	}
	if int64(len(data)) != size {
		return "", fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.files[key]; exists {
		return "", fmt.Errorf("media file already exists: %s", key)
	}
	m.files[key] = data
	return memoryScheme + key, nil
}

func (m *MemoryStore) Open(path string) (io.ReadCloser, error) {
	key, ok := strings.CutPrefix(path, memoryScheme)
	if !ok || !validKey(key) {
		return nil, fmt.Errorf("path outside media store: %s", path)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[key]
	if !ok {
		return nil, fmt.Errorf("media file not found: %s", path)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryStore) Remove(path string) error {
	key, ok := strings.CutPrefix(path, memoryScheme)
	if !ok || !validKey(key) {
		return fmt.Errorf("path outside media store: %s", path)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key)
	return nil
}

// ValidateSetup always succeeds for the in-memory store.
func (m *MemoryStore) ValidateSetup() error {
	return nil
}

// Len returns the number of stored files.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// Compile-time check that MemoryStore implements xs.MediaStore interface
var _ xs.MediaStore = (*MemoryStore)(nil)
