package mediastore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"xsched/internal/model"
	"xsched/internal/xs"
)

// FileSystemStore keeps media as files under a root directory:
//
//	<root>/
//	  images/    generated images
//	  videos/    generated videos
//	  uploads/   user files copied in by attach
type FileSystemStore struct {
	root string
}

// NewFileSystemStore creates a store rooted at root, creating its directories.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving media root: %w", err)
	}
	for _, dir := range Dirs {
		if err := os.MkdirAll(filepath.Join(absRoot, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}
	return &FileSystemStore{root: absRoot}, nil
}

// Root returns the absolute store root.
func (s *FileSystemStore) Root() string {
	return s.root
}

// Put writes r to <root>/<kind dir>/<name> atomically and returns the absolute path.
func (s *FileSystemStore) Put(kind model.MediaKind, name string, r io.Reader, size int64) (string, error) {
	key, err := objectKey(kind, name)
	if err != nil {
		return "", err
	}
	destPath := filepath.Join(s.root, filepath.FromSlash(key))
	if _, err := os.Stat(destPath); err == nil {
		return "", fmt.Errorf("media file already exists: %s", destPath)
	}
	if err := s.writeFile(destPath, r, size); err != nil {
		return "", err
	}
	return destPath, nil
}

// Open opens a stored file.
func (s *FileSystemStore) Open(path string) (io.ReadCloser, error) {
	p, err := s.contained(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("media file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to open media file: %w", err)
	}
	return f, nil
}

// Remove deletes a stored file.
func (s *FileSystemStore) Remove(path string) error {
	p, err := s.contained(path)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove media file: %w", err)
	}
	return nil
}

// ValidateSetup verifies that the media directories are accessible.
func (s *FileSystemStore) ValidateSetup() error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("media root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("media root is not a directory: %s", s.root)
	}
	for _, dir := range Dirs {
		info, err := os.Stat(filepath.Join(s.root, dir))
		if err != nil {
			return fmt.Errorf("media directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("media path is not a directory: %s", dir)
		}
	}
	return nil
}

// contained maps an absolute stored path back to a file under the root and
// rejects anything else.
func (s *FileSystemStore) contained(path string) (string, error) {
	clean := filepath.Clean(path)
	rel, err := filepath.Rel(s.root, clean)
	if err != nil || strings.HasPrefix(rel, "..") || !validKey(filepath.ToSlash(rel)) {
		return "", fmt.Errorf("path outside media store: %s", path)
	}
	return clean, nil
}

// writeFile writes data from r to destPath using a temp file and rename.
func (s *FileSystemStore) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemStore implements xs.MediaStore interface
var _ xs.MediaStore = (*FileSystemStore)(nil)
