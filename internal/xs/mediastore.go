package xs

import (
	"io"

	"xsched/internal/model"
)

// MediaStore owns the media directory tree. Every path it returns is under
// its control; Open and Remove refuse paths it did not hand out.
type MediaStore interface {
	// Put stores the bytes read from r under the directory for kind and
	// returns the stored path. size is the number of bytes that will be read.
	Put(kind model.MediaKind, name string, r io.Reader, size int64) (string, error)

	// Open returns a reader for a stored path.
	Open(path string) (io.ReadCloser, error)

	// Remove deletes a stored path. Removing a missing path is not an error.
	Remove(path string) error

	// ValidateSetup verifies that the store is accessible.
	ValidateSetup() error
}
