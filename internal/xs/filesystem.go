package xs

import "io"

// FilesystemManager gives the services read access to user-supplied files
// (media uploads, hook import files) without touching the OS directly.
type FilesystemManager interface {
	// Resolve validates a raw path and returns a Path object. The path must
	// name an existing regular file.
	Resolve(rawPath string) (*Path, error)

	// Open opens a resolved file for reading.
	Open(path *Path) (io.ReadCloser, error)
}
