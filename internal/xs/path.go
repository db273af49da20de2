package xs

import (
	"path/filepath"
	"strings"
)

// Path is a validated user file. Path objects are created by
// FilesystemManager.Resolve, which makes the path absolute and records its size.
type Path struct {
	absPath string
	size    int64
}

// NewPath creates a Path from its components.
// This is primarily for use by FilesystemManager implementations.
func NewPath(absPath string, size int64) *Path {
	return &Path{absPath: absPath, size: size}
}

// String returns the absolute path.
func (p *Path) String() string {
	return p.absPath
}

// Size returns the file size recorded at resolution time.
func (p *Path) Size() int64 {
	return p.size
}

// Ext returns the lower-cased file extension including the dot.
func (p *Path) Ext() string {
	return strings.ToLower(filepath.Ext(p.absPath))
}

// Base returns the last element of the path.
func (p *Path) Base() string {
	return filepath.Base(p.absPath)
}
