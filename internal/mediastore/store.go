// Package mediastore implements xs.MediaStore backends for generated and
// uploaded media files.
package mediastore

import (
	"fmt"
	"path"
	"strings"

	"xsched/internal/model"
)

// kindDirs maps each media kind to its directory inside a store.
var kindDirs = map[model.MediaKind]string{
	model.MediaImage:  "images",
	model.MediaVideo:  "videos",
	model.MediaUpload: "uploads",
}

// Dirs lists the directories every store lays out, in a stable order.
var Dirs = []string{"images", "videos", "uploads"}

// objectKey returns "<dir>/<name>" for kind, refusing names that would
// escape the kind's directory.
func objectKey(kind model.MediaKind, name string) (string, error) {
	dir, ok := kindDirs[kind]
	if !ok {
		return "", fmt.Errorf("unknown media kind %q", kind)
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid media file name %q", name)
	}
	return path.Join(dir, name), nil
}

// validKey reports whether key is "<known dir>/<plain name>".
func validKey(key string) bool {
	dir, name, ok := strings.Cut(key, "/")
	if !ok || name == "" || strings.ContainsAny(name, `/\`) || name == ".." {
		return false
	}
	for _, d := range Dirs {
		if d == dir {
			return true
		}
	}
	return false
}
