package mediastore

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"xsched/internal/model"
)

func TestFileSystemStore_PutOpenRemove(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileSystemStore(root)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}

	tests := []struct {
		kind model.MediaKind
		dir  string
	}{
		{model.MediaImage, "images"},
		{model.MediaVideo, "videos"},
		{model.MediaUpload, "uploads"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			data := []byte("bytes of " + string(tt.kind))
			path, err := s.Put(tt.kind, "file.bin", bytes.NewReader(data), int64(len(data)))
			if err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if want := filepath.Join(s.Root(), tt.dir, "file.bin"); path != want {
				t.Errorf("Put() path = %q, want %q", path, want)
			}

			rc, err := s.Open(path)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			got, _ := io.ReadAll(rc)
			rc.Close()
			if !bytes.Equal(got, data) {
				t.Errorf("Open() content = %q, want %q", got, data)
			}

			if err := s.Remove(path); err != nil {
				t.Fatalf("Remove() error = %v", err)
			}
			if _, err := os.Stat(path); !os.IsNotExist(err) {
				t.Errorf("file still exists after Remove()")
			}
			if err := s.Remove(path); err != nil {
				t.Errorf("second Remove() error = %v, want nil", err)
			}
		})
	}
}

func TestFileSystemStore_RejectsForeignPaths(t *testing.T) {
	s, err := NewFileSystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	outside := filepath.Join(t.TempDir(), "secret.txt")
	os.WriteFile(outside, []byte("x"), 0o600)

	paths := []string{
		outside,
		filepath.Join(s.Root(), "images", "..", "..", "secret.txt"),
		filepath.Join(s.Root(), "other", "a.png"),
		s.Root(),
	}
	for _, p := range paths {
		if _, err := s.Open(p); err == nil {
			t.Errorf("Open(%q) succeeded, want error", p)
		}
		if err := s.Remove(p); err == nil {
			t.Errorf("Remove(%q) succeeded, want error", p)
		}
	}
	if _, err := os.Stat(outside); err != nil {
		t.Errorf("outside file was touched: %v", err)
	}
}

func TestFileSystemStore_PutValidation(t *testing.T) {
	s, err := NewFileSystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}

	tests := []struct {
		name    string
		kind    model.MediaKind
		file    string
		data    string
		size    int64
		wantErr string
	}{
		{"traversal name", model.MediaImage, "../x.png", "abc", 3, "invalid media file name"},
		{"empty name", model.MediaImage, "", "abc", 3, "invalid media file name"},
		{"unknown kind", model.MediaKind("audio"), "a.mp3", "abc", 3, "unknown media kind"},
		{"size mismatch", model.MediaImage, "b.png", "abc", 10, "size mismatch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Put(tt.kind, tt.file, strings.NewReader(tt.data), tt.size)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Put() error = %v, want %q", err, tt.wantErr)
			}
		})
	}

	entries, _ := os.ReadDir(filepath.Join(s.Root(), "images"))
	if len(entries) != 0 {
		t.Errorf("images dir has %d entries after failed puts, want 0", len(entries))
	}
}

func TestFileSystemStore_NoOverwrite(t *testing.T) {
	s, err := NewFileSystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	if _, err := s.Put(model.MediaImage, "a.png", strings.NewReader("one"), 3); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := s.Put(model.MediaImage, "a.png", strings.NewReader("two"), 3); err == nil {
		t.Error("second Put() with the same name succeeded")
	}
}

func TestFileSystemStore_ValidateSetup(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileSystemStore(root)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	if err := s.ValidateSetup(); err != nil {
		t.Fatalf("ValidateSetup() error = %v", err)
	}

	os.RemoveAll(filepath.Join(root, "videos"))
	if err := s.ValidateSetup(); err == nil {
		t.Error("ValidateSetup() with a missing directory succeeded")
	}
}
