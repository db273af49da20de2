package mediastore

import (
	"io"
	"strings"
	"testing"

	"xsched/internal/model"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()

	path, err := s.Put(model.MediaVideo, "clip.mp4", strings.NewReader("video"), 5)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if path != "mem://videos/clip.mp4" {
		t.Errorf("Put() path = %q, want mem://videos/clip.mp4", path)
	}

	rc, err := s.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	got, _ := io.ReadAll(rc)
	if string(got) != "video" {
		t.Errorf("Open() content = %q, want %q", got, "video")
	}

	if _, err := s.Open("/etc/passwd"); err == nil {
		t.Error("Open() of a foreign path succeeded")
	}
	if err := s.Remove(path); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d after Remove(), want 0", s.Len())
	}
	if _, err := s.Open(path); err == nil {
		t.Error("Open() after Remove() succeeded")
	}
}
