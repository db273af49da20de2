package mediastore

import (
	"context"
	"testing"

	"xsched/internal/config"
)

func TestNewMediaStoreFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.MediaConfig
		wantErr bool
	}{
		{"memory", config.MediaConfig{Type: "memory"}, false},
		{"filesystem", config.MediaConfig{Type: "filesystem", Root: t.TempDir()}, false},
		{"filesystem without root", config.MediaConfig{Type: "filesystem"}, true},
		{"s3 without bucket", config.MediaConfig{Type: "s3"}, true},
		{"unknown", config.MediaConfig{Type: "ftp"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewMediaStoreFromConfig(context.Background(), tt.cfg, S3Keys{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewMediaStoreFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got == nil {
				t.Fatal("NewMediaStoreFromConfig() returned nil")
			}
		})
	}
}
