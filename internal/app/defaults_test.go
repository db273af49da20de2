package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("XSCHED_CONFIG_PATH", "/custom/config.toml")
		t.Setenv("XSCHED_HOME", "/custom/xsched")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		if defaults["config_path"] != "/custom/config.toml" {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], "/custom/config.toml")
		}
		if defaults["base_dir"] != "/custom/xsched" {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], "/custom/xsched")
		}
		if defaults["log_dir"] != "/custom/xsched/log" {
			t.Errorf("log_dir = %q, want %q", defaults["log_dir"], "/custom/xsched/log")
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv("XSCHED_CONFIG_PATH", "")
		t.Setenv("XSCHED_HOME", "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()

		wantConfig := filepath.Join(homeDir, ".config", "xsched.toml")
		if defaults["config_path"] != wantConfig {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], wantConfig)
		}

		wantBase := filepath.Join(homeDir, ".local", "share", "xsched")
		if defaults["base_dir"] != wantBase {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], wantBase)
		}
	})
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "XSCHED_TEST_TOKEN=from-file\nXSCHED_TEST_KEEP=from-file\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("XSCHED_TEST_KEEP", "from-env")
	t.Setenv("XSCHED_TEST_TOKEN", "")
	os.Unsetenv("XSCHED_TEST_TOKEN")

	if err := LoadEnvFiles(filepath.Join(dir, "missing.env"), envPath); err != nil {
		t.Fatalf("LoadEnvFiles() error = %v", err)
	}

	if got := os.Getenv("XSCHED_TEST_TOKEN"); got != "from-file" {
		t.Errorf("XSCHED_TEST_TOKEN = %q, want %q", got, "from-file")
	}
	if got := os.Getenv("XSCHED_TEST_KEEP"); got != "from-env" {
		t.Errorf("XSCHED_TEST_KEEP = %q, want the existing value", got)
	}
}
