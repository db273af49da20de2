package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"xsched/internal/config"
	"xsched/internal/xs"
)

func newTestAgeStore(t *testing.T, env map[string]string) (*AgeStore, config.CredentialsConfig) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.CredentialsConfig{
		Type:         "age",
		IdentityPath: filepath.Join(dir, "keys", "credentials.key"),
		StorePath:    filepath.Join(dir, "credentials.age"),
	}
	return NewAgeStore(cfg, env), cfg
}

func TestAgeStore_MissingIsNotAuthenticated(t *testing.T) {
	t.Parallel()
	s, _ := newTestAgeStore(t, nil)

	_, err := s.Credential(xs.CredentialXAccessToken)
	if !errors.Is(err, xs.ErrNotAuthenticated) {
		t.Errorf("Credential() error = %v, want ErrNotAuthenticated", err)
	}
	if s.Has(xs.CredentialXAccessToken) {
		t.Error("Has() = true before setup")
	}
}

func TestAgeStore_SetAndReload(t *testing.T) {
	t.Parallel()
	s, cfg := newTestAgeStore(t, nil)

	if err := s.SetCredentials(map[string]string{xs.CredentialXAccessToken: "token-1"}); err != nil {
		t.Fatalf("SetCredentials() error = %v", err)
	}
	if err := s.SetCredentials(map[string]string{xs.CredentialGeminiAPIKey: "key-1"}); err != nil {
		t.Fatalf("SetCredentials() error = %v", err)
	}

	// a fresh store must decrypt what the first one wrote
	reloaded := NewAgeStore(cfg, nil)
	for name, want := range map[string]string{
		xs.CredentialXAccessToken: "token-1",
		xs.CredentialGeminiAPIKey: "key-1",
	} {
		got, err := reloaded.Credential(name)
		if err != nil {
			t.Fatalf("Credential(%q) error = %v", name, err)
		}
		if got != want {
			t.Errorf("Credential(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestAgeStore_FilesArePrivateAndEncrypted(t *testing.T) {
	t.Parallel()
	s, cfg := newTestAgeStore(t, nil)

	if err := s.SetCredentials(map[string]string{xs.CredentialXAccessToken: "super-secret"}); err != nil {
		t.Fatalf("SetCredentials() error = %v", err)
	}

	for _, path := range []string{cfg.IdentityPath, cfg.StorePath} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat %s: %v", path, err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Errorf("%s mode = %v, want 0600", filepath.Base(path), info.Mode().Perm())
		}
	}

	data, err := os.ReadFile(cfg.StorePath)
	if err != nil {
		t.Fatalf("reading store: %v", err)
	}
	if strings.Contains(string(data), "super-secret") {
		t.Error("store contains the plaintext secret")
	}
}

func TestAgeStore_EnvOverridesStored(t *testing.T) {
	t.Parallel()
	s, _ := newTestAgeStore(t, map[string]string{xs.CredentialGeminiAPIKey: "from-env"})

	got, err := s.Credential(xs.CredentialGeminiAPIKey)
	if err != nil {
		t.Fatalf("Credential() error = %v", err)
	}
	if got != "from-env" {
		t.Errorf("Credential() = %q, want %q", got, "from-env")
	}

	if err := s.SetCredentials(map[string]string{xs.CredentialGeminiAPIKey: "stored"}); err != nil {
		t.Fatalf("SetCredentials() error = %v", err)
	}
	got, _ = s.Credential(xs.CredentialGeminiAPIKey)
	if got != "from-env" {
		t.Errorf("Credential() after set = %q, want env value", got)
	}
}

func TestAgeStore_WrongIdentity(t *testing.T) {
	t.Parallel()
	s, cfg := newTestAgeStore(t, nil)
	if err := s.SetCredentials(map[string]string{xs.CredentialXAccessToken: "t"}); err != nil {
		t.Fatalf("SetCredentials() error = %v", err)
	}

	other, otherCfg := newTestAgeStore(t, nil)
	if err := other.SetCredentials(map[string]string{"unused": "u"}); err != nil {
		t.Fatalf("SetCredentials() error = %v", err)
	}

	mixed := NewAgeStore(config.CredentialsConfig{IdentityPath: otherCfg.IdentityPath, StorePath: cfg.StorePath}, nil)
	_, err := mixed.Credential(xs.CredentialXAccessToken)
	if err == nil {
		t.Fatal("Credential() with the wrong identity succeeded")
	}
	if errors.Is(err, xs.ErrNotAuthenticated) {
		t.Errorf("Credential() error = %v, want a decryption failure", err)
	}
}
