// Package credentials stores provider secrets for xsched.
package credentials

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"filippo.io/age"

	"xsched/internal/config"
	"xsched/internal/xs"
)

// AgeStore keeps secrets as an age-encrypted JSON object. The X25519
// identity lives in its own 0600 file so that the daemon can decrypt
// without a passphrase. Values from the environment overlay take
// precedence over stored ones and are never written back.
type AgeStore struct {
	identityPath string
	storePath    string
	env          map[string]string

	mu     sync.Mutex
	cached map[string]string
}

var _ xs.CredentialStore = (*AgeStore)(nil)

// NewAgeStore creates an AgeStore from configuration. env maps credential
// names to values found in the environment.
func NewAgeStore(cfg config.CredentialsConfig, env map[string]string) *AgeStore {
	return &AgeStore{
		identityPath: cfg.IdentityPath,
		storePath:    cfg.StorePath,
		env:          env,
	}
}

// Credential returns the named secret.
func (s *AgeStore) Credential(name string) (string, error) {
	if v := s.env[name]; v != "" {
		return v, nil
	}
	secrets, err := s.load()
	if err != nil {
		return "", err
	}
	v := secrets[name]
	if v == "" {
		return "", fmt.Errorf("%w: no %s credential", xs.ErrNotAuthenticated, name)
	}
	return v, nil
}

// Has reports whether the named secret is available.
func (s *AgeStore) Has(name string) bool {
	_, err := s.Credential(name)
	return err == nil
}

// SetCredentials merges values into the encrypted store, creating the
// identity on first use.
func (s *AgeStore) SetCredentials(values map[string]string) error {
	secrets, err := s.load()
	if err != nil && !errors.Is(err, xs.ErrNotAuthenticated) {
		return err
	}
	merged := make(map[string]string, len(secrets)+len(values))
	for k, v := range secrets {
		merged[k] = v
	}
	for k, v := range values {
		merged[k] = v
	}

	identity, err := s.ensureIdentity()
	if err != nil {
		return err
	}
	plaintext, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, identity.Recipient())
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return fmt.Errorf("encrypting credentials: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}

	if err := writeFileAtomic(s.storePath, buf.Bytes()); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	s.mu.Lock()
	s.cached = merged
	s.mu.Unlock()
	return nil
}

// load decrypts the store once per process. A missing store or identity
// reads as "nothing configured".
func (s *AgeStore) load() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil {
		return s.cached, nil
	}

	ciphertext, err := os.ReadFile(s.storePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: no credentials stored; run auth setup", xs.ErrNotAuthenticated)
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	identity, err := s.readIdentity()
	if err != nil {
		return nil, err
	}
	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting credentials: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decrypting credentials: %w", err)
	}

	secrets := map[string]string{}
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return nil, fmt.Errorf("decoding credentials: %w", err)
	}
	s.cached = secrets
	return secrets, nil
}

func (s *AgeStore) readIdentity() (*age.X25519Identity, error) {
	data, err := os.ReadFile(s.identityPath)
	if err != nil {
		return nil, fmt.Errorf("reading identity: %w", err)
	}
	identity, err := age.ParseX25519Identity(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing identity: %w", err)
	}
	return identity, nil
}

func (s *AgeStore) ensureIdentity() (*age.X25519Identity, error) {
	identity, err := s.readIdentity()
	if err == nil {
		return identity, nil
	}
	if _, statErr := os.Stat(s.identityPath); !errors.Is(statErr, fs.ErrNotExist) {
		return nil, err
	}

	identity, err = age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.identityPath), 0o700); err != nil {
		return nil, fmt.Errorf("creating identity directory: %w", err)
	}
	if err := os.WriteFile(s.identityPath, []byte(identity.String()+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("writing identity: %w", err)
	}
	return identity, nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".credentials-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
