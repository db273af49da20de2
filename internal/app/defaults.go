package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - XSCHED_CONFIG_PATH: config file location (default: ~/.config/xsched.toml)
//   - XSCHED_HOME: base directory for xsched data (default: ~/.local/share/xsched)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking XSCHED_CONFIG_PATH env var first,
// then falling back to the default ~/.config/xsched.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("XSCHED_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "xsched.toml"), nil
}

// getBaseDir returns the base directory for xsched data, checking XSCHED_HOME env var first,
// then falling back to the XDG default ~/.local/share/xsched.
func getBaseDir() (string, error) {
	if path := os.Getenv("XSCHED_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "xsched"), nil
}

// LoadEnvFiles loads KEY=value files into the process environment.
// Missing files are skipped and variables already set are kept.
func LoadEnvFiles(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("checking env file %s: %w", p, err)
		}
		existing = append(existing, p)
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("loading env files: %w", err)
	}
	return nil
}
