package credentials

import (
	"fmt"
	"strings"

	"xsched/internal/config"
	"xsched/internal/xs"
)

// EnvName returns the environment variable that overrides a credential,
// e.g. XSCHED_X_ACCESS_TOKEN for "x.access_token".
func EnvName(credential string) string {
	return "XSCHED_" + strings.ToUpper(strings.ReplaceAll(credential, ".", "_"))
}

// FromEnv collects the credentials named in names from lookup.
func FromEnv(lookup func(string) (string, bool), names ...string) map[string]string {
	env := map[string]string{}
	for _, name := range names {
		if v, ok := lookup(EnvName(name)); ok && strings.TrimSpace(v) != "" {
			env[name] = strings.TrimSpace(v)
		}
	}
	return env
}

// NewCredentialStoreFromConfig creates a CredentialStore based on the configuration type.
func NewCredentialStoreFromConfig(cfg config.CredentialsConfig, env map[string]string) (xs.CredentialStore, error) {
	switch cfg.Type {
	case "age", "":
		if cfg.IdentityPath == "" || cfg.StorePath == "" {
			return nil, fmt.Errorf("identity_path and store_path required for age credentials")
		}
		return NewAgeStore(cfg, env), nil
	case "memory":
		return NewMemoryStore(env), nil
	default:
		return nil, fmt.Errorf("unknown credentials type: %q", cfg.Type)
	}
}
