package xs

import (
	"context"
	"errors"
	"strings"
)

// Provider is an external service and the credential fields it needs.
type Provider struct {
	Name   string
	Fields []string
}

// CredentialName returns the store name of one of the provider's fields.
func (p Provider) CredentialName(field string) string {
	return p.Name + "." + field
}

// Providers lists the services xsched talks to.
var Providers = []Provider{
	{Name: "x", Fields: []string{"access_token"}},
	{Name: "gemini", Fields: []string{"api_key"}},
}

func findProvider(name string) (Provider, error) {
	for _, p := range Providers {
		if p.Name == name {
			return p, nil
		}
	}
	return Provider{}, kindError(ErrValidation, "unknown provider %q", name)
}

// ProviderStatus reports whether a provider has all its credentials.
type ProviderStatus struct {
	Name       string
	Configured bool
	Missing    []string
}

// AuthService manages provider credentials.
type AuthService struct {
	creds     CredentialStore
	verifiers map[string]Verifier
	logger    Logger
}

// NewAuthService creates an AuthService. verifiers maps provider names to
// the collaborator that can test their credentials.
func NewAuthService(creds CredentialStore, verifiers map[string]Verifier, logger Logger) *AuthService {
	return &AuthService{creds: creds, verifiers: verifiers, logger: logger}
}

// Setup stores the credentials for provider. values is keyed by field name.
func (a *AuthService) Setup(provider string, values map[string]string) error {
	p, err := findProvider(provider)
	if err != nil {
		return err
	}
	secrets := make(map[string]string, len(p.Fields))
	for _, f := range p.Fields {
		v := strings.TrimSpace(values[f])
		if v == "" {
			return kindError(ErrValidation, "%s requires %s", p.Name, f)
		}
		secrets[p.CredentialName(f)] = v
	}
	if err := a.creds.SetCredentials(secrets); err != nil {
		return storeError("saving credentials", err)
	}
	a.logger.Info("credentials saved", "provider", p.Name)
	return nil
}

// Status reports which providers are configured.
func (a *AuthService) Status() []ProviderStatus {
	out := make([]ProviderStatus, len(Providers))
	for i, p := range Providers {
		st := ProviderStatus{Name: p.Name}
		for _, f := range p.Fields {
			if !a.creds.Has(p.CredentialName(f)) {
				st.Missing = append(st.Missing, f)
			}
		}
		st.Configured = len(st.Missing) == 0
		out[i] = st
	}
	return out
}

// Test verifies the provider's credentials against the live service.
func (a *AuthService) Test(ctx context.Context, provider string) (string, error) {
	p, err := findProvider(provider)
	if err != nil {
		return "", err
	}
	for _, f := range p.Fields {
		if !a.creds.Has(p.CredentialName(f)) {
			return "", kindError(ErrNotAuthenticated, "%s has no %s; run auth setup", p.Name, f)
		}
	}
	v, ok := a.verifiers[p.Name]
	if !ok {
		return "", kindError(ErrValidation, "no verifier for provider %s", p.Name)
	}
	account, err := v.Verify(ctx)
	if err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			return "", err
		}
		return "", collaboratorError("verifying "+p.Name, err)
	}
	a.logger.Info("credentials verified", "provider", p.Name, "account", account)
	return account, nil
}
