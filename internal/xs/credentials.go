package xs

// Credential names understood by the collaborators.
const (
	CredentialXAccessToken = "x.access_token"
	CredentialGeminiAPIKey = "gemini.api_key"
)

// CredentialStore hands out secrets by name. A missing secret yields an
// error wrapping ErrNotAuthenticated.
type CredentialStore interface {
	Credential(name string) (string, error)

	// SetCredentials merges values into the stored secrets.
	SetCredentials(values map[string]string) error

	// Has reports whether a non-empty secret is available for name.
	Has(name string) bool
}
