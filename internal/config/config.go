package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for xsched.
type Config struct {
	BaseDir     string            `toml:"base_dir"`
	LogDir      string            `toml:"log_dir"`
	LogLevel    string            `toml:"log_level"` // debug, info, warn or error
	Database    DatabaseConfig    `toml:"database"`
	Media       MediaConfig       `toml:"media"`
	Credentials CredentialsConfig `toml:"credentials"`
	Platform    PlatformConfig    `toml:"platform"`
	Budget      BudgetConfig      `toml:"budget"`
	Scheduler   SchedulerConfig   `toml:"scheduler"`
	Hooks       HooksConfig       `toml:"hooks"`
	Providers   ProvidersConfig   `toml:"providers"`
}

// DatabaseConfig represents configuration for the store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// MediaConfig represents configuration for the media file store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type MediaConfig struct {
	Type string `toml:"type"` // "filesystem", "memory" or "s3"

	// Filesystem-specific fields (only used when Type == "filesystem")
	Root string `toml:"root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`
	// S3Endpoint selects an S3-compatible service such as MinIO.
	S3Endpoint string `toml:"s3_endpoint,omitempty"`
}

// CredentialsConfig holds where provider secrets are kept.
type CredentialsConfig struct {
	Type         string `toml:"type"` // "age" (default) or "memory"
	IdentityPath string `toml:"identity_path,omitempty"`
	StorePath    string `toml:"store_path,omitempty"`
}

// PlatformConfig describes the posting platform.
type PlatformConfig struct {
	CharacterLimit   int      `toml:"character_limit"`
	Timezone         string   `toml:"timezone"` // IANA name; empty means local time
	DefaultPostTimes []string `toml:"default_post_times"`
}

// BudgetConfig bounds generation spend.
type BudgetConfig struct {
	MonthlyLimit      float64 `toml:"monthly_limit"`
	BlockWhenExceeded bool    `toml:"block_when_exceeded"`
}

// SchedulerConfig configures the posting daemon.
type SchedulerConfig struct {
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	LockPath            string `toml:"lock_path"`
}

// HooksConfig tunes hook suggestion and adaptation.
type HooksConfig struct {
	TagWeight         float64 `toml:"tag_weight"`
	PerformanceWeight float64 `toml:"performance_weight"`
	TextWeight        float64 `toml:"text_weight"`
	SuccessScore      float64 `toml:"success_score"`
	DefaultSeparator  string  `toml:"default_separator"`
	SuggestCount      int     `toml:"suggest_count"`
}

// ProvidersConfig holds per-provider settings. Secrets live in the credential store.
type ProvidersConfig struct {
	X      XConfig      `toml:"x"`
	Gemini GeminiConfig `toml:"gemini"`
}

// XConfig configures the X API client.
type XConfig struct {
	BaseURL           string `toml:"base_url"`
	UploadURL         string `toml:"upload_url"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

// GeminiConfig configures image and video generation.
type GeminiConfig struct {
	ImageModel         string  `toml:"image_model"`
	VideoModel         string  `toml:"video_model"`
	ImageCost          float64 `toml:"image_cost"`
	VideoCostPerSecond float64 `toml:"video_cost_per_second"`
	PollSeconds        int     `toml:"poll_seconds"`
}

// NewConfig creates a new Config rooted at baseDir with default values.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		LogLevel: "info",
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Media: MediaConfig{
			Type: "filesystem",
			Root: filepath.Join(baseDir, "media"),
		},
		Credentials: CredentialsConfig{
			Type:         "age",
			IdentityPath: filepath.Join(baseDir, "keys", "credentials.key"),
			StorePath:    filepath.Join(baseDir, "credentials.age"),
		},
		Platform: PlatformConfig{
			CharacterLimit:   280,
			DefaultPostTimes: []string{"09:00", "17:00"},
		},
		Budget: BudgetConfig{
			MonthlyLimit: 50,
		},
		Scheduler: SchedulerConfig{
			PollIntervalSeconds: 60,
			LockPath:            filepath.Join(baseDir, "xsched.lock"),
		},
		Hooks: HooksConfig{
			TagWeight:         0.6,
			PerformanceWeight: 0.3,
			TextWeight:        0.1,
			SuccessScore:      7,
			DefaultSeparator:  " ",
			SuggestCount:      3,
		},
		Providers: ProvidersConfig{
			X: XConfig{
				BaseURL:           "https://api.x.com",
				UploadURL:         "https://api.x.com",
				RequestsPerMinute: 50,
			},
			Gemini: GeminiConfig{
				ImageModel:         "imagen-4.0-generate-001",
				VideoModel:         "veo-3.0-generate-001",
				ImageCost:          0.04,
				VideoCostPerSecond: 0.40,
				PollSeconds:        10,
			},
		},
	}
}

// Location returns the configured posting timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Platform.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Platform.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid platform.timezone: %w", err)
	}
	return loc, nil
}

// PollInterval returns the daemon poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Scheduler.PollIntervalSeconds) * time.Second
}

// Validate reports every setting that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.Platform.CharacterLimit <= 0 {
		errs = append(errs, fmt.Errorf("platform.character_limit must be positive"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	for _, pt := range c.Platform.DefaultPostTimes {
		if _, err := time.Parse("15:04", pt); err != nil {
			errs = append(errs, fmt.Errorf("platform.default_post_times: %q is not HH:MM", pt))
		}
	}
	if c.Budget.MonthlyLimit < 0 {
		errs = append(errs, fmt.Errorf("budget.monthly_limit must not be negative"))
	}
	if c.Scheduler.PollIntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.poll_interval_seconds must be positive"))
	}
	if c.Hooks.TagWeight < 0 || c.Hooks.PerformanceWeight < 0 || c.Hooks.TextWeight < 0 {
		errs = append(errs, fmt.Errorf("hooks weights must not be negative"))
	}
	switch c.Database.Type {
	case "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown database type: %q", c.Database.Type))
	}
	switch c.Media.Type {
	case "filesystem", "memory", "s3":
	default:
		errs = append(errs, fmt.Errorf("unknown media type: %q", c.Media.Type))
	}
	switch c.Credentials.Type {
	case "", "age", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown credentials type: %q", c.Credentials.Type))
	}
	return errors.Join(errs...)
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader. Settings missing from the
// input keep the defaults for baseDir.
func (m *Manager) Read(r io.Reader, baseDir string) (*Config, error) {
	cfg := NewConfig(baseDir)
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path, baseDir string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f, baseDir)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
