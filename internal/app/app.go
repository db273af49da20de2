package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"xsched/internal/config"
	"xsched/internal/credentials"
	"xsched/internal/daemon"
	"xsched/internal/database"
	"xsched/internal/fs"
	"xsched/internal/mediastore"
	"xsched/internal/providers/gemini"
	"xsched/internal/providers/xapi"
	"xsched/internal/xs"
)

// MaxUploadSize bounds files accepted by media attach.
const MaxUploadSize = 512 << 20

// S3 credential names used when the media store is S3 and static keys are wanted.
const (
	CredentialS3AccessKey = "s3.access_key"
	CredentialS3SecretKey = "s3.secret_key"
)

// XSApp is the application layer between the CLI and the xs services.
// It constructs all dependencies from config, exposes operations that
// accept raw string paths, and manages the DB lifecycle on Close.
type XSApp struct {
	cfg     *config.Config
	db      *database.SQLiteDatabase
	media   xs.MediaStore
	creds   xs.CredentialStore
	fsmgr   xs.FilesystemManager
	logger  xs.Logger
	clock   xs.Clock
	op      *Operation
	logFile *os.File

	tweets   *xs.TweetManager
	hooks    *xs.HookMatcher
	usage    *xs.UsageTracker
	mediaSvc *xs.MediaService
	auth     *xs.AuthService
	stats    *xs.StatsService
}

// NewXSApp creates a fully wired XSApp from the given config.
// operation identifies the CLI command being run (e.g. "Create", "Daemon").
// The caller must call Close when done.
func NewXSApp(cfg *config.Config, operation string) (*XSApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid config: %w", xs.ErrValidation, err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	clock := xs.RealClock{}
	op := NewOperation(operation, clock.Now())
	slogger, logFile, err := newLogger(cfg.LogDir, op.ID, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	env := credentials.FromEnv(os.LookupEnv,
		xs.CredentialXAccessToken, xs.CredentialGeminiAPIKey,
		CredentialS3AccessKey, CredentialS3SecretKey)
	creds, err := credentials.NewCredentialStoreFromConfig(cfg.Credentials, env)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating credential store: %w", err)
	}

	media, err := mediastore.NewMediaStoreFromConfig(context.Background(), cfg.Media, s3Keys(creds))
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("%w: creating media store: %w", xs.ErrStore, err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("%w: creating database: %w", xs.ErrStore, err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("%w: database schema out of date (run xsched init): %w", xs.ErrStore, err)
	}

	a := newXSApp(cfg, db, media, creds, fs.NewOSFilesystemManager(MaxUploadSize),
		xapi.NewClient(cfg.Providers.X, creds, logger),
		gemini.NewGenerator(cfg.Providers.Gemini, creds, logger),
		logger, clock, loc)
	a.op = op
	a.logFile = logFile
	logger.Debug("operation started", "operation", op.Name)
	return a, nil
}

// generator produces both images and videos.
type generator interface {
	xs.ImageGenerator
	xs.VideoGenerator
	xs.Verifier
}

// newXSApp wires the services from already constructed dependencies.
func newXSApp(cfg *config.Config, db *database.SQLiteDatabase, media xs.MediaStore, creds xs.CredentialStore,
	fsmgr xs.FilesystemManager, poster xs.Poster, gen generator, logger xs.Logger, clock xs.Clock, loc *time.Location) *XSApp {
	usage := xs.NewUsageTracker(db, logger, clock, loc)
	hooks := xs.NewHookMatcher(db, logger, clock, xs.HookOptions{
		TagWeight:         cfg.Hooks.TagWeight,
		PerformanceWeight: cfg.Hooks.PerformanceWeight,
		TextWeight:        cfg.Hooks.TextWeight,
		SuccessScore:      cfg.Hooks.SuccessScore,
		DefaultSeparator:  cfg.Hooks.DefaultSeparator,
		DefaultCount:      cfg.Hooks.SuggestCount,
	})
	tweets := xs.NewTweetManager(db, hooks, usage, media, poster, logger, clock, xs.LifecycleOptions{
		CharacterLimit: cfg.Platform.CharacterLimit,
		PostTimes:      cfg.Platform.DefaultPostTimes,
		Location:       loc,
	})
	mediaSvc := xs.NewMediaService(db, media, fsmgr, usage, gen, gen, logger, xs.UUIDGenerator{}, clock, xs.MediaOptions{
		MonthlyBudget:   cfg.Budget.MonthlyLimit,
		BlockOverBudget: cfg.Budget.BlockWhenExceeded,
	})
	auth := xs.NewAuthService(creds, map[string]xs.Verifier{"x": poster, "gemini": gen}, logger)

	return &XSApp{
		cfg:      cfg,
		db:       db,
		media:    media,
		creds:    creds,
		fsmgr:    fsmgr,
		logger:   logger,
		clock:    clock,
		op:       NewOperation("", clock.Now()),
		tweets:   tweets,
		hooks:    hooks,
		usage:    usage,
		mediaSvc: mediaSvc,
		auth:     auth,
		stats:    xs.NewStatsService(db, usage, cfg.Budget.MonthlyLimit),
	}
}

func s3Keys(creds xs.CredentialStore) mediastore.S3Keys {
	access, _ := creds.Credential(CredentialS3AccessKey)
	secret, _ := creds.Credential(CredentialS3SecretKey)
	return mediastore.S3Keys{AccessKey: access, SecretKey: secret}
}

// Config returns the configuration the app was built from.
func (a *XSApp) Config() *config.Config { return a.cfg }

// Tweets returns the tweet lifecycle manager.
func (a *XSApp) Tweets() *xs.TweetManager { return a.tweets }

// Hooks returns the hook matcher.
func (a *XSApp) Hooks() *xs.HookMatcher { return a.hooks }

// Usage returns the API usage tracker.
func (a *XSApp) Usage() *xs.UsageTracker { return a.usage }

// Media returns the media service.
func (a *XSApp) Media() *xs.MediaService { return a.mediaSvc }

// Auth returns the credential service.
func (a *XSApp) Auth() *xs.AuthService { return a.auth }

// Stats returns the reporting service.
func (a *XSApp) Stats() *xs.StatsService { return a.stats }

// Operation returns the operation being run.
func (a *XSApp) Operation() *Operation { return a.op }

// ImportHooks reads a hook batch from rawPath, or from stdin when rawPath is "-".
// format may be empty to infer it from the file extension.
func (a *XSApp) ImportHooks(rawPath, format string, stdin io.Reader) (*xs.ImportReport, error) {
	if rawPath == "-" {
		f, err := xs.ParseImportFormat(format, "")
		if err != nil {
			return nil, err
		}
		return a.hooks.Import(stdin, f)
	}

	p, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving path: %w", xs.ErrValidation, err)
	}
	f, err := xs.ParseImportFormat(format, p.Base())
	if err != nil {
		return nil, err
	}
	rc, err := a.fsmgr.Open(p)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", xs.ErrValidation, p, err)
	}
	defer rc.Close()
	return a.hooks.Import(rc, f)
}

// Backup writes a consistent copy of the database. An empty dest writes to
// <base_dir>/backups/xsched-<timestamp>.db. It returns the written path.
func (a *XSApp) Backup(dest string) (string, error) {
	if dest == "" {
		dest = filepath.Join(a.cfg.BaseDir, "backups", "xsched-"+a.clock.Now().UTC().Format("20060102T150405Z")+".db")
	}
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return "", fmt.Errorf("%w: resolving backup path: %w", xs.ErrValidation, err)
	}
	if _, err := os.Stat(absDest); err == nil {
		return "", fmt.Errorf("%w: backup file already exists: %s", xs.ErrValidation, absDest)
	}
	if err := os.MkdirAll(filepath.Dir(absDest), 0o700); err != nil {
		return "", fmt.Errorf("%w: creating backup directory: %w", xs.ErrStore, err)
	}
	if err := a.db.BackupTo(absDest); err != nil {
		return "", fmt.Errorf("%w: backing up database: %w", xs.ErrStore, err)
	}
	a.logger.Info("database backed up", "path", absDest)
	return absDest, nil
}

// NewDaemon builds the scheduling daemon for this app.
func (a *XSApp) NewDaemon() (*daemon.Daemon, error) {
	lockPath := a.cfg.Scheduler.LockPath
	if lockPath == "" {
		lockPath = filepath.Join(a.cfg.BaseDir, "xsched.lock")
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o700); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	return daemon.New(a.tweets, a.logger, lockPath, a.cfg.PollInterval())
}

// Finish records the outcome of the operation. err may be nil.
func (a *XSApp) Finish(err error) {
	if err != nil {
		a.op.Fail(err)
		a.logger.Error("operation failed", "operation", a.op.Name, "kind", a.op.ErrorKind, "error", err,
			"duration", a.op.Duration(a.clock.Now()).String())
		return
	}
	a.logger.Debug("operation finished", "operation", a.op.Name, "duration", a.op.Duration(a.clock.Now()).String())
}

// Close closes the database and the log file.
func (a *XSApp) Close() error {
	var firstErr error
	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// Initialize prepares a fresh installation: it creates the directory
// layout, applies database migrations and checks the media store.
func Initialize(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: invalid config: %w", xs.ErrValidation, err)
	}
	for _, dir := range []string{cfg.BaseDir, cfg.LogDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("%w: creating %s: %w", xs.ErrStore, dir, err)
		}
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("%w: creating database: %w", xs.ErrStore, err)
	}
	defer db.Close()
	if err := db.MigrateUp(); err != nil {
		return fmt.Errorf("%w: migrating database: %w", xs.ErrStore, err)
	}

	if cfg.Media.Type != "s3" {
		media, err := mediastore.NewMediaStoreFromConfig(context.Background(), cfg.Media, mediastore.S3Keys{})
		if err != nil {
			return fmt.Errorf("%w: creating media store: %w", xs.ErrStore, err)
		}
		if err := media.ValidateSetup(); err != nil {
			return fmt.Errorf("%w: %w", xs.ErrStore, err)
		}
	}
	return nil
}
