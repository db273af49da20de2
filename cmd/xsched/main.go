package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"xsched/internal/app"
	"xsched/internal/config"
	"xsched/internal/xs"
)

func main() {
	initColor()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", errorLabel(xs.Kind(err)), err)
		os.Exit(xs.ExitCode(err))
	}
}

var configPathFlag string

// loadConfig resolves the config path and base dir, loads .env files and
// reads the config.
func loadConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}
	configPath := defaults["config_path"]
	if configPathFlag != "" {
		configPath = configPathFlag
	}

	if err := app.LoadEnvFiles(".env", filepath.Join(defaults["base_dir"], ".env")); err != nil {
		return nil, "", err
	}

	cfg, err := config.ReadFromFile(configPath, defaults["base_dir"])
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: no config at %s; run xsched init", xs.ErrValidation, configPath)
		}
		return nil, "", fmt.Errorf("%w: reading config: %w", xs.ErrValidation, err)
	}
	return cfg, configPath, nil
}

// newApp reads the config and creates an XSApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Create", "Daemon").
func newApp(operation string) (*app.XSApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewXSApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// withApp runs fn against a fresh app and records its outcome.
func withApp(operation string, fn func(a *app.XSApp) error) error {
	a, err := newApp(operation)
	if err != nil {
		return err
	}
	defer a.Close()

	err = fn(a)
	a.Finish(err)
	return err
}

var rootCmd = &cobra.Command{
	Use:           "xsched",
	Short:         "Schedule, enrich and post tweets",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the config file, database and media directories",
	Args:  noArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		configPath := defaults["config_path"]
		if configPathFlag != "" {
			configPath = configPathFlag
		}

		cfg, err := config.ReadFromFile(configPath, defaults["base_dir"])
		switch {
		case err == nil:
			fmt.Printf("Using existing configuration at %s\n", configPath)
		case errors.Is(err, os.ErrNotExist):
			cfg = config.NewConfig(defaults["base_dir"])
			if err := config.Init(configPath, cfg); err != nil {
				return fmt.Errorf("failed to initialize config: %w", err)
			}
			fmt.Printf("Configuration initialized at %s\n", configPath)
		default:
			return fmt.Errorf("%w: reading config: %w", xs.ErrValidation, err)
		}

		if err := app.Initialize(cfg); err != nil {
			return err
		}
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Database: %s\n", cfg.Database.DataDir)
		fmt.Printf("Media:    %s (%s)\n", cfg.Media.Root, cfg.Media.Type)
		fmt.Println("Next: xsched auth setup x")
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	Args:  noArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, configPath, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("# Configuration from %s\n\n", configPath)
		m := &config.Manager{}
		if err := m.Write(os.Stdout, cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", warnLabel(), err)
		}
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup [DEST]",
	Short: "Write a consistent copy of the database",
	Args:  maxArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("Backup", func(a *app.XSApp) error {
			dest := ""
			if len(args) > 0 {
				dest = args[0]
			}
			path, err := a.Backup(dest)
			if err != nil {
				return err
			}
			printKV("BACKUP_PATH", path)
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "", "Config file (default $XSCHED_CONFIG_PATH or ~/.config/xsched.toml)")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", xs.ErrValidation, err)
	})

	configCmd.AddCommand(configListCmd)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(backupCmd)
}
