package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kebairia/deployctl/internal/config"
	"github.com/kebairia/deployctl/internal/logger"
	"github.com/kebairia/deployctl/internal/operations"
)

// DefaultConfigFile is used when --config is not given and the file exists.
const DefaultConfigFile = "deployctl.yaml"

var (
	// ConfigFile is the path to the YAML configuration.
	ConfigFile string
	// LogLevel overrides log.level from the configuration.
	LogLevel string

	cfg config.Config
	log logger.Logger = logger.Nop()

	// rootCmd is the base command for deployctl. Without a subcommand it
	// deploys.
	rootCmd = &cobra.Command{
		Use:   "deployctl",
		Short: "Deploy a docker compose service with backup and automatic rollback",
		Long: `deployctl backs up the current state of a docker compose service,
rebuilds and restarts it, waits for its readiness endpoint and rolls
back to the last backup when the new version never becomes ready.

Running deployctl without a subcommand is the same as "deployctl deploy".`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		RunE:              runDeploy,
	}
)

// setup loads and validates the configuration and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	path := ConfigFile
	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %w", config.ErrLoadConfig, err)
		}
	}

	if err := cfg.Load(path); err != nil {
		return err
	}
	if LogLevel != "" {
		cfg.Log.Level = LogLevel
	}

	l, err := logger.Init(logger.Options{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log = l.With("service", cfg.Service.Name)

	if err := cfg.Validate(); err != nil {
		return err
	}
	log.Debug("configuration loaded", "path", path)
	return nil
}

func newOperationManager() (*operations.OperationManager, error) {
	return operations.NewOperationManager(&cfg, log)
}

// Execute runs the root command and returns the process exit code.
// SIGINT and SIGTERM cancel the command context.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer logger.Cleanup()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	}
	return ExitCode(err)
}

func init() {
	rootCmd.PersistentFlags().
		StringVarP(&ConfigFile, "config", "c", "", "path to YAML config file (default ./"+DefaultConfigFile+" when present)")
	rootCmd.PersistentFlags().
		StringVar(&LogLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	rootCmd.Flags().
		BoolVar(&skipVerify, "skip-verify", false, "do not run the verification suite")

	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(backupsCmd)
	rootCmd.AddCommand(cleanupCmd)
}
