// Package cmd implements the ntbatch command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/ntbatch/internal/config"
	"github.com/3leaps/ntbatch/internal/observability"
)

// VersionInfo is stamped by the build.
type VersionInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// AppIdentity names the binary and its configuration surface.
type AppIdentity struct {
	BinaryName string
	EnvPrefix  string
	ConfigName string
}

var (
	versionInfo = VersionInfo{Version: "dev", Commit: "HEAD", BuildDate: "unknown"}
	appIdentity *AppIdentity

	cfgFile   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "ntbatch",
	Short: "Split ntuple catalogs into batch jobs and submit them as a DAG",
	Long: `ntbatch expands selection files against an ntuple catalog, partitions the
matching files into event-bounded chunks, writes one wrapper script per chunk
plus a finish step, and submits the resulting job graph to HTCondor DAGMan.

Configuration is read from ntbatch.yaml (or --config), NTBATCH_* environment
variables, and command flags, in increasing order of precedence.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initRuntime,
}

func init() {
	appIdentity = &AppIdentity{
		BinaryName: "ntbatch",
		EnvPrefix:  config.EnvPrefix + "_",
		ConfigName: config.DefaultConfigName,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./ntbatch.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (console|json)")
}

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// GetAppIdentity returns the application identity, or nil before init.
func GetAppIdentity() *AppIdentity {
	return appIdentity
}

// Execute runs the root command and exits the process on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}

	observability.CLILogger.Error("command failed", zap.Error(err))
	_ = observability.CLILogger.Sync()
	fmt.Fprintln(os.Stderr, "Error:", err)

	var ec *exitCodeError
	if errors.As(err, &ec) {
		stop()
		os.Exit(ec.code)
	}
	stop()
	os.Exit(exitFailure)
}

// initRuntime loads configuration and the CLI logger before any command runs.
func initRuntime(cmd *cobra.Command, args []string) error {
	overrides := map[string]any{}
	if logLevel != "" {
		overrides["logging.level"] = logLevel
	}
	if logFormat != "" {
		overrides["logging.format"] = logFormat
	}

	cfg, err := config.LoadFile(cmd.Context(), cfgFile, overrides)
	if err != nil {
		return exitError(exitCodeFor(err), "Failed to load configuration", err)
	}
	if err := observability.InitCLILogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return exitError(exitCodeFor(err), "Invalid logging configuration", err)
	}

	observability.CLILogger.Debug("Configuration loaded",
		zap.String("config", cfgFile),
		zap.String("catalog_driver", cfg.Catalog.Driver),
		zap.String("workdir", cfg.Jobs.Workdir))
	return nil
}

// currentConfig returns the configuration loaded by initRuntime, falling
// back to defaults when a command runs without the root pre-run (tests).
func currentConfig(ctx context.Context) (*config.Config, error) {
	if cfg := config.GetConfig(); cfg != nil {
		return cfg, nil
	}
	return config.Load(ctx)
}
