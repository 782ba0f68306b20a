package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/ntbatch/internal/config"
	"github.com/3leaps/ntbatch/internal/observability"
	"github.com/3leaps/ntbatch/pkg/submit"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the submission environment: the runtime variable
every job inherits, the scheduler submit command, the downstream executable
and binning file, and the catalog database.

Examples:
  ntbatch doctor
  ntbatch doctor --workdir /data/run2`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

var doctorWorkdir string

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().StringVarP(&doctorWorkdir, "workdir", "w", "", "Working directory to check (default from jobs.workdir)")
}

// checkResult is one diagnostic line.
type checkResult struct {
	Name   string
	OK     bool
	Detail string
	Err    error
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	bannerName := "doctor"
	if identity := GetAppIdentity(); identity != nil && identity.BinaryName != "" {
		bannerName = identity.BinaryName + " doctor"
	}
	observability.CLILogger.Info("=== " + bannerName + " ===")
	observability.CLILogger.Info("Running diagnostic checks...")

	cfg, err := currentConfig(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	if doctorWorkdir != "" {
		c := *cfg
		c.Jobs.Workdir = doctorWorkdir
		cfg = &c
	}

	results := doctorChecks(ctx, cfg)
	failed := 0
	for i, r := range results {
		prefix := fmt.Sprintf("[%d/%d] Checking %s...", i+1, len(results), r.Name)
		if r.OK {
			observability.CLILogger.Info(prefix+" ✅ "+r.Detail, zap.String("check", r.Name))
			continue
		}
		failed++
		observability.CLILogger.Error(prefix+" ❌ "+r.Detail, zap.String("check", r.Name), zap.Error(r.Err))
	}

	if failed > 0 {
		observability.CLILogger.Warn("⚠️  Some checks failed. Review the output above for details.")
		return exitError(foundry.ExitInvalidArgument, "Doctor found problems",
			fmt.Errorf("%d of %d checks failed", failed, len(results)))
	}
	observability.CLILogger.Info(fmt.Sprintf("✅ All checks passed! Your %s environment is ready.", bannerName))
	return nil
}

// doctorChecks runs every check and never stops early.
func doctorChecks(ctx context.Context, cfg *config.Config) []checkResult {
	results := []checkResult{
		{Name: "environment", OK: true, Detail: fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)},
	}

	if _, err := submit.ResolveEnv(cfg.Jobs.EnvVar, cfg.Jobs.EnvFile); err != nil {
		results = append(results, checkResult{Name: "runtime variable", Detail: cfg.Jobs.EnvVar + " is not set", Err: err})
	} else {
		results = append(results, checkResult{Name: "runtime variable", OK: true, Detail: cfg.Jobs.EnvVar})
	}

	if p, err := submit.NewExecSubmitter(cfg.Scheduler.SubmitCommand).LookPath(); err != nil {
		results = append(results, checkResult{Name: "submit command", Detail: "not on PATH", Err: err})
	} else {
		results = append(results, checkResult{Name: "submit command", OK: true, Detail: p})
	}

	results = append(results, fileCheck("executable", cfg.Jobs.Workdir, cfg.Jobs.Exe, true))
	results = append(results, fileCheck("binning", cfg.Jobs.Workdir, cfg.Jobs.Binning, false))
	results = append(results, catalogCheck(ctx, cfg.Catalog))
	return results
}

func fileCheck(name, workdir, p string, executable bool) checkResult {
	if p == "" {
		return checkResult{Name: name, Detail: "not configured", Err: errors.New("empty path")}
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(workdir, p)
	}
	info, err := os.Stat(p)
	if err != nil {
		return checkResult{Name: name, Detail: p + " not found", Err: err}
	}
	if info.IsDir() {
		return checkResult{Name: name, Detail: p + " is a directory", Err: errors.New("not a regular file")}
	}
	if executable && info.Mode().Perm()&0o111 == 0 {
		return checkResult{Name: name, Detail: p + " is not executable", Err: errors.New("missing execute permission")}
	}
	return checkResult{Name: name, OK: true, Detail: p}
}

func catalogCheck(ctx context.Context, cc config.CatalogConfig) checkResult {
	store, err := openCatalog(ctx, cc, false)
	if err != nil {
		return checkResult{Name: "catalog", Detail: "cannot open " + cc.Driver + " catalog", Err: err}
	}
	defer func() { _ = store.Close() }()

	n, err := store.Count(ctx)
	if err != nil {
		return checkResult{Name: "catalog", Detail: "cannot read table " + store.Table(), Err: err}
	}
	return checkResult{Name: "catalog", OK: true, Detail: fmt.Sprintf("%s table %s, %d records", store.Driver(), store.Table(), n)}
}
