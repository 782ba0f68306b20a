package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/ntbatch/internal/config"
	"github.com/3leaps/ntbatch/internal/observability"
	"github.com/3leaps/ntbatch/pkg/catalog"
	"github.com/3leaps/ntbatch/pkg/runregistry"
	"github.com/3leaps/ntbatch/pkg/selection"
	"github.com/3leaps/ntbatch/pkg/submit"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Generate batch jobs for a selection file and submit the DAG",
	Long: `Expand every selection against the catalog, partition the matching files
into chunks of at most --events-per-job events, write one wrapper script per
chunk into condor/<tag>, write the finish script and jobs.dag, record the run,
and submit the graph with the configured scheduler command.

The required runtime variable (jobs.env_var) is checked before anything is
written. An existing condor/<tag> directory is an error.

Example:
  ntbatch submit --selection higgs.yaml
  ntbatch submit -s higgs.yaml --events-per-job 10e6 --tag nightly
  ntbatch submit -s higgs.hcl --jet-radius 0.6 --reweight --dry-run
  ntbatch submit -s higgs.yaml --dry-run --plan-out -`,
	RunE: runSubmit,
}

var (
	submitFlags   generationFlags
	submitDryRun  bool
	submitPlanOut string
)

func init() {
	rootCmd.AddCommand(submitCmd)

	submitFlags.register(submitCmd)
	submitCmd.Flags().BoolVar(&submitDryRun, "dry-run", false, "Write all artifacts but do not submit")
	submitCmd.Flags().StringVar(&submitPlanOut, "plan-out", "", "Write JSONL chunk records to FILE, or - for stdout")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := currentConfig(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	specs, err := loadSelections(submitFlags.selection)
	if err != nil {
		return err
	}

	opts := submitFlags.options(cmd, cfg)
	opts.DryRun = submitDryRun
	if err := opts.Validate(); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid options", err)
	}

	store, err := openCatalog(ctx, cfg.Catalog, false)
	if err != nil {
		observability.CLILogger.Error("Failed to open catalog",
			zap.String("driver", cfg.Catalog.Driver),
			zap.Error(err))
		return exitError(exitCodeFor(err), "Failed to open catalog", err)
	}
	defer func() { _ = store.Close() }()

	runID := uuid.NewString()
	opts.Tag = submit.SanitizeTag(opts.Tag, time.Now())

	writer, cleanup, err := createRecordWriter(submitPlanOut, runID, opts.Tag)
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to create plan output", err)
	}
	defer cleanup()

	submitter := submit.NewExecSubmitter(cfg.Scheduler.SubmitCommand)
	submitter.Stdout = submitterOutput(submitPlanOut)

	driver, err := submit.New(submit.Config{
		Catalog:   limitedCatalog(store, cfg.Catalog),
		Specs:     specs,
		Options:   opts,
		Submitter: submitter,
		Registry:  runregistry.NewStore(cfg.Runs.Root),
		Output:    writer,
		Logger:    observability.CLILogger,
		NewRunID:  func() string { return runID },
	})
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid run", err)
	}

	res, err := driver.Run(ctx)
	if err != nil {
		return runFailure(ctx, "Run failed", runID, err)
	}

	observability.CLILogger.Info("Run finished",
		zap.String("run_id", res.RunID),
		zap.String("tag", res.Tag),
		zap.String("job_dir", res.JobDir),
		zap.Int("chunks", len(res.Units)),
		zap.Int("files", res.Files),
		zap.Int64("events", res.Events),
		zap.Bool("submitted", res.Submitted))
	return nil
}

func loadSelections(path string) ([]selection.Spec, error) {
	specs, err := selection.Load(path)
	if err != nil {
		observability.CLILogger.Error("Failed to load selection file",
			zap.String("path", path),
			zap.Error(err))
		return nil, exitError(exitCodeFor(err), "Invalid selection file", err)
	}
	observability.CLILogger.Debug("Loaded selections",
		zap.String("path", path),
		zap.Int("selections", len(specs)))
	return specs, nil
}

func limitedCatalog(store *catalog.Store, cc config.CatalogConfig) catalog.Querier {
	return catalog.NewLimited(store, cc.QueryRate, cc.QueryTimeout)
}

func runFailure(ctx context.Context, message, runID string, err error) error {
	code := exitCodeFor(err)
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		code = foundry.ExitSignalInt
		message = "Run cancelled"
	}
	observability.CLILogger.Error(message,
		zap.String("run_id", runID),
		zap.Error(err))
	return exitError(code, message, err)
}
