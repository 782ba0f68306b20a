package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/ntbatch/internal/observability"
	"github.com/3leaps/ntbatch/pkg/output"
	"github.com/3leaps/ntbatch/pkg/submit"
	"github.com/3leaps/ntbatch/pkg/workunit"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the chunks a submit would generate without touching disk",
	Long: `Run the full generation in memory and print one JSONL record per chunk,
one per selection without catalog matches, and a final summary. No directory
is created, no run is recorded and nothing is submitted.

Use --list to print the artifact names instead, or --show NAME to print a
single artifact (a wrapper script, job.sub, finish.sh or jobs.dag).

Example:
  ntbatch plan --selection higgs.yaml
  ntbatch plan -s higgs.yaml --events-per-job 5e6 --list
  ntbatch plan -s higgs.yaml --show jobs.dag`,
	RunE: runPlan,
}

var (
	planFlags generationFlags
	planList  bool
	planShow  string
)

func init() {
	rootCmd.AddCommand(planCmd)

	planFlags.register(planCmd)
	planCmd.Flags().BoolVar(&planList, "list", false, "Print artifact names instead of records")
	planCmd.Flags().StringVar(&planShow, "show", "", "Print the named artifact instead of records")
	planCmd.MarkFlagsMutuallyExclusive("list", "show")
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := currentConfig(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	specs, err := loadSelections(planFlags.selection)
	if err != nil {
		return err
	}

	opts := planFlags.options(cmd, cfg)
	opts.DryRun = true
	if err := opts.Validate(); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid options", err)
	}

	store, err := openCatalog(ctx, cfg.Catalog, false)
	if err != nil {
		return exitError(exitCodeFor(err), "Failed to open catalog", err)
	}
	defer func() { _ = store.Close() }()

	runID := uuid.NewString()
	opts.Tag = submit.SanitizeTag(opts.Tag, time.Now())

	var writer output.Writer = output.Discard{}
	if !planList && planShow == "" {
		jw := output.NewJSONLWriter(cmd.OutOrStdout(), runID, opts.Tag)
		defer func() { _ = jw.Close() }()
		writer = jw
	}

	driver, err := submit.New(submit.Config{
		Catalog:  limitedCatalog(store, cfg.Catalog),
		Specs:    specs,
		Options:  opts,
		Output:   writer,
		Logger:   observability.CLILogger,
		NewRunID: func() string { return runID },
	})
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid run", err)
	}

	res, mem, err := driver.Plan(ctx)
	if err != nil {
		return runFailure(ctx, "Plan failed", runID, err)
	}

	observability.CLILogger.Debug("Plan generated",
		zap.String("run_id", res.RunID),
		zap.Int("chunks", len(res.Units)),
		zap.Int("artifacts", len(mem.Files())))

	switch {
	case planList:
		return printArtifactList(cmd.OutOrStdout(), mem)
	case planShow != "":
		data := mem.Bytes(planShow)
		if data == nil {
			return exitError(foundry.ExitFileNotFound, "Unknown artifact",
				fmt.Errorf("%s is not part of this plan (try --list)", planShow))
		}
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	return nil
}

func printArtifactList(w io.Writer, mem *workunit.MemWriter) error {
	for _, name := range mem.Created() {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%d\n", mem.Mode(name), name, len(mem.Bytes(name))); err != nil {
			return err
		}
	}
	return nil
}
