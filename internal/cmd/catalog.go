package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/ntbatch/internal/observability"
	"github.com/3leaps/ntbatch/pkg/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Maintain the ntuple catalog",
	Long: `Create, populate and inspect the catalog database that selections are
matched against. The database is configured under catalog.* (driver, dsn,
table).`,
}

var catalogInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the catalog table if it does not exist",
	Args:  cobra.NoArgs,
	RunE:  runCatalogInit,
}

var catalogAddCmd = &cobra.Command{
	Use:   "add FILE",
	Short: "Add or update catalog records from a JSONL or YAML file",
	Long: `Read ntuple records from FILE and upsert them on (dir, file) in a single
transaction. JSONL files hold one record per line; .yaml/.yml files hold a
list of records.

Record fields: dir, file, particle, njets, part, energy, info, nentries.

Example:
  ntbatch catalog add ntuples.jsonl
  ntbatch catalog add - < ntuples.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runCatalogAdd,
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog records as JSONL",
	Long: `List catalog records in (dir, file) order.

Example:
  ntbatch catalog list
  ntbatch catalog list --pattern '**/H1j*_13TeV*.root' --limit 10
  ntbatch catalog list --count`,
	Args: cobra.NoArgs,
	RunE: runCatalogList,
}

var (
	catalogListPattern string
	catalogListLimit   int
	catalogListCount   bool
)

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogInitCmd, catalogAddCmd, catalogListCmd)

	catalogListCmd.Flags().StringVar(&catalogListPattern, "pattern", "", "Glob over dir/file (supports **)")
	catalogListCmd.Flags().IntVar(&catalogListLimit, "limit", 0, "Maximum records to print (0 = all)")
	catalogListCmd.Flags().BoolVar(&catalogListCount, "count", false, "Print the record count only")
}

func runCatalogInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := currentConfig(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	store, err := openCatalog(ctx, cfg.Catalog, true)
	if err != nil {
		return exitError(exitCodeFor(err), "Failed to open catalog", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to create catalog table", err)
	}

	observability.CLILogger.Info("Catalog ready",
		zap.String("driver", store.Driver()),
		zap.String("table", store.Table()))
	return nil
}

func runCatalogAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := currentConfig(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	path := args[0]
	var records []catalog.Record
	if path == "-" {
		records, err = catalog.ReadRecords(cmd.InOrStdin(), "stdin.jsonl")
	} else {
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return exitError(foundry.ExitFileNotFound, "Cannot open record file", err)
		}
		records, err = catalog.ReadRecords(f, path)
		_ = f.Close()
	}
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Invalid record file", err)
	}

	store, err := openCatalog(ctx, cfg.Catalog, true)
	if err != nil {
		return exitError(exitCodeFor(err), "Failed to open catalog", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to create catalog table", err)
	}
	if err := store.Add(ctx, records); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to add records", err)
	}

	observability.CLILogger.Info("Records added",
		zap.String("source", path),
		zap.Int("records", len(records)))
	return nil
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := currentConfig(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	if catalogListPattern != "" && !doublestar.ValidatePattern(catalogListPattern) {
		return exitError(foundry.ExitInvalidArgument, "Invalid --pattern",
			fmt.Errorf("%w: %s", doublestar.ErrBadPattern, catalogListPattern))
	}

	store, err := openCatalog(ctx, cfg.Catalog, false)
	if err != nil {
		return exitError(exitCodeFor(err), "Failed to open catalog", err)
	}
	defer func() { _ = store.Close() }()

	out := cmd.OutOrStdout()
	if catalogListCount && catalogListPattern == "" {
		n, err := store.Count(ctx)
		if err != nil {
			return exitError(foundry.ExitExternalServiceUnavailable, "Failed to count records", err)
		}
		_, err = fmt.Fprintln(out, n)
		return err
	}

	records, err := store.List(ctx, catalog.ListParams{Pattern: catalogListPattern, Limit: catalogListLimit})
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to list records", err)
	}
	if catalogListCount {
		_, err = fmt.Fprintln(out, len(records))
		return err
	}

	enc := json.NewEncoder(out)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}
