package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/ntbatch/pkg/runregistry"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded runs",
	Long:  `List and show runs recorded under runs.root by submit.`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id|tag>",
	Short: "Show one run record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsListJSON bool

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd, runsShowCmd)

	runsListCmd.Flags().BoolVar(&runsListJSON, "json", false, "Print one JSON record per line")
}

func runRegistry(cmd *cobra.Command) (*runregistry.Store, error) {
	cfg, err := currentConfig(cmd.Context())
	if err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	return runregistry.NewStore(cfg.Runs.Root), nil
}

func runRunsList(cmd *cobra.Command, args []string) error {
	store, err := runRegistry(cmd)
	if err != nil {
		return err
	}

	records, err := store.List()
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to list runs", err)
	}

	out := cmd.OutOrStdout()
	if runsListJSON {
		enc := json.NewEncoder(out)
		for i := range records {
			if err := enc.Encode(&records[i]); err != nil {
				return err
			}
		}
		return nil
	}

	if len(records) == 0 {
		_, err := fmt.Fprintf(out, "No runs recorded under %s\n", store.RootDir())
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN ID\tTAG\tSTATE\tCHUNKS\tFILES\tEVENTS\tCREATED")
	for _, rec := range records {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			rec.RunID, rec.Tag, rec.State, rec.Chunks, rec.Files, rec.Events,
			rec.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	store, err := runRegistry(cmd)
	if err != nil {
		return err
	}

	rec, err := store.Find(args[0])
	if err != nil {
		return exitError(exitCodeFor(err), "Run not found", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}
