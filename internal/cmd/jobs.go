package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/3leaps/ntbatch/internal/config"
	"github.com/3leaps/ntbatch/pkg/catalog"
	"github.com/3leaps/ntbatch/pkg/output"
	"github.com/3leaps/ntbatch/pkg/submit"
	"github.com/3leaps/ntbatch/pkg/workunit"
)

// generationFlags are shared by submit and plan. Zero values defer to config.
type generationFlags struct {
	selection    string
	eventsPerJob countFlag
	jetRadius    float64
	tag          string
	workdir      string
	medium       bool
	reweight     bool
}

func (f *generationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.selection, "selection", "s", "", "Selection file (.yaml, .json or .hcl) (required)")
	cmd.Flags().VarP(&f.eventsPerJob, "events-per-job", "n", "Events per job, e.g. 25000000 or 25e6 (default from jobs.events_per_job)")
	cmd.Flags().Float64VarP(&f.jetRadius, "jet-radius", "R", 0, "Jet radius (default from jobs.jet_radius)")
	cmd.Flags().StringVarP(&f.tag, "tag", "t", "", "Run tag naming condor/<tag> and out/<tag> (default: start timestamp)")
	cmd.Flags().StringVarP(&f.workdir, "workdir", "w", "", "Working directory holding condor/ and out/ (default from jobs.workdir)")
	cmd.Flags().BoolVar(&f.medium, "medium", false, "Mark jobs as medium priority")
	cmd.Flags().BoolVar(&f.reweight, "reweight", false, "Add the scale and PDF reweighting block to every payload")

	_ = cmd.MarkFlagRequired("selection")
}

// options merges flags over the loaded configuration.
func (f *generationFlags) options(cmd *cobra.Command, cfg *config.Config) submit.Options {
	opts := submit.Options{
		SelectionPath:    f.selection,
		Tag:              f.tag,
		Workdir:          cfg.Jobs.Workdir,
		Threshold:        cfg.Jobs.EventsPerJob,
		JetRadius:        cfg.Jobs.JetRadius,
		JetAlgorithm:     cfg.Jobs.JetAlgorithm,
		PtCut:            cfg.Jobs.JetPtCut,
		EtaCut:           cfg.Jobs.JetEtaCut,
		Exe:              cfg.Jobs.Exe,
		Binning:          cfg.Jobs.Binning,
		EnvName:          cfg.Jobs.EnvVar,
		EnvFile:          cfg.Jobs.EnvFile,
		Finish:           cfg.Jobs.Finish,
		Medium:           cfg.Jobs.Medium,
		Table:            cfg.Catalog.Table,
		QueryConcurrency: cfg.Catalog.QueryConcurrency,
	}

	flags := cmd.Flags()
	if flags.Changed("events-per-job") {
		opts.Threshold = int64(f.eventsPerJob)
	}
	if flags.Changed("jet-radius") {
		opts.JetRadius = f.jetRadius
	}
	if flags.Changed("workdir") {
		opts.Workdir = f.workdir
	}
	if flags.Changed("medium") {
		opts.Medium = f.medium
	}

	reweight := cfg.Reweighting.Enabled
	if flags.Changed("reweight") {
		reweight = f.reweight
	}
	if reweight {
		opts.Reweighting = reweighting(cfg.Reweighting)
	}
	return opts
}

// countFlag is an int64 flag that also accepts exponent form ("10e6").
type countFlag int64

func (c *countFlag) String() string { return strconv.FormatInt(int64(*c), 10) }

func (c *countFlag) Set(s string) error {
	n, err := config.ParseCount(s)
	if err != nil {
		return err
	}
	*c = countFlag(n)
	return nil
}

func (c *countFlag) Type() string { return "count" }

func reweighting(rc config.ReweightingConfig) *workunit.Reweighting {
	rw := &workunit.Reweighting{
		PDF:    rc.PDF,
		PDFVar: rc.PDFVar,
		Scale:  rc.Scale,
	}
	for _, pair := range rc.RenFac {
		if len(pair) == 2 {
			rw.RenFac = append(rw.RenFac, [2]float64{pair[0], pair[1]})
		}
	}
	if len(rw.RenFac) == 0 {
		rw.RenFac = append([][2]float64(nil), workunit.DefaultRenFac...)
	}
	return rw
}

// openCatalog opens the configured catalog. create is set only by the
// catalog maintenance commands.
func openCatalog(ctx context.Context, cc config.CatalogConfig, create bool) (*catalog.Store, error) {
	store, err := catalog.Open(ctx, catalog.Config{
		Driver: cc.Driver,
		DSN:    cc.DSN,
		Table:  cc.Table,
		Create: create,
	})
	if err != nil {
		return nil, &catalogError{err: err}
	}
	return store, nil
}

// createRecordWriter opens the JSONL destination for plan records.
// "" discards records, "-" or "stdout" writes to stdout.
func createRecordWriter(dest, runID, tag string) (output.Writer, func(), error) {
	switch dest {
	case "":
		return output.Discard{}, func() {}, nil
	case "-", "stdout":
		w := output.NewJSONLWriter(os.Stdout, runID, tag)
		return w, func() { _ = w.Close() }, nil
	}

	path := strings.TrimPrefix(dest, "file:")
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, &submit.ArtifactError{Op: "create plan output", Err: fmt.Errorf("%s: %w", path, err)}
	}
	w := output.NewJSONLWriter(f, runID, tag)
	cleanup := func() {
		_ = w.Close()
		_ = f.Close()
	}
	return w, cleanup, nil
}

// submitterOutput keeps scheduler chatter off stdout when stdout carries records.
func submitterOutput(dest string) io.Writer {
	if dest == "-" || dest == "stdout" {
		return os.Stderr
	}
	return os.Stdout
}
