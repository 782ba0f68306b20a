// Package submit drives a run end to end: expand selections, query the
// catalog, partition records into chunks, materialize one wrapper per chunk,
// emit the job graph, record the run, and hand the graph to the scheduler.
//
// Generation and submission are separate steps. Any generation error stops
// the run before the scheduler is contacted, and a half-written job
// directory is left in place for inspection.
package submit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/3leaps/ntbatch/pkg/catalog"
	"github.com/3leaps/ntbatch/pkg/chunk"
	"github.com/3leaps/ntbatch/pkg/dag"
	"github.com/3leaps/ntbatch/pkg/output"
	"github.com/3leaps/ntbatch/pkg/runregistry"
	"github.com/3leaps/ntbatch/pkg/selection"
	"github.com/3leaps/ntbatch/pkg/workunit"
)

// Config wires a Driver.
type Config struct {
	Catalog catalog.Querier
	Specs   []selection.Spec
	Options Options

	// Submitter defaults to an ExecSubmitter running DefaultSubmitCommand.
	Submitter Submitter

	// Registry is optional; runs are recorded when set.
	Registry *runregistry.Store

	// Output receives plan records; nil discards them.
	Output output.Writer

	Logger *zap.Logger

	// Now and NewRunID default to time.Now and uuid.NewString.
	Now      func() time.Time
	NewRunID func() string
}

// Driver runs one generation.
type Driver struct {
	catalog   catalog.Querier
	specs     []selection.Spec
	opts      Options
	submitter Submitter
	registry  *runregistry.Store
	out       output.Writer
	logger    *zap.Logger
	now       func() time.Time
	newRunID  func() string
}

// Result describes a finished generation.
type Result struct {
	RunID  string
	Tag    string
	JobDir string
	OutDir string

	Units []workunit.WorkUnit
	Graph *dag.Graph

	Queries int
	Files   int
	Events  int64

	// Keys maps each chunk key to its chunk count.
	Keys map[string]int

	DryRun    bool
	Submitted bool
}

func New(cfg Config) (*Driver, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}
	if err := selection.Validate(cfg.Specs); err != nil {
		return nil, err
	}

	d := &Driver{
		catalog:   cfg.Catalog,
		specs:     cfg.Specs,
		opts:      cfg.Options,
		submitter: cfg.Submitter,
		registry:  cfg.Registry,
		out:       cfg.Output,
		logger:    cfg.Logger,
		now:       cfg.Now,
		newRunID:  cfg.NewRunID,
	}
	if d.submitter == nil {
		d.submitter = NewExecSubmitter(DefaultSubmitCommand)
	}
	if d.out == nil {
		d.out = output.Discard{}
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.newRunID == nil {
		d.newRunID = uuid.NewString
	}
	return d, nil
}

// layout holds the resolved paths of a run.
type layout struct {
	workdir string
	jobDir  string
	outDir  string
}

func (d *Driver) layout(tag string) (layout, error) {
	workdir := d.opts.Workdir
	if workdir == "" {
		workdir = "."
	}
	abs, err := filepath.Abs(workdir)
	if err != nil {
		return layout{}, &ArtifactError{Op: "resolve workdir", Err: err}
	}
	return layout{
		workdir: abs,
		jobDir:  filepath.Join(abs, JobsDirName, tag),
		outDir:  filepath.Join(abs, OutDirName, tag),
	}, nil
}

// fromJobDir expresses p (relative to the workdir unless absolute) as seen
// from the job directory, where the wrappers run.
func (l layout) fromJobDir(p string) (string, error) {
	if p == "" || filepath.IsAbs(p) {
		return p, nil
	}
	return filepath.Rel(l.jobDir, filepath.Join(l.workdir, p))
}

func (d *Driver) settings(l layout, envValue string) (workunit.Settings, error) {
	exe, err := l.fromJobDir(d.opts.Exe)
	if err != nil {
		return workunit.Settings{}, fmt.Errorf("resolve executable: %w", err)
	}
	binning, err := l.fromJobDir(d.opts.Binning)
	if err != nil {
		return workunit.Settings{}, fmt.Errorf("resolve binning: %w", err)
	}
	outDir, err := filepath.Rel(l.jobDir, l.outDir)
	if err != nil {
		return workunit.Settings{}, fmt.Errorf("resolve output dir: %w", err)
	}
	return workunit.Settings{
		Exe:          exe,
		Binning:      binning,
		OutDir:       outDir,
		JetAlgorithm: d.opts.JetAlgorithm,
		JetRadius:    d.opts.JetRadius,
		PtCut:        d.opts.PtCut,
		EtaCut:       d.opts.EtaCut,
		Reweighting:  d.opts.Reweighting,
		EnvName:      d.opts.EnvName,
		EnvValue:     envValue,
	}, nil
}

// Run generates the run on disk, records it, and submits it unless DryRun.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	start := d.now()

	// Fail before touching the filesystem.
	envValue, err := ResolveEnv(d.opts.EnvName, d.opts.EnvFile)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:  d.newRunID(),
		Tag:    SanitizeTag(d.opts.Tag, start),
		DryRun: d.opts.DryRun,
	}
	l, err := d.layout(res.Tag)
	if err != nil {
		return nil, err
	}
	res.JobDir, res.OutDir = l.jobDir, l.outDir

	if err := os.MkdirAll(filepath.Dir(l.jobDir), 0o755); err != nil {
		return nil, &ArtifactError{Op: "create jobs dir", Err: err}
	}
	if err := os.Mkdir(l.jobDir, 0o755); err != nil {
		return nil, &ArtifactError{Op: "create job dir", Err: err}
	}
	if err := os.MkdirAll(l.outDir, 0o755); err != nil {
		return nil, &ArtifactError{Op: "create output dir", Err: err}
	}

	logger := d.logger.With(zap.String("run_id", res.RunID), zap.String("tag", res.Tag))
	logger.Info("generating run", zap.String("job_dir", l.jobDir), zap.String("out_dir", l.outDir))

	record := &runregistry.RunRecord{
		RunID:         res.RunID,
		Tag:           res.Tag,
		SelectionPath: d.opts.SelectionPath,
		JobDir:        l.jobDir,
		OutDir:        l.outDir,
		Threshold:     d.opts.Threshold,
		JetRadius:     d.opts.JetRadius,
		CreatedAt:     start.UTC(),
	}

	genErr := d.generate(ctx, logger, workunit.NewDirWriter(l.jobDir), l, envValue, res)
	record.Chunks, record.Files, record.Events = len(res.Units), res.Files, res.Events
	if genErr != nil {
		record.State = runregistry.RunStateFailed
		record.Error = genErr.Error()
		d.recordRun(logger, record)
		return res, genErr
	}

	record.State = runregistry.RunStateGenerated
	if d.opts.DryRun {
		record.State = runregistry.RunStateDryRun
	}
	if d.registry != nil {
		if err := d.registry.Write(record); err != nil {
			return res, &ArtifactError{Op: "record run", Err: err}
		}
	}

	if !d.opts.DryRun {
		logger.Info("submitting job graph", zap.Int("units", len(res.Units)))
		if err := d.submitter.Submit(ctx, l.jobDir, dag.DAGFile); err != nil {
			record.State = runregistry.RunStateFailed
			record.Error = err.Error()
			d.recordRun(logger, record)
			return res, err
		}
		res.Submitted = true
		submitted := d.now().UTC()
		record.State = runregistry.RunStateSubmitted
		record.SubmittedAt = &submitted
		d.recordRun(logger, record)
	}

	if err := d.writeSummary(ctx, res, start); err != nil {
		return res, err
	}
	logger.Info("run complete",
		zap.Int("chunks", len(res.Units)),
		zap.Int("files", res.Files),
		zap.Int64("events", res.Events),
		zap.Bool("submitted", res.Submitted),
	)
	return res, nil
}

// Plan performs the generation in memory: no directories, no registry, no
// submission. The returned writer holds every artifact the run would write.
func (d *Driver) Plan(ctx context.Context) (*Result, *workunit.MemWriter, error) {
	start := d.now()

	envValue, err := ResolveEnv(d.opts.EnvName, d.opts.EnvFile)
	if err != nil {
		return nil, nil, err
	}

	res := &Result{
		RunID:  d.newRunID(),
		Tag:    SanitizeTag(d.opts.Tag, start),
		DryRun: true,
	}
	l, err := d.layout(res.Tag)
	if err != nil {
		return nil, nil, err
	}
	res.JobDir, res.OutDir = l.jobDir, l.outDir

	mem := workunit.NewMemWriter()
	logger := d.logger.With(zap.String("run_id", res.RunID), zap.String("tag", res.Tag))
	if err := d.generate(ctx, logger, mem, l, envValue, res); err != nil {
		return res, mem, err
	}
	if err := d.writeSummary(ctx, res, start); err != nil {
		return res, mem, err
	}
	return res, mem, nil
}

func (d *Driver) recordRun(logger *zap.Logger, record *runregistry.RunRecord) {
	if d.registry == nil {
		return
	}
	if err := d.registry.Write(record); err != nil {
		logger.Warn("failed to record run", zap.Error(err))
	}
}

func (d *Driver) writeSummary(ctx context.Context, res *Result, start time.Time) error {
	elapsed := d.now().Sub(start)
	return d.out.WriteSummary(ctx, &output.SummaryRecord{
		Selections:    len(d.specs),
		Queries:       res.Queries,
		Chunks:        len(res.Units),
		Files:         res.Files,
		Events:        res.Events,
		Keys:          res.Keys,
		JobDir:        res.JobDir,
		OutDir:        res.OutDir,
		DryRun:        res.DryRun,
		Submitted:     res.Submitted,
		Duration:      elapsed,
		DurationHuman: elapsed.Round(time.Millisecond).String(),
	})
}

// generate writes every wrapper and the graph artifacts into w.
func (d *Driver) generate(ctx context.Context, logger *zap.Logger, w workunit.ArtifactWriter, l layout, envValue string, res *Result) error {
	settings, err := d.settings(l, envValue)
	if err != nil {
		return &ArtifactError{Op: "resolve paths", Err: err}
	}

	keys := chunk.KeyBuilder{
		Classifier: chunk.NewClassifier(selection.Infos(d.specs)),
		JetRadius:  d.opts.JetRadius,
	}
	partitioner := chunk.NewPartitioner(d.opts.Threshold)
	materializer := workunit.NewMaterializer(w, settings)
	graph := dag.NewGraph(dag.DefaultTerminal)
	res.Graph = graph

	logger.Debug("key classification",
		zap.Bool("diagram", keys.Classifier.Diagram),
		zap.Bool("process", keys.Classifier.Process),
	)

	expander := selection.Expander{Logger: logger}
	for i, spec := range d.specs {
		if spec.Combinations() == 0 {
			if err := d.out.WriteSkip(ctx, &output.SkipRecord{SelectionIndex: i, Reason: output.SkipEmptySpec}); err != nil {
				return err
			}
		}

		for q := range d.queries(ctx, expander.Expand(i, spec)) {
			if q.err != nil {
				return &QueryError{SelectionIndex: i, Selection: q.sel.String(), Err: q.err}
			}
			res.Queries++

			if len(q.records) == 0 {
				logger.Debug("no catalog match", zap.Int("selection", i), zap.String("query", q.sel.String()))
				if err := d.out.WriteSkip(ctx, &output.SkipRecord{SelectionIndex: i, Selection: q.sel.Map(), Reason: output.SkipNoMatch}); err != nil {
					return err
				}
				continue
			}

			key, err := keys.CommonKey(q.records)
			if err != nil {
				return fmt.Errorf("selection %d (%s): %w", i, q.sel.String(), err)
			}

			for _, c := range partitioner.Partition(key, q.records) {
				unit, err := materializer.Materialize(c)
				if err != nil {
					return &ArtifactError{Op: "write work unit", Err: err}
				}
				if err := graph.Add(unit.Name); err != nil {
					return err
				}
				res.Units = append(res.Units, unit)
				res.Files += len(c.Files)
				res.Events += c.Events

				logger.Info("chunk",
					zap.String("chunk", c.Name),
					zap.Int("files", len(c.Files)),
					zap.Int64("events", c.Events),
				)
				if err := d.out.WriteChunk(ctx, &output.ChunkRecord{
					Name:           c.Name,
					Key:            c.Key,
					Seq:            c.Seq,
					Script:         unit.Script,
					Files:          c.Files,
					Events:         c.Events,
					Energy:         c.Energy,
					NJetsMin:       c.NJetsMin,
					SelectionIndex: i,
					Selection:      q.sel.Map(),
				}); err != nil {
					return err
				}
			}
		}
	}
	res.Keys = partitioner.Counts()

	workdirRel, err := filepath.Rel(l.jobDir, l.workdir)
	if err != nil {
		return &ArtifactError{Op: "resolve workdir", Err: err}
	}
	finish := dag.FinishScript{
		EnvName:  d.opts.EnvName,
		EnvValue: envValue,
		Workdir:  workdirRel,
		Commands: d.opts.Finish,
	}
	if err := dag.Emit(w, graph, dag.Template{Medium: d.opts.Medium}, finish); err != nil {
		return &ArtifactError{Op: "write job graph", Err: err}
	}
	return nil
}
