package submit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/3leaps/ntbatch/pkg/catalog"
	"github.com/3leaps/ntbatch/pkg/workunit"
)

// Run layout under the working directory.
const (
	JobsDirName = "condor"
	OutDirName  = "out"
)

// Options control one run.
type Options struct {
	// SelectionPath is recorded in the run registry.
	SelectionPath string

	// Tag namespaces the job and output directories. Sanitized by the driver.
	Tag string

	// Workdir holds condor/<tag> and out/<tag>.
	Workdir string

	// Threshold is the events-per-job budget.
	Threshold int64

	JetRadius    float64
	JetAlgorithm string
	PtCut        float64
	EtaCut       float64

	// Exe and Binning are relative to Workdir unless absolute.
	Exe     string
	Binning string

	// EnvName is the variable every wrapper exports; EnvFile backs it.
	EnvName string
	EnvFile string

	// Finish are the commands the terminal node runs from Workdir.
	Finish []string

	Medium bool
	DryRun bool

	// Reweighting adds the reweighting block to every payload when set.
	Reweighting *workunit.Reweighting

	// Table is the catalog table; empty means the catalog default.
	Table string

	// QueryConcurrency bounds in-flight catalog queries. Results are still
	// consumed in selection order.
	QueryConcurrency int
}

// Validate checks options before any side effect.
func (o Options) Validate() error {
	var errs []error
	if o.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("events per job must be positive, got %d", o.Threshold))
	}
	if o.JetRadius <= 0 {
		errs = append(errs, fmt.Errorf("jet radius must be positive, got %g", o.JetRadius))
	}
	if strings.TrimSpace(o.JetAlgorithm) == "" {
		errs = append(errs, errors.New("jet algorithm is required"))
	}
	if strings.TrimSpace(o.Exe) == "" {
		errs = append(errs, errors.New("executable is required"))
	}
	if strings.TrimSpace(o.EnvName) == "" {
		errs = append(errs, errors.New("environment variable name is required"))
	}
	if o.Table != "" && !catalog.ValidIdentifier(o.Table) {
		errs = append(errs, fmt.Errorf("invalid table name: %q", o.Table))
	}
	if o.QueryConcurrency < 0 {
		errs = append(errs, fmt.Errorf("query concurrency must not be negative, got %d", o.QueryConcurrency))
	}
	if t := strings.TrimSpace(o.Tag); t == "." || t == ".." {
		errs = append(errs, fmt.Errorf("invalid tag: %q", o.Tag))
	}
	return errors.Join(errs...)
}
