package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the resolved ntbatch configuration.
type Config struct {
	Logging     LoggingConfig     `mapstructure:"logging"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Jobs        JobsConfig        `mapstructure:"jobs"`
	Reweighting ReweightingConfig `mapstructure:"reweighting"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Runs        RunsConfig        `mapstructure:"runs"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CatalogConfig selects the ntuple catalog database.
type CatalogConfig struct {
	Driver           string        `mapstructure:"driver"`
	DSN              string        `mapstructure:"dsn"`
	Table            string        `mapstructure:"table"`
	QueryConcurrency int           `mapstructure:"query_concurrency"`
	QueryRate        float64       `mapstructure:"query_rate"`
	QueryTimeout     time.Duration `mapstructure:"query_timeout"`
}

// JobsConfig holds the generation parameters. Exe and Binning are relative
// to Workdir unless absolute.
type JobsConfig struct {
	EventsPerJob int64    `mapstructure:"events_per_job"`
	JetRadius    float64  `mapstructure:"jet_radius"`
	JetAlgorithm string   `mapstructure:"jet_algorithm"`
	JetPtCut     float64  `mapstructure:"jet_pt_cut"`
	JetEtaCut    float64  `mapstructure:"jet_eta_cut"`
	Exe          string   `mapstructure:"exe"`
	Binning      string   `mapstructure:"binning"`
	Workdir      string   `mapstructure:"workdir"`
	EnvVar       string   `mapstructure:"env_var"`
	EnvFile      string   `mapstructure:"env_file"`
	Finish       []string `mapstructure:"finish"`
	Medium       bool     `mapstructure:"medium"`
}

type ReweightingConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	PDF     string      `mapstructure:"pdf"`
	PDFVar  bool        `mapstructure:"pdf_var"`
	Scale   string      `mapstructure:"scale"`
	RenFac  [][]float64 `mapstructure:"ren_fac"`
}

type SchedulerConfig struct {
	SubmitCommand string `mapstructure:"submit_command"`
}

type RunsConfig struct {
	Root string `mapstructure:"root"`
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format))
	}

	switch c.Catalog.Driver {
	case "sqlite", "pgx":
	default:
		errs = append(errs, fmt.Errorf("catalog.driver: unsupported value %q", c.Catalog.Driver))
	}
	if strings.TrimSpace(c.Catalog.DSN) == "" {
		errs = append(errs, errors.New("catalog.dsn is required"))
	}
	if c.Catalog.QueryConcurrency < 0 {
		errs = append(errs, fmt.Errorf("catalog.query_concurrency must not be negative, got %d", c.Catalog.QueryConcurrency))
	}
	if c.Catalog.QueryRate < 0 {
		errs = append(errs, fmt.Errorf("catalog.query_rate must not be negative, got %g", c.Catalog.QueryRate))
	}
	if c.Catalog.QueryTimeout < 0 {
		errs = append(errs, fmt.Errorf("catalog.query_timeout must not be negative, got %s", c.Catalog.QueryTimeout))
	}

	for i, pair := range c.Reweighting.RenFac {
		if len(pair) != 2 {
			errs = append(errs, fmt.Errorf("reweighting.ren_fac[%d]: want [ren, fac], got %d values", i, len(pair)))
		}
	}

	if strings.TrimSpace(c.Scheduler.SubmitCommand) == "" {
		errs = append(errs, errors.New("scheduler.submit_command is required"))
	}
	if strings.TrimSpace(c.Runs.Root) == "" {
		errs = append(errs, errors.New("runs.root is required"))
	}

	return errors.Join(errs...)
}
