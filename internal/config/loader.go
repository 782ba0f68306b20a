// Package config loads ntbatch settings from defaults, an optional config
// file, NTBATCH_* environment variables and runtime overrides, in increasing
// order of precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix namespaces environment overrides: jobs.events_per_job is
	// read from NTBATCH_JOBS_EVENTS_PER_JOB.
	EnvPrefix = "NTBATCH"

	// DefaultConfigName is looked up in the working directory when no
	// explicit config file is given.
	DefaultConfigName = "ntbatch"
)

var (
	configMu  sync.RWMutex
	appConfig *Config
)

// Defaults returns the built-in settings keyed by dotted path.
func Defaults() map[string]any {
	return map[string]any{
		"logging.level":  "info",
		"logging.format": "console",

		"catalog.driver":            "sqlite",
		"catalog.dsn":               "../sql/ntuples.db",
		"catalog.table":             "ntuples",
		"catalog.query_concurrency": 1,
		"catalog.query_rate":        0.0,
		"catalog.query_timeout":     "30s",

		"jobs.events_per_job": int64(25_000_000),
		"jobs.jet_radius":     0.4,
		"jobs.jet_algorithm":  "antikt",
		"jobs.jet_pt_cut":     30.0,
		"jobs.jet_eta_cut":    4.4,
		"jobs.exe":            "../bin/hist",
		"jobs.binning":        "binning.json",
		"jobs.workdir":        ".",
		"jobs.env_var":        "LD_LIBRARY_PATH",
		"jobs.env_file":       "",
		"jobs.finish":         []string{"./merge.sh", "./db.sh"},
		"jobs.medium":         false,

		"reweighting.enabled": false,
		"reweighting.pdf":     "CT14nlo",
		"reweighting.pdf_var": true,
		"reweighting.scale":   "HT1",
		"reweighting.ren_fac": [][]float64{
			{1, 1}, {0.5, 0.5}, {1, 0.5}, {0.5, 1}, {2, 1}, {1, 2}, {2, 2},
		},

		"scheduler.submit_command": "condor_submit_dag",

		"runs.root": ".ntbatch/runs",
	}
}

// Load resolves the configuration without an explicit config file.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	return LoadFile(ctx, "", overrides...)
}

// LoadFile resolves the configuration. An empty path falls back to
// ntbatch.{yaml,json,toml} in the working directory, which may be absent.
// Overrides may be nested maps or dotted keys; later maps win.
func LoadFile(ctx context.Context, path string, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	for _, o := range overrides {
		for key, value := range flatten("", o) {
			v.Set(key, value)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()

	return &cfg, nil
}

// GetConfig returns the most recently loaded configuration, or nil.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		stringToCountHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

var durationType = reflect.TypeOf(time.Duration(0))

// stringToCountHookFunc decodes strings into int64 fields with ParseCount,
// so NTBATCH_JOBS_EVENTS_PER_JOB=25e6 decodes like 25000000.
func stringToCountHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 || t == durationType {
			return data, nil
		}
		s := strings.TrimSpace(data.(string))
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			// Not numeric; leave the error to mapstructure.
			return data, nil
		}
		return ParseCount(s)
	}
}

// ParseCount parses an event count written as a plain integer or in
// exponent form ("25e6"). Fractional values are rejected.
func ParseCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	x, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a count", s)
	}
	if x != math.Trunc(x) || math.Abs(x) >= math.MaxInt64 {
		return 0, fmt.Errorf("%q is not an integral count", s)
	}
	return int64(x), nil
}

// flatten turns nested override maps into dotted viper keys.
func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = v
	}
	return out
}
