// Package catalog provides access to the ntuple catalog: the table of data
// files annotated with their physics metadata and event counts.
//
// The catalog is an external lookup engine. This package only issues
// exact-match conjunction queries against it (one per concrete selection),
// plus the small amount of maintenance needed to create and fill a local
// catalog for testing and bootstrapping.
package catalog

import (
	"context"
	"fmt"
	"regexp"
)

// DefaultTable is the catalog table queried when none is configured.
const DefaultTable = "ntuples"

// Record is one matched catalog row.
type Record struct {
	Dir      string  `json:"dir" yaml:"dir"`
	File     string  `json:"file" yaml:"file"`
	Particle string  `json:"particle" yaml:"particle"`
	NJets    int     `json:"njets" yaml:"njets"`
	Part     string  `json:"part" yaml:"part"`
	Energy   float64 `json:"energy" yaml:"energy"`
	Info     string  `json:"info" yaml:"info"`
	Events   int64   `json:"nentries" yaml:"nentries"`
}

// Path returns the file path of the record, directory included.
func (r Record) Path() string {
	return r.Dir + "/" + r.File
}

// Querier looks up catalog rows by an ordered conjunction of equality
// predicates. names[i] is bound to values[i].
//
// Rows are returned in a stable order; callers rely on it for reproducible
// chunk membership.
type Querier interface {
	Query(ctx context.Context, table string, names []string, values []any) ([]Record, error)
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether s can be used verbatim as a table or
// column name.
func ValidIdentifier(s string) bool {
	return identPattern.MatchString(s)
}

func checkIdentifier(kind, s string) error {
	if !ValidIdentifier(s) {
		return fmt.Errorf("invalid %s name: %q", kind, s)
	}
	return nil
}
