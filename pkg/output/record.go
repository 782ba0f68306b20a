// Package output provides JSONL output for run plans.
//
// Output is structured as typed record envelopes containing chunks,
// skipped selections, and a final summary. Each line is a self-contained
// JSON object that can be parsed independently.
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: ntbatch.<type>.v<version>
const (
	// TypeChunk identifies one generated chunk / work unit.
	TypeChunk = "ntbatch.chunk.v1"

	// TypeSkip identifies a concrete selection that produced no chunks.
	TypeSkip = "ntbatch.skip.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "ntbatch.summary.v1"
)

// Record is the envelope for all JSONL output.
type Record struct {
	// Type identifies the record type (e.g., "ntbatch.chunk.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// RunID is the correlation ID for this run.
	RunID string `json:"run_id"`

	// Tag is the sanitized run tag.
	Tag string `json:"tag"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// ChunkRecord is the data payload for a generated chunk.
type ChunkRecord struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	Seq  int    `json:"seq"`

	// Script is the wrapper file name inside the job directory.
	Script string `json:"script"`

	Files    []string `json:"files"`
	Events   int64    `json:"events"`
	Energy   float64  `json:"energy"`
	NJetsMin int      `json:"njets_min"`

	// SelectionIndex is the position of the spec in the selection file.
	SelectionIndex int            `json:"selection_index"`
	Selection      map[string]any `json:"selection"`
}

// SkipRecord is the data payload for a concrete selection without matches.
type SkipRecord struct {
	SelectionIndex int            `json:"selection_index"`
	Selection      map[string]any `json:"selection"`
	Reason         string         `json:"reason"`
}

// Skip reasons.
const (
	// SkipNoMatch indicates the catalog returned no records.
	SkipNoMatch = "no_match"

	// SkipEmptySpec indicates a spec with an empty value set.
	SkipEmptySpec = "empty_selection"
)

// SummaryRecord is the data payload for final summaries.
type SummaryRecord struct {
	// Selections is the number of specs in the selection file.
	Selections int `json:"selections"`

	// Queries is the number of concrete selections queried.
	Queries int `json:"queries"`

	Chunks int   `json:"chunks"`
	Files  int   `json:"files"`
	Events int64 `json:"events"`

	// Keys maps each chunk key to its chunk count.
	Keys map[string]int `json:"keys,omitempty"`

	JobDir string `json:"job_dir,omitempty"`
	OutDir string `json:"out_dir,omitempty"`

	DryRun    bool `json:"dry_run"`
	Submitted bool `json:"submitted"`

	// Duration is the total generation duration.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
