// Package runregistry records generated runs on disk so they can be listed
// and inspected after the fact.
package runregistry

import "time"

// RunState is the lifecycle state of a generated run.
//
// NOTE: These values are persisted in run.json and are part of the stable
// on-disk contract.
type RunState string

const (
	// RunStateGenerated: artifacts written, submission pending or not requested.
	RunStateGenerated RunState = "generated"

	// RunStateDryRun: artifacts written, submission deliberately skipped.
	RunStateDryRun RunState = "dry_run"

	RunStateSubmitted RunState = "submitted"
	RunStateFailed    RunState = "failed"
)

// RunRecord is the persistent record written to run.json.
//
// The schema is designed for backward-compatible extension (additive fields).
type RunRecord struct {
	RunID         string   `json:"run_id"`
	Tag           string   `json:"tag"`
	State         RunState `json:"state"`
	SelectionPath string   `json:"selection_path,omitempty"`
	JobDir        string   `json:"job_dir"`
	OutDir        string   `json:"out_dir"`

	Chunks int   `json:"chunks"`
	Files  int   `json:"files"`
	Events int64 `json:"events"`

	// Threshold is the events-per-job budget the run was partitioned with.
	Threshold int64   `json:"threshold"`
	JetRadius float64 `json:"jet_radius"`

	CreatedAt   time.Time  `json:"created_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}
