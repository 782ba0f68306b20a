package submit

import "fmt"

// MissingEnvError reports that the variable every wrapper must export is set
// neither in the process environment nor in the env file.
type MissingEnvError struct {
	Name    string
	EnvFile string
}

func (e *MissingEnvError) Error() string {
	if e.EnvFile != "" {
		return fmt.Sprintf("required environment variable %s is not set (also not found in %s)", e.Name, e.EnvFile)
	}
	return fmt.Sprintf("required environment variable %s is not set", e.Name)
}

// QueryError wraps a catalog failure for one concrete selection.
type QueryError struct {
	SelectionIndex int
	Selection      string
	Err            error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("catalog query for selection %d (%s): %v", e.SelectionIndex, e.Selection, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// ArtifactError wraps filesystem failures while laying out a run.
type ArtifactError struct {
	Op  string
	Err error
}

func (e *ArtifactError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ArtifactError) Unwrap() error {
	return e.Err
}

// SchedulerError wraps a failed hand-off to the external scheduler.
type SchedulerError struct {
	Command string
	Err     error
}

func (e *SchedulerError) Error() string {
	return fmt.Sprintf("submit with %q: %v", e.Command, e.Err)
}

func (e *SchedulerError) Unwrap() error {
	return e.Err
}
