package submit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// DefaultSubmitCommand is the DAGMan submission tool.
const DefaultSubmitCommand = "condor_submit_dag"

// Submitter hands a finished job directory to the scheduler.
type Submitter interface {
	Submit(ctx context.Context, jobDir, dagFile string) error
}

// ExecSubmitter runs Command with the DAG file as its last argument, from
// inside the job directory.
type ExecSubmitter struct {
	// Command may carry extra arguments, e.g. "condor_submit_dag -force".
	Command string

	Stdout io.Writer
	Stderr io.Writer
}

func NewExecSubmitter(command string) *ExecSubmitter {
	return &ExecSubmitter{Command: command, Stdout: os.Stdout, Stderr: os.Stderr}
}

func (s *ExecSubmitter) Submit(ctx context.Context, jobDir, dagFile string) error {
	fields := strings.Fields(s.Command)
	if len(fields) == 0 {
		return &SchedulerError{Command: s.Command, Err: errors.New("submit command is empty")}
	}

	args := append(fields[1:len(fields):len(fields)], dagFile)
	cmd := exec.CommandContext(ctx, fields[0], args...)
	cmd.Dir = jobDir
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr

	if err := cmd.Run(); err != nil {
		return &SchedulerError{Command: s.Command, Err: err}
	}
	return nil
}

// LookPath reports whether the submit command's executable is on PATH.
func (s *ExecSubmitter) LookPath() (string, error) {
	fields := strings.Fields(s.Command)
	if len(fields) == 0 {
		return "", errors.New("submit command is empty")
	}
	p, err := exec.LookPath(fields[0])
	if err != nil {
		return "", fmt.Errorf("submit command %q: %w", fields[0], err)
	}
	return p, nil
}

var _ Submitter = (*ExecSubmitter)(nil)
