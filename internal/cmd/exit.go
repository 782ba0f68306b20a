package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/fulmenhq/gofulmen/foundry"

	"github.com/3leaps/ntbatch/pkg/chunk"
	"github.com/3leaps/ntbatch/pkg/runregistry"
	"github.com/3leaps/ntbatch/pkg/submit"
)

const exitFailure = 1

// exitCodeError carries the process exit code out of a command.
type exitCodeError struct {
	code    int
	message string
	err     error
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("%s: %v (exit code %d)", e.message, e.err, e.code)
}

func (e *exitCodeError) Unwrap() error { return e.err }

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &exitCodeError{code: code, message: message, err: err}
}

// catalogError marks failures talking to the catalog database.
type catalogError struct{ err error }

func (e *catalogError) Error() string { return e.err.Error() }
func (e *catalogError) Unwrap() error { return e.err }

// exitCodeFor maps domain errors to foundry exit codes.
func exitCodeFor(err error) int {
	var (
		keyErr   *chunk.InconsistentKeyError
		envErr   *submit.MissingEnvError
		artErr   *submit.ArtifactError
		queryErr *submit.QueryError
		schedErr *submit.SchedulerError
		catErr   *catalogError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return foundry.ExitSignalInt
	case errors.As(err, &keyErr), errors.As(err, &envErr):
		return foundry.ExitInvalidArgument
	case errors.As(err, &artErr):
		return foundry.ExitFileWriteError
	case errors.Is(err, runregistry.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return foundry.ExitFileNotFound
	case errors.As(err, &queryErr), errors.As(err, &schedErr), errors.As(err, &catErr):
		return foundry.ExitExternalServiceUnavailable
	default:
		return foundry.ExitInvalidArgument
	}
}
