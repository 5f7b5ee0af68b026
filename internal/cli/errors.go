package cli

import (
	"errors"
	"fmt"

	"expensectl/internal/bulk"
	"expensectl/internal/mutate"
)

// Process exit codes.
const (
	ExitOK       = 0
	ExitError    = 1
	ExitConflict = 3
)

// conflictError means the server rejected a precondition: the row changed
// since the caller looked at it.
type conflictError struct {
	msg string
}

func (e conflictError) Error() string { return e.msg }

type failedError struct {
	msg string
}

func (e failedError) Error() string { return e.msg }

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ce conflictError
	if errors.As(err, &ce) {
		return ExitConflict
	}
	return ExitError
}

// outcomeErr turns a non-applied outcome into the error the command returns.
func outcomeErr(o mutate.Outcome) error {
	switch o.Kind {
	case mutate.Applied:
		return nil
	case mutate.Conflict:
		return conflictError{msg: mutate.Describe(o)}
	default:
		return failedError{msg: mutate.Describe(o)}
	}
}

func summaryErr(s bulk.Summary) error {
	switch s.Level() {
	case bulk.LevelConflict:
		return conflictError{msg: s.Message()}
	case bulk.LevelFailure:
		return failedError{msg: fmt.Sprintf("%s: %v", s.Message(), s.Err())}
	}
	return nil
}
