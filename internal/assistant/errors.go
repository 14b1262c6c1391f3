package assistant

import (
	"errors"
	"fmt"
)

var (
	// ErrOperationFailed is returned when a run ends failed or incomplete.
	ErrOperationFailed = errors.New("assistant run failed")

	// ErrOperationCancelled is returned for cancelled runs under CancelledAsConflict.
	ErrOperationCancelled = errors.New("assistant run cancelled")

	// ErrOperationExpired is returned when the assistant service expired the run.
	ErrOperationExpired = errors.New("assistant run expired")

	// ErrNoContent is returned when a completed run left no messages.
	ErrNoContent = errors.New("assistant produced no content")

	// ErrUnprocessableResponse is returned when the newest message after a
	// completed run was not written by the assistant.
	ErrUnprocessableResponse = errors.New("latest message is not an assistant reply")

	// ErrPollingTimedOut is returned when the run is still active after the
	// configured number of status queries.
	ErrPollingTimedOut = errors.New("timed out waiting for assistant run")

	// ErrThreadNotFound is returned for unknown thread ids.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrNoAddress is returned when no address can be read from a thread's notes.
	ErrNoAddress = errors.New("no address recorded for thread")
)

// RunError carries the terminal state and diagnostic of a run.
type RunError struct {
	RunID  string
	Status RunStatus
	Detail string

	err error
}

func (e *RunError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v: run %s %s", e.err, e.RunID, e.Status)
	}
	return fmt.Sprintf("%v: run %s %s: %s", e.err, e.RunID, e.Status, e.Detail)
}

func (e *RunError) Unwrap() error {
	return e.err
}

func newRunError(sentinel error, run Run) *RunError {
	return &RunError{
		RunID:  run.ID,
		Status: run.Status,
		Detail: run.LastError.String(),
		err:    sentinel,
	}
}
