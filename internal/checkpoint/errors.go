package checkpoint

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCheckpointRoot means the checkpoint root is missing, not a
	// directory, or not writable. It is fatal at construction.
	ErrInvalidCheckpointRoot = errors.New("checkpoint: invalid checkpoint root")

	// ErrNoCheckpoint matches MissingCheckpointError via errors.Is.
	ErrNoCheckpoint = errors.New("checkpoint: no checkpoint")

	ErrInvalidComponent = errors.New("checkpoint: invalid component name")
	ErrUnknownComponent = errors.New("checkpoint: unknown component")
	ErrInvalidPeriod    = errors.New("checkpoint: period must be positive")
	ErrSchedulerState   = errors.New("checkpoint: invalid scheduler state")
)

// WriteFailedError reports that one component could not be saved.
type WriteFailedError struct {
	Component string
	Err       error
}

func (e *WriteFailedError) Error() string {
	return fmt.Sprintf("checkpoint: save %s: %v", e.Component, e.Err)
}

func (e *WriteFailedError) Unwrap() error {
	return e.Err
}

// MissingCheckpointError reports that a component has never been
// checkpointed. It is a normal condition on first start.
type MissingCheckpointError struct {
	Component string
}

func (e *MissingCheckpointError) Error() string {
	return fmt.Sprintf("checkpoint: no checkpoint for %s", e.Component)
}

func (e *MissingCheckpointError) Is(target error) bool {
	return target == ErrNoCheckpoint
}

// ReadFailedError reports that a checkpoint exists but could not be read,
// verified or restored.
type ReadFailedError struct {
	Component string
	Err       error
}

func (e *ReadFailedError) Error() string {
	return fmt.Sprintf("checkpoint: restore %s: %v", e.Component, e.Err)
}

func (e *ReadFailedError) Unwrap() error {
	return e.Err
}
