package pipeline

import "errors"

var (
	// ErrNoInput rejects a capture without image data.
	ErrNoInput = errors.New("no input to transform")
	// ErrPipelineBusy rejects a capture while a run is in flight.
	ErrPipelineBusy = errors.New("a transformation is already in progress")
	// ErrResetRequired rejects a capture from Done or Failed; only Reset leaves those states.
	ErrResetRequired = errors.New("pipeline finished; reset before capturing new input")
	ErrClosed        = errors.New("pipeline controller is closed")
)

// noInputError marks an empty drawing as a missing pipeline input while
// keeping the canvas error visible to errors.Is.
type noInputError struct {
	cause error
}

func (e *noInputError) Error() string { return ErrNoInput.Error() + ": " + e.cause.Error() }

func (e *noInputError) Is(target error) bool { return target == ErrNoInput }

func (e *noInputError) Unwrap() error { return e.cause }
