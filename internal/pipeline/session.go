package pipeline

import (
	"context"
	"errors"

	"DrawingTransformer/internal/state"
)

// Session wires the two input sources to one controller.
type Session struct {
	Canvas     *state.Canvas
	Source     *state.Source
	Controller *Controller
}

// NewSession bundles the given components.
func NewSession(canvas *state.Canvas, source *state.Source, ctrl *Controller) *Session {
	return &Session{Canvas: canvas, Source: source, Controller: ctrl}
}

// TransformDrawing snapshots the canvas and starts a run. An empty canvas
// fails with an error matching both state.ErrEmptyDrawing and ErrNoInput.
func (s *Session) TransformDrawing() error {
	snap, err := s.Canvas.Snapshot()
	if errors.Is(err, state.ErrEmptyDrawing) {
		return &noInputError{cause: err}
	}
	if err != nil {
		return err
	}
	return s.Controller.CaptureInput(snap)
}

// TransformUpload decodes f and starts a run with it.
func (s *Session) TransformUpload(ctx context.Context, f state.File) error {
	snap, err := s.Source.Submit(ctx, f)
	if err != nil {
		return err
	}
	return s.Controller.CaptureInput(snap)
}

// TransformPreview starts a run with the upload currently held by Source.
func (s *Session) TransformPreview() error {
	p, ok := s.Source.Preview()
	if !ok {
		return ErrNoInput
	}
	return s.Controller.CaptureInput(p.Snapshot)
}

// Reset returns the controller to Draw and clears both input sources.
func (s *Session) Reset() {
	s.Controller.Reset()
	s.Canvas.Clear()
	s.Source.Clear()
}

// Close shuts down the controller.
func (s *Session) Close() error {
	return s.Controller.Close()
}
