package state

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDrawing is returned by Canvas.Snapshot when no stroke exists.
	ErrEmptyDrawing = errors.New("drawing is empty")
	// ErrInvalidWidth rejects non-positive or non-finite stroke widths.
	ErrInvalidWidth = errors.New("stroke width must be a positive number")
	ErrEmptyFile    = errors.New("uploaded file is empty")
	ErrFileTooLarge = errors.New("uploaded file exceeds size limit")
)

// UnsupportedTypeError reports an upload whose declared media type is not an image.
type UnsupportedTypeError struct {
	MediaType string
}

func (e *UnsupportedTypeError) Error() string {
	if e.MediaType == "" {
		return "unsupported upload: missing media type"
	}
	return fmt.Sprintf("unsupported upload type %q: not an image", e.MediaType)
}
