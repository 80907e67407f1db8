package state

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"DrawingTransformer/internal/logging"
)

// DefaultMaxUpload bounds uploaded files.
const DefaultMaxUpload = 20 << 20

// File is an upload handed over by the presentation layer.
type File struct {
	Name      string
	MediaType string
	Body      io.Reader
}

// Preview is the image currently held by a Source.
type Preview struct {
	Name     string   `json:"name"`
	Format   string   `json:"format,omitempty"`
	Width    int      `json:"width,omitempty"`
	Height   int      `json:"height,omitempty"`
	Snapshot Snapshot `json:"snapshot"`
}

// Source accepts uploaded images as an alternative to drawing.
type Source struct {
	mu       sync.RWMutex
	notifyMu sync.Mutex
	preview  *Preview
	maxBytes int64

	observers Observers[*Preview]
}

// NewSource creates a Source. maxBytes <= 0 uses DefaultMaxUpload.
func NewSource(maxBytes int64) *Source {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUpload
	}
	return &Source{maxBytes: maxBytes}
}

// Submit validates the declared media type and decodes f into a Snapshot,
// replacing the held preview. A rejected upload leaves the Source unchanged.
func (s *Source) Submit(ctx context.Context, f File) (Snapshot, error) {
	mt, err := imageMediaType(f.MediaType)
	if err != nil {
		return Snapshot{}, err
	}
	if f.Body == nil {
		return Snapshot{}, ErrEmptyFile
	}

	type result struct {
		p   Preview
		err error
	}
	done := make(chan result, 1)
	go func() {
		p, err := s.decode(f, mt)
		done <- result{p, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return Snapshot{}, fmt.Errorf("decode %s: %w", f.Name, ctx.Err())
	case res = <-done:
	}
	if res.err != nil {
		return Snapshot{}, res.err
	}

	p := res.p
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Lock()
	s.preview = &p
	s.mu.Unlock()
	logging.Logger().Info("[source] upload accepted", "name", p.Name, "type", mt, "format", p.Format, "bytes", p.Snapshot.Len())
	s.observers.Notify(&p)
	return p.Snapshot, nil
}

func (s *Source) decode(f File, mt string) (Preview, error) {
	data, err := io.ReadAll(io.LimitReader(f.Body, s.maxBytes+1))
	if err != nil {
		return Preview{}, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if len(data) == 0 {
		return Preview{}, ErrEmptyFile
	}
	if int64(len(data)) > s.maxBytes {
		return Preview{}, fmt.Errorf("%w: %s is larger than %d bytes", ErrFileTooLarge, f.Name, s.maxBytes)
	}

	p := Preview{Name: f.Name, Snapshot: Snapshot{mediaType: mt, data: data}}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	switch {
	case err == nil:
		p.Format, p.Width, p.Height = format, cfg.Width, cfg.Height
	case errors.Is(err, image.ErrFormat):
		// Declared as an image but not a format we can probe (svg, heic...).
		// It is still handed on as opaque bytes.
		logging.Logger().Debug("[source] unprobed image format", "name", f.Name, "type", mt)
	default:
		return Preview{}, fmt.Errorf("decode %s: %w", f.Name, err)
	}
	return p, nil
}

func imageMediaType(declared string) (string, error) {
	if strings.TrimSpace(declared) == "" {
		return "", &UnsupportedTypeError{}
	}
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil || !strings.HasPrefix(mt, "image/") {
		return "", &UnsupportedTypeError{MediaType: declared}
	}
	return mt, nil
}

// Clear drops the held preview.
func (s *Source) Clear() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Lock()
	had := s.preview != nil
	s.preview = nil
	s.mu.Unlock()
	if had {
		s.observers.Notify(nil)
	}
}

// Preview returns the held upload, if any.
func (s *Source) Preview() (Preview, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.preview == nil {
		return Preview{}, false
	}
	return *s.preview, true
}

// Subscribe registers fn; it receives nil when the preview is cleared.
func (s *Source) Subscribe(fn func(*Preview)) (cancel func()) {
	return s.observers.Subscribe(fn)
}
