package state

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestSource_SubmitRejectsNonImage(t *testing.T) {
	src := NewSource(0)
	_, err := src.Submit(context.Background(), File{
		Name:      "notes.txt",
		MediaType: "text/plain",
		Body:      strings.NewReader("hello"),
	})
	var ute *UnsupportedTypeError
	if !errors.As(err, &ute) {
		t.Fatalf("Submit = %v, want UnsupportedTypeError", err)
	}
	if ute.MediaType != "text/plain" {
		t.Errorf("MediaType = %q", ute.MediaType)
	}
	if _, ok := src.Preview(); ok {
		t.Error("rejected upload changed preview")
	}
}

func TestSource_SubmitMissingType(t *testing.T) {
	_, err := NewSource(0).Submit(context.Background(), File{Name: "x", Body: strings.NewReader("x")})
	var ute *UnsupportedTypeError
	if !errors.As(err, &ute) {
		t.Fatalf("Submit = %v, want UnsupportedTypeError", err)
	}
}

func TestSource_SubmitPNG(t *testing.T) {
	src := NewSource(0)
	data := pngBytes(t, 4, 3)

	var seen []*Preview
	src.Subscribe(func(p *Preview) { seen = append(seen, p) })

	snap, err := src.Submit(context.Background(), File{
		Name:      "drawing.png",
		MediaType: "image/png",
		Body:      bytes.NewReader(data),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !bytes.Equal(snap.Bytes(), data) {
		t.Error("snapshot bytes differ from upload")
	}
	if !strings.HasPrefix(snap.DataURI(), "data:image/png;base64,") {
		t.Errorf("DataURI prefix = %q", snap.DataURI()[:24])
	}

	p, ok := src.Preview()
	if !ok {
		t.Fatal("no preview after Submit")
	}
	if p.Format != "png" || p.Width != 4 || p.Height != 3 {
		t.Errorf("preview = %s %dx%d, want png 4x3", p.Format, p.Width, p.Height)
	}
	if len(seen) != 1 || seen[0] == nil {
		t.Fatalf("observer calls = %v", seen)
	}

	src.Clear()
	if _, ok := src.Preview(); ok {
		t.Error("preview kept after Clear")
	}
	if len(seen) != 2 || seen[1] != nil {
		t.Errorf("clear not published: %v", seen)
	}
}

func TestSource_ObserverReadsDuringConcurrentClear(t *testing.T) {
	src := NewSource(0)
	data := pngBytes(t, 2, 2)
	entered := make(chan struct{})
	src.Subscribe(func(p *Preview) {
		if p == nil {
			return
		}
		close(entered)
		time.Sleep(50 * time.Millisecond)
		_, _ = src.Preview()
	})

	submitted := make(chan struct{})
	go func() {
		defer close(submitted)
		_, err := src.Submit(context.Background(), File{
			Name:      "a.png",
			MediaType: "image/png",
			Body:      bytes.NewReader(data),
		})
		if err != nil {
			t.Errorf("Submit: %v", err)
		}
	}()
	<-entered

	cleared := make(chan struct{})
	go func() {
		src.Clear()
		close(cleared)
	}()

	waitClosed(t, submitted, "Submit")
	waitClosed(t, cleared, "Clear")
	if _, ok := src.Preview(); ok {
		t.Error("preview kept after Clear")
	}
}

func TestSource_SubmitUnprobedImageAccepted(t *testing.T) {
	svg := `<svg xmlns="http://www.w3.org/2000/svg"/>`
	snap, err := NewSource(0).Submit(context.Background(), File{
		Name:      "x.svg",
		MediaType: "image/svg+xml",
		Body:      strings.NewReader(svg),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if snap.MediaType() != "image/svg+xml" {
		t.Errorf("media type = %q", snap.MediaType())
	}
}

func TestSource_SubmitCorruptPNG(t *testing.T) {
	data := pngBytes(t, 2, 2)
	_, err := NewSource(0).Submit(context.Background(), File{
		Name:      "broken.png",
		MediaType: "image/png",
		Body:      bytes.NewReader(data[:20]),
	})
	if err == nil {
		t.Fatal("truncated png accepted")
	}
}

func TestSource_SubmitLimits(t *testing.T) {
	src := NewSource(10)
	if _, err := src.Submit(context.Background(), File{Name: "e.png", MediaType: "image/png", Body: strings.NewReader("")}); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("empty = %v, want ErrEmptyFile", err)
	}
	if _, err := src.Submit(context.Background(), File{Name: "big.png", MediaType: "image/png", Body: bytes.NewReader(pngBytes(t, 8, 8))}); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("big = %v, want ErrFileTooLarge", err)
	}
}

type blockingReader struct{ release chan struct{} }

func (r blockingReader) Read([]byte) (int, error) {
	<-r.release
	return 0, io.EOF
}

func TestSource_SubmitHonoursContext(t *testing.T) {
	r := blockingReader{release: make(chan struct{})}
	defer close(r.release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSource(0).Submit(ctx, File{Name: "slow.png", MediaType: "image/png", Body: r})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Submit = %v, want context.Canceled", err)
	}
}
