package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"DrawingTransformer/internal/backend"
	"DrawingTransformer/internal/config"
	"DrawingTransformer/internal/state"
)

// artService answers every describe call with desc and every generate
// call with url.
type artService struct {
	desc string
	url  string
	err  error
}

func (s artService) Analyze(context.Context, state.Snapshot) (string, error) {
	return s.desc, s.err
}

func (s artService) Generate(context.Context, string) (string, error) {
	return s.url, nil
}

func writeTestPNG(t *testing.T, dir string) (string, []byte) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	img.Set(1, 1, color.NRGBA{B: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "drawing.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path, buf.Bytes()
}

func backendConfig(t *testing.T, svc artService) config.Config {
	t.Helper()
	ts := httptest.NewServer(backend.NewServer(svc, 0))
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.Service.Provider = config.ProviderHTTP
	cfg.Service.BaseURL = ts.URL
	cfg.Service.MaxRetries = 0
	return cfg
}

func TestRunTransform_SavesDescriptionAndDownloadedArtwork(t *testing.T) {
	artwork := []byte("\x89PNG generated")
	art := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/art.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(artwork)
	}))
	defer art.Close()

	dir := t.TempDir()
	input, _ := writeTestPNG(t, dir)
	cfg := backendConfig(t, artService{desc: "a blue dot", url: art.URL + "/art.png"})

	out := filepath.Join(dir, "out")
	if err := runTransform(context.Background(), cfg, input, out); err != nil {
		t.Fatalf("runTransform: %v", err)
	}

	desc, err := os.ReadFile(filepath.Join(out, descriptionFile))
	if err != nil || string(desc) != "a blue dot" {
		t.Errorf("description = %q, %v", desc, err)
	}
	got, err := os.ReadFile(filepath.Join(out, artworkFile))
	if err != nil || !bytes.Equal(got, artwork) {
		t.Errorf("artwork = %q, %v", got, err)
	}
}

func TestRunTransform_DecodesInlineArtwork(t *testing.T) {
	dir := t.TempDir()
	input, data := writeTestPNG(t, dir)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
	cfg := backendConfig(t, artService{desc: "a dot", url: uri})

	if err := runTransform(context.Background(), cfg, input, dir); err != nil {
		t.Fatalf("runTransform: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, artworkFile))
	if err != nil || !bytes.Equal(got, data) {
		t.Errorf("artwork differs from inline payload: %v", err)
	}
}

func TestRunTransform_ServiceFailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	input, _ := writeTestPNG(t, dir)
	cfg := backendConfig(t, artService{err: errors.New("vision model offline")})

	out := filepath.Join(dir, "out")
	if err := runTransform(context.Background(), cfg, input, out); err == nil {
		t.Fatal("expected error from failed describe")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output directory created after failure: %v", err)
	}
}

func TestRunTransform_RejectsNonImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("just text"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := backendConfig(t, artService{desc: "x", url: "y"})

	err := runTransform(context.Background(), cfg, path, dir)
	var ute *state.UnsupportedTypeError
	if !errors.As(err, &ute) {
		t.Fatalf("runTransform = %v, want UnsupportedTypeError", err)
	}
}

func TestSaveArtwork_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	path := filepath.Join(t.TempDir(), artworkFile)
	if err := saveArtwork(context.Background(), 0, ts.URL+"/gone.png", path); err == nil {
		t.Fatal("expected error for 404")
	}
}
