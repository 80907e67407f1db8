package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"DrawingTransformer/internal/config"
	"DrawingTransformer/internal/pipeline"
	"DrawingTransformer/internal/state"
)

const (
	descriptionFile = "description.txt"
	artworkFile     = "generated_image.png"
)

// runTransform sends the image at path through a one-shot session and
// writes the description and the generated artwork into outDir.
func runTransform(ctx context.Context, cfg config.Config, path, outDir string) error {
	session, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer session.Close()
	stop := context.AfterFunc(ctx, func() { session.Controller.Close() })
	defer stop()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	body := bufio.NewReader(f)
	mediaType, err := sniffMediaType(path, body)
	if err != nil {
		return err
	}

	log.Printf("Describing %s (%s)", path, mediaType)
	upload := state.File{Name: filepath.Base(path), MediaType: mediaType, Body: body}
	if err := session.TransformUpload(ctx, upload); err != nil {
		return err
	}
	session.Controller.Wait()

	v := session.Controller.View()
	switch {
	case v.State == pipeline.Failed:
		return session.Controller.Err()
	case v.State != pipeline.Done:
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("transformation stopped while %s", v.State)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	descPath := filepath.Join(outDir, descriptionFile)
	if err := os.WriteFile(descPath, []byte(*v.Data.Description), 0o644); err != nil {
		return err
	}
	log.Printf("Description saved to %s", descPath)

	artPath := filepath.Join(outDir, artworkFile)
	if err := saveArtwork(ctx, cfg.Service.Timeout, *v.Data.ArtworkURL, artPath); err != nil {
		return err
	}
	log.Printf("Artwork saved to %s", artPath)
	return nil
}

// sniffMediaType prefers the file extension and falls back to the leading
// bytes of body.
func sniffMediaType(path string, body *bufio.Reader) (string, error) {
	if mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); mt != "" {
		return mt, nil
	}
	head, err := body.Peek(512)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return http.DetectContentType(head), nil
}

// saveArtwork writes the artwork at url to path. url is either an inline
// base64 data URI or a link to fetch.
func saveArtwork(ctx context.Context, timeout time.Duration, url, path string) error {
	if strings.HasPrefix(url, "data:") {
		snap, err := state.ParseDataURI(url)
		if err != nil {
			return err
		}
		return os.WriteFile(path, snap.Bytes(), 0o644)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("download artwork: %w", err)
	}
	resp, err := (&http.Client{Timeout: timeout}).Do(req)
	if err != nil {
		return fmt.Errorf("download artwork: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download artwork: %s", resp.Status)
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return fmt.Errorf("download artwork: %w", err)
	}
	return out.Close()
}
