// Package export renders a finished session as a printable keepsake sheet.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/draw"

	"DrawingTransformer/internal/logging"
	"DrawingTransformer/internal/pipeline"
)

// ErrNothingToExport is returned for a session without captured input.
var ErrNothingToExport = errors.New("export: no captured input")

const (
	pageMargin = 15.0
	imageSize  = 120.0
)

// WriteSheet writes an A4 PDF holding the captured input, its description
// and a link to the generated artwork.
func WriteSheet(w io.Writer, d pipeline.DrawingData) error {
	if d.ImageData.IsZero() {
		return ErrNothingToExport
	}

	p := gofpdf.New("P", "mm", "A4", "")
	p.SetMargins(pageMargin, pageMargin, pageMargin)
	p.SetCreator("DrawingTransformer", true)
	p.SetTitle("Drawing Transformer", true)
	tr := p.UnicodeTranslatorFromDescriptor("")
	p.AddPage()

	p.SetFont("Helvetica", "B", 20)
	p.CellFormat(0, 12, "My Drawing", "", 1, "C", false, 0, "")
	p.SetFont("Helvetica", "", 9)
	p.SetTextColor(120, 120, 120)
	p.CellFormat(0, 6, time.Now().Format("2 January 2006"), "", 1, "C", false, 0, "")
	p.Ln(4)

	pageW, _ := p.GetPageSize()
	if err := placeImage(p, d.ImageData.Bytes(), d.ImageData.MediaType(), (pageW-imageSize)/2); err != nil {
		logging.Logger().Warn("[export] input image not embedded", "type", d.ImageData.MediaType(), "err", err)
		p.SetFont("Helvetica", "I", 11)
		p.CellFormat(0, 10, tr("(the input image could not be embedded)"), "", 1, "C", false, 0, "")
	}
	p.Ln(6)

	p.SetTextColor(0, 0, 0)
	if d.Description != nil {
		p.SetFont("Helvetica", "B", 13)
		p.CellFormat(0, 8, "What we saw", "", 1, "L", false, 0, "")
		p.SetFont("Helvetica", "", 11)
		p.MultiCell(0, 5.5, tr(*d.Description), "", "L", false)
		p.Ln(4)
	}
	if d.ArtworkURL != nil {
		p.SetFont("Helvetica", "B", 13)
		p.CellFormat(0, 8, "The artwork", "", 1, "L", false, 0, "")
		p.SetFont("Helvetica", "U", 11)
		p.SetTextColor(30, 80, 200)
		label := *d.ArtworkURL
		if len(label) > 90 {
			label = label[:87] + "..."
		}
		p.CellFormat(0, 6, tr(label), "", 1, "L", false, 0, *d.ArtworkURL)
	}

	return p.Output(w)
}

// placeImage embeds data centred at x. Everything but JPEG is normalised
// to 8-bit NRGBA PNG, the one PNG layout gofpdf reads reliably.
func placeImage(p *gofpdf.Fpdf, data []byte, mediaType string, x float64) error {
	imgType := "JPG"
	if mediaType == "image/jpeg" {
		if _, err := jpeg.DecodeConfig(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("failed to decode %s: %w", mediaType, err)
		}
	} else {
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", mediaType, err)
		}
		b := img.Bounds()
		flat := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(flat, flat.Bounds(), img, b.Min, draw.Src)
		var buf bytes.Buffer
		if err := png.Encode(&buf, flat); err != nil {
			return fmt.Errorf("failed to transcode %s: %w", mediaType, err)
		}
		data, imgType = buf.Bytes(), "PNG"
	}

	opts := gofpdf.ImageOptions{ImageType: imgType}
	info := p.RegisterImageOptionsReader("input", opts, bytes.NewReader(data))
	if err := p.Error(); err != nil {
		return err
	}
	w, h := imageSize, imageSize
	if iw, ih := info.Width(), info.Height(); iw > 0 && ih > 0 {
		if iw >= ih {
			h = imageSize * ih / iw
		} else {
			w = imageSize * iw / ih
			x += (imageSize - w) / 2
		}
	}
	p.ImageOptions("input", x, p.GetY(), w, h, true, opts, 0, "")
	return p.Error()
}
