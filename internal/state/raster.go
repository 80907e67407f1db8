package state

import (
	"bytes"
	"fmt"
	"image/color"

	"github.com/gogpu/gg"
)

const (
	DefaultBaseSize = 600
	DefaultScale    = 2.0
)

// Rasterizer paints strokes onto a square white surface of
// BaseSize*Scale pixels and encodes the result as PNG.
type Rasterizer struct {
	// BaseSize is the logical edge length that stroke widths are measured in.
	BaseSize int
	// Scale multiplies BaseSize for the output resolution. Values below 1 use 1.
	Scale      float64
	Background RGB
}

// NewRasterizer returns a rasterizer with the default 600px logical edge at 2x.
func NewRasterizer() *Rasterizer {
	return &Rasterizer{BaseSize: DefaultBaseSize, Scale: DefaultScale, Background: White}
}

// PixelSize is the edge length of the produced image.
func (r *Rasterizer) PixelSize() int {
	return int(float64(r.baseSize()) * r.scale())
}

func (r *Rasterizer) baseSize() int {
	if r.BaseSize <= 0 {
		return DefaultBaseSize
	}
	return r.BaseSize
}

func (r *Rasterizer) scale() float64 {
	if r.Scale < 1 {
		return 1
	}
	return r.Scale
}

// Render paints strokes in slice order, so later strokes cover earlier ones.
func (r *Rasterizer) Render(strokes []Stroke) (Snapshot, error) {
	size := r.PixelSize()
	dc := gg.NewContext(size, size)
	defer dc.Close()

	dc.ClearWithColor(gg.FromColor(toColor(r.Background)))
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)

	edge := float64(size)
	for _, s := range strokes {
		if len(s.Points) == 0 {
			continue
		}
		width := s.Width * r.scale()
		dc.SetColor(toColor(s.Color))

		if len(s.Points) == 1 {
			p := s.Points[0]
			dc.DrawCircle(p.X*edge, p.Y*edge, width/2)
			if err := dc.Fill(); err != nil {
				return Snapshot{}, fmt.Errorf("rasterize stroke %s: %w", s.ID, err)
			}
			continue
		}

		dc.SetLineWidth(width)
		dc.MoveTo(s.Points[0].X*edge, s.Points[0].Y*edge)
		for _, p := range s.Points[1:] {
			dc.LineTo(p.X*edge, p.Y*edge)
		}
		if err := dc.Stroke(); err != nil {
			return Snapshot{}, fmt.Errorf("rasterize stroke %s: %w", s.ID, err)
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return Snapshot{}, fmt.Errorf("encode snapshot: %w", err)
	}
	return Snapshot{mediaType: "image/png", data: buf.Bytes()}, nil
}

func toColor(c RGB) color.Color {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255}
}
