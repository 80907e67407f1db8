package state

import (
	"fmt"
	"math"
	"strings"
)

// Point is a position in the logical unit square, independent of the
// device pixels the drawing was captured on.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// normalize clamps p into the unit square. ok is false for NaN or Inf.
func (p Point) normalize() (Point, bool) {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
		return Point{}, false
	}
	return Point{X: clamp01(p.X), Y: clamp01(p.Y)}, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// RGB is an opaque stroke color.
type RGB struct {
	R, G, B uint8
}

var (
	Black = RGB{}
	White = RGB{R: 255, G: 255, B: 255}
)

// ParseHex parses "#rrggbb" or "rrggbb".
func ParseHex(s string) (RGB, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("invalid color %q: want #rrggbb", s)
	}
	var c RGB
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return RGB{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return c, nil
}

// Hex renders the color as "#rrggbb".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c RGB) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

func (c *RGB) UnmarshalText(b []byte) error {
	parsed, err := ParseHex(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Stroke is one continuous gesture. Color and Width are fixed when the
// stroke begins; Points only ever grow while the stroke is open.
type Stroke struct {
	ID     string  `json:"id"`
	Color  RGB     `json:"color"`
	Width  float64 `json:"width"`
	Points []Point `json:"points"`
}

func (s Stroke) clone() Stroke {
	s.Points = append([]Point(nil), s.Points...)
	return s
}

// Viewport is the device-pixel size the canvas is currently displayed at.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}
