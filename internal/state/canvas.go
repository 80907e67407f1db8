package state

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"

	"DrawingTransformer/internal/logging"
)

// EventKind names a drawing mutation.
type EventKind string

const (
	StrokeBegun    EventKind = "begin"
	StrokeExtended EventKind = "extend"
	StrokeEnded    EventKind = "end"
	DrawingCleared EventKind = "clear"
)

// DrawingEvent describes one mutation. Stroke is a copy of the affected
// stroke and is empty for DrawingCleared.
type DrawingEvent struct {
	Kind    EventKind `json:"kind"`
	Stroke  Stroke    `json:"stroke"`
	Strokes int       `json:"strokes"`
}

// Canvas captures freehand input as an ordered list of strokes stored in
// unit-square coordinates. It is safe for concurrent use.
type Canvas struct {
	mu       sync.RWMutex
	notifyMu sync.Mutex

	strokes  []Stroke
	open     bool
	color    RGB
	width    float64
	viewport Viewport
	raster   *Rasterizer

	observers Observers[DrawingEvent]
}

// NewCanvas creates an empty canvas painting black strokes of width 5.
// A nil rasterizer uses NewRasterizer.
func NewCanvas(r *Rasterizer) *Canvas {
	if r == nil {
		r = NewRasterizer()
	}
	return &Canvas{
		strokes:  make([]Stroke, 0),
		color:    Black,
		width:    5,
		viewport: Viewport{Width: float64(r.baseSize()), Height: float64(r.baseSize())},
		raster:   r,
	}
}

// SetColor changes the color of strokes begun from now on.
func (c *Canvas) SetColor(col RGB) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.color = col
}

// SetWidth changes the width of strokes begun from now on.
func (c *Canvas) SetWidth(w float64) error {
	if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidWidth, w)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width = w
	return nil
}

// Pen returns the color and width the next stroke will use.
func (c *Canvas) Pen() (RGB, float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.color, c.width
}

// Begin starts a new open stroke at p. Non-finite points are ignored.
func (c *Canvas) Begin(p Point) {
	p, ok := p.normalize()
	if !ok {
		logging.Logger().Debug("[canvas] dropped non-finite begin point")
		return
	}

	c.mutate(func() (DrawingEvent, bool) {
		s := Stroke{
			ID:     uuid.NewString(),
			Color:  c.color,
			Width:  c.width,
			Points: []Point{p},
		}
		c.strokes = append(c.strokes, s)
		c.open = true
		return DrawingEvent{Kind: StrokeBegun, Stroke: s.clone(), Strokes: len(c.strokes)}, true
	})
}

// Extend appends p to the open stroke. Without an open stroke it does nothing.
func (c *Canvas) Extend(p Point) {
	p, ok := p.normalize()
	if !ok {
		return
	}

	c.mutate(func() (DrawingEvent, bool) {
		if !c.open {
			return DrawingEvent{}, false
		}
		last := &c.strokes[len(c.strokes)-1]
		last.Points = append(last.Points, p)
		return DrawingEvent{Kind: StrokeExtended, Stroke: last.clone(), Strokes: len(c.strokes)}, true
	})
}

// End closes the open stroke, if any.
func (c *Canvas) End() {
	c.mutate(func() (DrawingEvent, bool) {
		if !c.open {
			return DrawingEvent{}, false
		}
		c.open = false
		last := c.strokes[len(c.strokes)-1]
		logging.Logger().Debug("[canvas] stroke committed", "id", last.ID, "points", len(last.Points))
		return DrawingEvent{Kind: StrokeEnded, Stroke: last.clone(), Strokes: len(c.strokes)}, true
	})
}

// Clear closes any open stroke and removes every stroke.
func (c *Canvas) Clear() {
	c.mutate(func() (DrawingEvent, bool) {
		c.open = false
		c.strokes = make([]Stroke, 0)
		return DrawingEvent{Kind: DrawingCleared}, true
	})
}

// mutate runs fn under c.mu and hands its event, if any, to observers in
// mutation order. Locks are taken notifyMu then mu, and observers run with
// only notifyMu held: they may read the canvas but must not mutate it.
func (c *Canvas) mutate(fn func() (DrawingEvent, bool)) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	ev, ok := fn()
	c.mu.Unlock()
	if ok {
		c.observers.Notify(ev)
	}
}

// Subscribe registers fn for drawing events.
func (c *Canvas) Subscribe(fn func(DrawingEvent)) (cancel func()) {
	return c.observers.Subscribe(fn)
}

// Strokes returns a deep copy of the drawing in paint order.
func (c *Canvas) Strokes() []Stroke {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Stroke, len(c.strokes))
	for i, s := range c.strokes {
		out[i] = s.clone()
	}
	return out
}

// Len returns the number of strokes, including an open one.
func (c *Canvas) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.strokes)
}

// Drawing reports whether a stroke is currently open.
func (c *Canvas) Drawing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.open
}

// Snapshot rasterizes the drawing. It fails with ErrEmptyDrawing when
// there are no strokes. The result shares no memory with the canvas.
func (c *Canvas) Snapshot() (Snapshot, error) {
	strokes := c.Strokes()
	if len(strokes) == 0 {
		return Snapshot{}, ErrEmptyDrawing
	}
	snap, err := c.raster.Render(strokes)
	if err != nil {
		return Snapshot{}, err
	}
	logging.Logger().Info("[canvas] snapshot captured", "strokes", len(strokes), "bytes", snap.Len())
	return snap, nil
}

// Resize records the display size. Stored points are not touched.
func (c *Canvas) Resize(width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewport = Viewport{Width: width, Height: height}
}

func (c *Canvas) Viewport() Viewport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viewport
}

// ToLogical converts a device position in the current viewport to a
// unit-square point.
func (c *Canvas) ToLogical(x, y float64) Point {
	vp := c.Viewport()
	return Point{X: x / vp.Width, Y: y / vp.Height}
}

// ToDevice converts a stored point to the current viewport.
func (c *Canvas) ToDevice(p Point) (x, y float64) {
	vp := c.Viewport()
	return p.X * vp.Width, p.Y * vp.Height
}
