package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"DrawingTransformer/internal/state"
)

// BoardWidget is the drawing surface. It feeds pointer input to a
// state.Canvas and paints the canvas strokes on the largest square that fits
// its size, centered, so the drawing keeps the snapshot's proportions.
type BoardWidget struct {
	widget.BaseWidget

	canvas   *state.Canvas
	baseSize float32
	drawing  bool
	unsub    func()
}

var _ fyne.Widget = (*BoardWidget)(nil)
var _ fyne.Draggable = (*BoardWidget)(nil)
var _ desktop.Mouseable = (*BoardWidget)(nil)

// NewBoardWidget binds a board to c. baseSize is the rasterizer's logical
// side length; stroke widths are expressed in it.
func NewBoardWidget(c *state.Canvas, baseSize int) *BoardWidget {
	if baseSize <= 0 {
		baseSize = state.DefaultBaseSize
	}
	b := &BoardWidget{canvas: c, baseSize: float32(baseSize)}
	b.ExtendBaseWidget(b)
	b.unsub = c.Subscribe(func(state.DrawingEvent) {
		fyne.Do(b.Refresh)
	})
	return b
}

// Detach stops repainting on canvas changes.
func (b *BoardWidget) Detach() {
	if b.unsub != nil {
		b.unsub()
	}
}

func (b *BoardWidget) Resize(size fyne.Size) {
	side, _ := square(size)
	b.canvas.Resize(float64(side), float64(side))
	b.BaseWidget.Resize(size)
}

// square returns the side and top-left corner of the drawing area.
func square(size fyne.Size) (float32, fyne.Position) {
	side := min(size.Width, size.Height)
	return side, fyne.NewPos((size.Width-side)/2, (size.Height-side)/2)
}

func (b *BoardWidget) logical(pos fyne.Position) state.Point {
	side, origin := square(b.Size())
	b.canvas.Resize(float64(side), float64(side))
	return b.canvas.ToLogical(float64(pos.X-origin.X), float64(pos.Y-origin.Y))
}

func (b *BoardWidget) device(p state.Point, origin fyne.Position) fyne.Position {
	x, y := b.canvas.ToDevice(p)
	return fyne.NewPos(float32(x)+origin.X, float32(y)+origin.Y)
}

func (b *BoardWidget) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	b.drawing = true
	b.canvas.Begin(b.logical(e.Position))
}

func (b *BoardWidget) Dragged(e *fyne.DragEvent) {
	if !b.drawing {
		return
	}
	b.canvas.Extend(b.logical(e.Position))
}

func (b *BoardWidget) MouseUp(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary || !b.drawing {
		return
	}
	b.drawing = false
	b.canvas.End()
}

func (b *BoardWidget) DragEnd() {
	if b.drawing {
		b.drawing = false
		b.canvas.End()
	}
}

func (b *BoardWidget) MouseIn(*desktop.MouseEvent)    {}
func (b *BoardWidget) MouseOut()                      {}
func (b *BoardWidget) MouseMoved(*desktop.MouseEvent) {}

func (b *BoardWidget) CreateRenderer() fyne.WidgetRenderer {
	r := &boardWidgetRenderer{board: b}
	r.background = canvas.NewRectangle(color.Gray{Y: 230})
	r.paper = canvas.NewRectangle(color.White)
	r.rebuild()
	return r
}

type boardWidgetRenderer struct {
	board      *BoardWidget
	background *canvas.Rectangle
	paper      *canvas.Rectangle
	objects    []fyne.CanvasObject
}

// rebuild turns every stroke into line segments, or a dot for a
// single-point stroke, in paint order.
func (r *boardWidgetRenderer) rebuild() {
	b := r.board
	side, origin := square(b.Size())
	scale := side / b.baseSize
	r.paper.Resize(fyne.NewSize(side, side))
	r.paper.Move(origin)

	objects := []fyne.CanvasObject{r.background, r.paper}
	for _, s := range b.canvas.Strokes() {
		col := color.NRGBA{R: s.Color.R, G: s.Color.G, B: s.Color.B, A: 255}
		width := float32(s.Width) * scale
		if len(s.Points) == 1 {
			at := b.device(s.Points[0], origin)
			dot := canvas.NewCircle(col)
			dot.Resize(fyne.NewSize(width, width))
			dot.Move(fyne.NewPos(at.X-width/2, at.Y-width/2))
			objects = append(objects, dot)
			continue
		}
		for i := 0; i < len(s.Points)-1; i++ {
			segment := canvas.NewLine(col)
			segment.StrokeWidth = width
			segment.Position1 = b.device(s.Points[i], origin)
			segment.Position2 = b.device(s.Points[i+1], origin)
			objects = append(objects, segment)
		}
	}
	r.objects = objects
}

func (r *boardWidgetRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *boardWidgetRenderer) Refresh() {
	r.rebuild()
	canvas.Refresh(r.board)
}

func (r *boardWidgetRenderer) Layout(size fyne.Size) {
	r.background.Resize(size)
	r.rebuild()
}

func (r *boardWidgetRenderer) MinSize() fyne.Size {
	return fyne.NewSize(300, 300)
}

func (r *boardWidgetRenderer) Destroy() {}
