package ui

import (
	"context"
	"errors"
	"fmt"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"DrawingTransformer/internal/export"
	"DrawingTransformer/internal/logging"
	"DrawingTransformer/internal/pipeline"
	"DrawingTransformer/internal/state"
)

var palette = []state.RGB{
	state.Black,
	{R: 255},
	{G: 160},
	{B: 255},
	{R: 255, G: 200},
	{R: 140, G: 70, B: 20},
}

const (
	penWidth    = 2
	eraserWidth = 20
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tif", ".tiff", ".svg"}

type colorSwatch struct {
	widget.BaseWidget
	Color    state.RGB
	OnTapped func(state.RGB)
}

func newColorSwatch(c state.RGB, tapped func(state.RGB)) *colorSwatch {
	s := &colorSwatch{Color: c, OnTapped: tapped}
	s.ExtendBaseWidget(s)
	return s
}

func (s *colorSwatch) CreateRenderer() fyne.WidgetRenderer {
	rect := canvas.NewRectangle(color.NRGBA{R: s.Color.R, G: s.Color.G, B: s.Color.B, A: 255})
	rect.SetMinSize(fyne.NewSize(32, 32))

	border := canvas.NewRectangle(color.Transparent)
	border.StrokeColor = color.Gray{Y: 150}
	border.StrokeWidth = 1

	return widget.NewSimpleRenderer(container.NewStack(rect, border))
}

func (s *colorSwatch) Tapped(_ *fyne.PointEvent) {
	if s.OnTapped != nil {
		s.OnTapped(s.Color)
	}
}

// penTool remembers the last swatch so the pen can come back from the
// eraser, which is a white stroke over the drawing.
type penTool struct {
	canvas    *state.Canvas
	lastColor state.RGB
}

func newPenTool(c *state.Canvas) *penTool {
	col, _ := c.Pen()
	return &penTool{canvas: c, lastColor: col}
}

func (p *penTool) pick(col state.RGB) {
	p.lastColor = col
	p.canvas.SetColor(col)
}

// usePen restores the last swatch color and returns the pen width.
func (p *penTool) usePen() float64 {
	p.canvas.SetColor(p.lastColor)
	if _, w := p.canvas.Pen(); w > 10 {
		_ = p.canvas.SetWidth(penWidth)
	}
	_, w := p.canvas.Pen()
	return w
}

// useEraser switches to the eraser and returns its width.
func (p *penTool) useEraser() float64 {
	p.canvas.SetColor(state.White)
	_ = p.canvas.SetWidth(eraserWidth)
	return eraserWidth
}

// newToolbar builds the pen controls and the pipeline actions.
func newToolbar(sh *shell) fyne.CanvasObject {
	c := sh.session.Canvas
	tool := newPenTool(c)

	swatches := container.NewHBox()
	for _, col := range palette {
		swatches.Add(newColorSwatch(col, func(col state.RGB) {
			tool.pick(col)
			sh.setStatus("Color " + col.Hex())
		}))
	}

	_, width := c.Pen()
	widthSlider := widget.NewSlider(1, 50)
	widthSlider.SetValue(width)
	widthSlider.OnChanged = func(v float64) {
		if err := c.SetWidth(v); err != nil {
			sh.setStatus(err.Error())
		}
	}
	sliderContainer := container.New(layout.NewGridWrapLayout(fyne.NewSize(150, 35)), widthSlider)

	actions := widget.NewToolbar(
		widget.NewToolbarAction(theme.DocumentCreateIcon(), func() {
			widthSlider.SetValue(tool.usePen())
			sh.setStatus("Pen")
		}),
		widget.NewToolbarAction(theme.ContentClearIcon(), func() {
			widthSlider.SetValue(tool.useEraser())
			sh.setStatus("Eraser")
		}),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.DeleteIcon(), func() {
			c.Clear()
			sh.setStatus("Canvas cleared")
		}),
		widget.NewToolbarAction(theme.MediaPlayIcon(), func() {
			sh.report("Transforming drawing...", sh.session.TransformDrawing())
		}),
		widget.NewToolbarAction(theme.FolderOpenIcon(), sh.openUpload),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), sh.saveSheet),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ViewRefreshIcon(), func() {
			sh.session.Reset()
			sh.setStatus("Ready")
		}),
	)

	return container.NewHBox(
		widget.NewLabel("Color:"),
		swatches,
		widget.NewSeparator(),
		widget.NewLabel("Size:"),
		sliderContainer,
		widget.NewSeparator(),
		actions,
		layout.NewSpacer(),
	)
}

func (sh *shell) openUpload() {
	d := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
		if err != nil {
			sh.setStatus(fmt.Sprintf("Open failed: %v", err))
			return
		}
		if r == nil {
			return
		}
		f := state.File{Name: r.URI().Name(), MediaType: r.URI().MimeType(), Body: r}
		sh.setStatus("Reading " + f.Name + "...")
		go func() {
			defer r.Close()
			err := sh.session.TransformUpload(context.Background(), f)
			fyne.Do(func() { sh.report("Transforming "+f.Name+"...", err) })
		}()
	}, sh.window)
	d.SetFilter(storage.NewExtensionFileFilter(imageExtensions))
	d.Show()
}

func (sh *shell) saveSheet() {
	data := sh.session.Controller.Data()
	if data.ImageData.IsZero() {
		sh.setStatus(export.ErrNothingToExport.Error())
		return
	}
	d := dialog.NewFileSave(func(w fyne.URIWriteCloser, err error) {
		if err != nil {
			sh.setStatus(fmt.Sprintf("Save failed: %v", err))
			return
		}
		if w == nil {
			return
		}
		defer w.Close()
		if err := export.WriteSheet(w, data); err != nil {
			logging.Logger().Error("[ui] sheet export failed", "err", err)
			sh.setStatus(fmt.Sprintf("Save failed: %v", err))
			return
		}
		sh.setStatus("Saved " + w.URI().Name())
	}, sh.window)
	d.SetFileName("drawing.pdf")
	d.Show()
}

// report shows ok on success or a message naming the failure.
func (sh *shell) report(ok string, err error) {
	var ute *state.UnsupportedTypeError
	switch {
	case err == nil:
		sh.setStatus(ok)
	case errors.Is(err, pipeline.ErrNoInput):
		sh.setStatus("Draw something or upload an image first")
	case errors.Is(err, pipeline.ErrPipelineBusy):
		sh.setStatus("Still working on the last one...")
	case errors.Is(err, pipeline.ErrResetRequired):
		sh.setStatus("Press reset to start over")
	case errors.As(err, &ute):
		sh.setStatus("Please choose an image file")
	default:
		sh.setStatus(err.Error())
	}
}
