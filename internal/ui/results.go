package ui

import (
	"net/url"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"DrawingTransformer/internal/pipeline"
	"DrawingTransformer/internal/state"
)

// resultPanel mirrors the controller's View.
type resultPanel struct {
	step        *widget.Label
	progress    *widget.ProgressBarInfinite
	input       *canvas.Image
	description *widget.Label
	artwork     *canvas.Image
	link        *widget.Hyperlink
	errLabel    *widget.Label

	shown state.Snapshot
	root  fyne.CanvasObject
}

func newResultPanel() *resultPanel {
	p := &resultPanel{
		step:        widget.NewLabelWithStyle("", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		progress:    widget.NewProgressBarInfinite(),
		input:       &canvas.Image{FillMode: canvas.ImageFillContain},
		description: widget.NewLabel(""),
		artwork:     &canvas.Image{FillMode: canvas.ImageFillContain},
		link:        widget.NewHyperlink("", nil),
		errLabel:    widget.NewLabel(""),
	}
	p.description.Wrapping = fyne.TextWrapWord
	p.errLabel.Wrapping = fyne.TextWrapWord
	p.errLabel.Importance = widget.DangerImportance
	p.input.SetMinSize(fyne.NewSize(160, 160))
	p.artwork.SetMinSize(fyne.NewSize(240, 240))

	p.root = container.NewVScroll(container.NewVBox(
		p.step,
		p.progress,
		p.input,
		widget.NewSeparator(),
		p.description,
		p.artwork,
		p.link,
		p.errLabel,
	))
	p.update(pipeline.View{Step: pipeline.StepDraw})
	return p
}

var stepTitles = map[pipeline.State]string{
	pipeline.Draw:         "Draw a picture",
	pipeline.Describing:   "Looking at your drawing...",
	pipeline.Transforming: "Painting the artwork...",
	pipeline.Done:         "Your artwork is ready",
	pipeline.Failed:       "Something went wrong",
}

// update must run on the fyne goroutine.
func (p *resultPanel) update(v pipeline.View) {
	p.step.SetText(stepTitles[v.State])
	if v.IsLoading {
		p.progress.Show()
		p.progress.Start()
	} else {
		p.progress.Stop()
		p.progress.Hide()
	}

	d := v.Data
	if d.ImageData.IsZero() {
		p.shown = state.Snapshot{}
		p.input.Resource = nil
		p.input.Hide()
	} else if !sameSnapshot(p.shown, d.ImageData) {
		p.shown = d.ImageData
		p.input.Resource = snapshotResource("input", d.ImageData)
		p.input.Show()
	}
	p.input.Refresh()

	if d.Description != nil {
		p.description.SetText(*d.Description)
		p.description.Show()
	} else {
		p.description.Hide()
	}

	p.artwork.Hide()
	p.link.Hide()
	if d.ArtworkURL != nil {
		if snap, err := state.ParseDataURI(*d.ArtworkURL); err == nil {
			p.artwork.Resource = snapshotResource("artwork", snap)
			p.artwork.Show()
			p.artwork.Refresh()
		} else if u, err := url.Parse(*d.ArtworkURL); err == nil {
			p.link.SetText("Open the artwork")
			p.link.SetURL(u)
			p.link.Show()
		}
	}

	if v.Error != "" {
		p.errLabel.SetText(v.Error)
		p.errLabel.Show()
	} else {
		p.errLabel.Hide()
	}
}

func sameSnapshot(a, b state.Snapshot) bool {
	return a.MediaType() == b.MediaType() && a.Len() == b.Len() && a.Base64() == b.Base64()
}

var resourceExt = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/svg+xml": ".svg",
	"image/webp":    ".webp",
	"image/bmp":     ".bmp",
	"image/tiff":    ".tiff",
}

// snapshotResource names the resource by media type so fyne picks the
// right decoder.
func snapshotResource(name string, s state.Snapshot) fyne.Resource {
	return fyne.NewStaticResource(name+resourceExt[s.MediaType()], s.Bytes())
}
