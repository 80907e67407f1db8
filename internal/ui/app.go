// Package ui is the desktop shell: a drawing board, pen and pipeline
// controls, and a panel following the transformation.
package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"DrawingTransformer/internal/pipeline"
)

type shell struct {
	session *pipeline.Session
	window  fyne.Window
	board   *BoardWidget
	status  *widget.Label
}

func (sh *shell) setStatus(text string) {
	sh.status.SetText(text)
}

// RunApp opens the main window and blocks until it is closed. shareURL,
// when set, is shown so others on the network can follow along.
func RunApp(session *pipeline.Session, baseSize int, shareURL string) {
	myApp := app.NewWithID("dev.drawingtransformer")
	myWindow := myApp.NewWindow("Drawing Transformer")
	myWindow.Resize(fyne.NewSize(1100, 720))

	sh := &shell{
		session: session,
		window:  myWindow,
		board:   NewBoardWidget(session.Canvas, baseSize),
		status:  widget.NewLabel("Ready"),
	}
	defer sh.board.Detach()

	results := newResultPanel()
	cancel := session.Controller.Subscribe(func(v pipeline.View) {
		fyne.Do(func() { results.update(v) })
	})
	defer cancel()

	footer := []fyne.CanvasObject{sh.status}
	if shareURL != "" {
		footer = append(footer, widget.NewLabel("Live at "+shareURL))
	}

	split := container.NewHSplit(sh.board, results.root)
	split.SetOffset(0.6)
	content := container.NewBorder(newToolbar(sh), container.NewVBox(footer...), nil, nil, split)

	myWindow.SetContent(content)
	myWindow.ShowAndRun()
}
