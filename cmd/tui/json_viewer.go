package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/robert-malhotra/go-ogc-client/cmd/tui/formatting"
)

const jsonPageID = "jsonView"

// rawDocument is the encoded form of the value on screen.
type rawDocument struct {
	title string
	data  []byte
}

// jsonViewer is an overlay page showing the raw document of a row. The
// page is built once and refilled on every Show.
type jsonViewer struct {
	tui  *TUI
	view *tview.TextView

	mu        sync.Mutex
	shown     rawDocument
	prevFocus tview.Primitive
}

func newJSONViewer(t *TUI) *jsonViewer {
	v := &jsonViewer{tui: t}
	v.view = tview.NewTextView().SetScrollable(true).SetWordWrap(false)
	v.view.SetBorder(true)
	v.view.SetInputCapture(v.handleInput)

	help := formatting.MakeHelpText("[yellow]Esc[white] close  [yellow]s[white] save JSON  [yellow]Ctrl+C[white] quit")
	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(v.view, 0, 1, true).
		AddItem(help, 3, 0, false)
	t.pages.AddPage(jsonPageID, layout, true, false)
	return v
}

// Show runs on the UI goroutine. Capability documents are small enough to
// encode inline.
func (v *jsonViewer) Show(title string, value any) {
	if value == nil {
		return
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		v.tui.deps.logger.Error().Err(err).Str("title", title).Msg("encode failed")
		go v.tui.showError(fmt.Sprintf("Failed to render JSON: %v", err))
		return
	}

	v.mu.Lock()
	v.shown = rawDocument{title: title, data: data}
	v.prevFocus = v.tui.app.GetFocus()
	v.mu.Unlock()

	v.view.SetTitle(fmt.Sprintf("%s (%d bytes)", title, len(data)))
	v.view.SetText(string(data)).ScrollToBeginning()
	v.tui.pages.ShowPage(jsonPageID)
	v.tui.app.SetFocus(v.view)
}

func (v *jsonViewer) Close() {
	v.mu.Lock()
	focus := v.prevFocus
	v.shown, v.prevFocus = rawDocument{}, nil
	v.mu.Unlock()

	v.view.Clear()
	v.tui.pages.HidePage(jsonPageID)
	if focus != nil {
		v.tui.app.SetFocus(focus)
	}
}

// save writes the shown document next to the working directory. It does
// file I/O and must not run on the UI goroutine.
func (v *jsonViewer) save(doc rawDocument) {
	filename := formatting.GenerateJSONFilename(doc.title, time.Now())
	if err := os.WriteFile(filename, doc.data, 0o644); err != nil {
		v.tui.deps.logger.Error().Err(err).Str("file", filename).Msg("save failed")
		v.tui.showError(fmt.Sprintf("Failed to save JSON: %v", err))
		return
	}
	v.tui.deps.logger.Info().Str("file", filename).Int("bytes", len(doc.data)).Msg("document saved")
	v.tui.showInfo(fmt.Sprintf("JSON saved to %s", filename))
}

func (v *jsonViewer) handleInput(event *tcell.EventKey) *tcell.EventKey {
	switch {
	case event.Key() == tcell.KeyEscape:
		v.Close()
		return nil
	case event.Key() == tcell.KeyRune && (event.Rune() == 's' || event.Rune() == 'S'):
		v.mu.Lock()
		doc := v.shown
		v.mu.Unlock()
		if len(doc.data) > 0 {
			go v.save(doc)
		}
		return nil
	}
	return event
}

func (t *TUI) showJSON(title string, value any) {
	t.jsonViewer.Show(title, value)
}
