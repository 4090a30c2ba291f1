package main

import (
	"context"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-ogc-client/pkg/cache"
	"github.com/robert-malhotra/go-ogc-client/pkg/fetch"
	"github.com/robert-malhotra/go-ogc-client/pkg/worker"
)

// serviceKind is the protocol selected on the input page.
type serviceKind int

const (
	serviceOGCAPI serviceKind = iota
	serviceSTAC
	serviceWMS
	serviceWFS
	serviceWMTS
)

var serviceLabels = []string{"OGC API", "STAC API", "WMS", "WFS", "WMTS"}

// dependencies are the library components shared by every load.
type dependencies struct {
	fetcher    *fetch.Fetcher
	xmlFetcher *fetch.Fetcher
	cache      *cache.Cache
	runner     worker.Runner
	logger     zerolog.Logger
}

// entry is one row of the browse list.
type entry struct {
	label  string
	detail string
	// raw is shown by the JSON viewer.
	raw any
	// open, when set, is run on Enter.
	open func()
}

type TUI struct {
	app          *tview.Application
	pages        *tview.Pages
	input        *tview.InputField
	serviceField *tview.DropDown
	browseList   *tview.List
	browseDetail *tview.TextView
	itemsList    *tview.List
	itemDetail   *tview.TextView

	deps    dependencies
	service serviceKind

	mu      sync.Mutex
	entries []entry
	items   []entry

	baseCtx    context.Context
	baseCancel context.CancelFunc
	loadCancel context.CancelFunc
	stopOnce   sync.Once

	jsonViewer *jsonViewer
}

// configureStyles sets the tview global styles for the TUI.
func configureStyles() {
	tview.Styles.PrimitiveBackgroundColor = tcell.ColorBlack
	tview.Styles.ContrastBackgroundColor = tcell.ColorDarkSlateGray
	tview.Styles.MoreContrastBackgroundColor = tcell.ColorGreen
	tview.Styles.BorderColor = tcell.ColorWhite
	tview.Styles.TitleColor = tcell.ColorWhite
	tview.Styles.GraphicsColor = tcell.ColorWhite
	tview.Styles.PrimaryTextColor = tcell.ColorWhite
	tview.Styles.SecondaryTextColor = tcell.ColorYellow
	tview.Styles.TertiaryTextColor = tcell.ColorGreen
}

// NewTUI creates a new TUI instance. ctx bounds every background load;
// initialURL prefills the input page.
func NewTUI(ctx context.Context, deps dependencies, initialURL string) *TUI {
	baseCtx, baseCancel := context.WithCancel(ctx)
	configureStyles()

	t := &TUI{
		app:        tview.NewApplication(),
		pages:      tview.NewPages(),
		deps:       deps,
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
	}
	t.setupPages(initialURL)
	t.jsonViewer = newJSONViewer(t)

	t.app.SetInputCapture(t.onInputCapture)
	t.app.SetFocus(t.input)
	return t
}

// Run starts the event loop and blocks until the application exits.
func (t *TUI) Run() error {
	return t.app.SetRoot(t.pages, true).Run()
}

func (t *TUI) Stop() {
	t.stopOnce.Do(func() {
		t.baseCancel()
		t.app.Stop()
	})
}

// startLoad cancels the previous load and returns the context of a new one.
func (t *TUI) startLoad() context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.loadCancel != nil {
		t.loadCancel()
	}
	ctx, cancel := context.WithCancel(t.baseCtx)
	t.loadCancel = cancel
	return ctx
}
