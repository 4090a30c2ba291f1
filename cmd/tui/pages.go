package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/robert-malhotra/go-ogc-client/cmd/tui/formatting"
	"github.com/robert-malhotra/go-ogc-client/pkg/ogcapi"
	"github.com/robert-malhotra/go-ogc-client/pkg/ows"
	"github.com/robert-malhotra/go-ogc-client/pkg/stacapi"
)

const (
	pageInput  = "input"
	pageBrowse = "browse"
	pageItems  = "items"

	// maxItems caps how many STAC items one collection view loads.
	maxItems = 100
)

const defaultURL = "https://demo.pygeoapi.io/master"

func (t *TUI) setupPages(initialURL string) {
	t.setupInputPage(initialURL)
	t.setupBrowsePage()
	t.setupItemsPage()
}

func (t *TUI) setupInputPage(initialURL string) {
	if initialURL == "" {
		initialURL = defaultURL
	}
	t.serviceField = tview.NewDropDown().
		SetLabel("Service: ").
		SetOptions(serviceLabels, func(_ string, index int) {
			t.service = serviceKind(index)
		}).
		SetCurrentOption(int(serviceOGCAPI))
	t.input = tview.NewInputField().
		SetLabel("URL: ").
		SetFieldWidth(70).
		SetText(initialURL)
	t.input.SetDoneFunc(t.onInputDone)

	form := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.serviceField, 1, 0, false).
		AddItem(tview.NewBox(), 1, 0, false).
		AddItem(t.input, 1, 0, true)
	form.SetBorder(true).SetTitle("Open an OGC service")

	help := formatting.MakeHelpText("[yellow]Enter[white] load  [yellow]Tab[white] switch field  [yellow]Ctrl+C[white] quit")
	page := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(form, 0, 1, true).
		AddItem(help, 3, 0, false)
	t.pages.AddPage(pageInput, page, true, true)
}

func (t *TUI) setupBrowsePage() {
	t.browseList = tview.NewList().ShowSecondaryText(false)
	t.browseList.SetBorder(true).SetTitle("Contents")
	t.browseDetail = tview.NewTextView().SetDynamicColors(true).SetWordWrap(true).SetScrollable(true)
	t.browseDetail.SetBorder(true).SetTitle("Details")

	t.browseList.SetChangedFunc(func(index int, _, _ string, _ rune) {
		t.showDetail(t.browseDetail, t.entryAt(t.entries, index))
	})
	t.browseList.SetSelectedFunc(func(index int, _, _ string, _ rune) {
		if e := t.entryAt(t.entries, index); e != nil && e.open != nil {
			e.open()
		}
	})

	content := tview.NewFlex().
		AddItem(t.browseList, 0, 1, true).
		AddItem(t.browseDetail, 0, 2, false)
	help := formatting.MakeHelpText("[yellow]↑/↓[white] select  [yellow]Enter[white] open  [yellow]j[white] raw JSON  [yellow]Tab[white] toggle focus  [yellow]Esc[white] back  [yellow]Ctrl+C[white] quit")
	page := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(content, 0, 1, true).
		AddItem(help, 3, 0, false)
	t.pages.AddPage(pageBrowse, page, true, false)
}

func (t *TUI) setupItemsPage() {
	t.itemsList = tview.NewList().ShowSecondaryText(false)
	t.itemsList.SetBorder(true).SetTitle("Items")
	t.itemDetail = tview.NewTextView().SetDynamicColors(true).SetWordWrap(true).SetScrollable(true)
	t.itemDetail.SetBorder(true).SetTitle("Item Summary")

	t.itemsList.SetChangedFunc(func(index int, _, _ string, _ rune) {
		t.showDetail(t.itemDetail, t.entryAt(t.items, index))
	})

	content := tview.NewFlex().
		AddItem(t.itemsList, 0, 1, true).
		AddItem(t.itemDetail, 0, 1, false)
	help := formatting.MakeHelpText("[yellow]↑/↓[white] select  [yellow]j[white] raw JSON  [yellow]Esc[white] back  [yellow]Ctrl+C[white] quit")
	page := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(content, 0, 1, true).
		AddItem(help, 3, 0, false)
	t.pages.AddPage(pageItems, page, true, false)
}

func (t *TUI) entryAt(entries []entry, index int) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(entries) {
		return nil
	}
	return &entries[index]
}

func (t *TUI) showDetail(view *tview.TextView, e *entry) {
	if e == nil {
		view.Clear()
		return
	}
	view.SetText(e.detail)
	view.ScrollToBeginning()
}

// fillList replaces the rows of list; it must run on the UI goroutine.
func fillList(list *tview.List, entries []entry) {
	list.Clear()
	for _, e := range entries {
		list.AddItem(e.label, "", 0, nil)
	}
	if len(entries) > 0 {
		list.SetCurrentItem(0)
	}
}

func (t *TUI) loadService(service serviceKind, rawURL string) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		t.showError("A URL is required")
		return
	}
	ctx := t.startLoad()

	t.app.QueueUpdateDraw(func() {
		t.browseList.Clear()
		t.browseList.AddItem("Loading...", "", 0, nil)
		t.browseDetail.Clear()
		t.browseList.SetTitle(fmt.Sprintf("%s %s", serviceLabels[service], rawURL))
		t.pages.SwitchToPage(pageBrowse)
		t.app.SetFocus(t.browseList)
	})

	go func() {
		var (
			entries []entry
			err     error
		)
		switch service {
		case serviceOGCAPI:
			entries, err = t.loadOGCAPI(ctx, rawURL)
		case serviceSTAC:
			entries, err = t.loadSTAC(ctx, rawURL)
		default:
			entries, err = t.loadOWS(ctx, rawURL, strings.ToUpper(serviceLabels[service]))
		}
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			t.deps.logger.Error().Err(err).Str("url", rawURL).Msg("load failed")
			t.showError(err.Error())
			return
		}

		t.mu.Lock()
		t.entries = entries
		t.mu.Unlock()
		t.app.QueueUpdateDraw(func() {
			fillList(t.browseList, entries)
			if len(entries) > 0 {
				t.showDetail(t.browseDetail, &entries[0])
			}
		})
	}()
}

func (t *TUI) loadOGCAPI(ctx context.Context, rawURL string) ([]entry, error) {
	ep, err := ogcapi.NewEndpoint(rawURL,
		ogcapi.WithFetcher(t.deps.fetcher),
		ogcapi.WithCache(t.deps.cache),
		ogcapi.WithLogger(t.deps.logger),
	).IsReady(ctx)
	if err != nil {
		return nil, err
	}
	info, err := ep.Info(ctx)
	if err != nil {
		return nil, err
	}
	classes, err := ep.ConformanceClasses(ctx)
	if err != nil {
		return nil, err
	}
	root, err := ep.Root(ctx)
	if err != nil {
		return nil, err
	}
	entries := []entry{{label: "[::b]Service", detail: formatting.FormatInfo(info, classes), raw: root.Document}}

	summaries, err := ep.AllCollections(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(summaries))
	for i, s := range summaries {
		ids[i] = s.ID
	}
	infos, err := ep.GetCollectionsInfo(ctx, ids...)
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		label := info.ID
		if info.Title != "" {
			label = fmt.Sprintf("%s (%s)", info.Title, info.Kind)
		}
		entries = append(entries, entry{label: tview.Escape(label), detail: formatting.FormatCollectionInfo(info), raw: info})
	}
	return entries, nil
}

func (t *TUI) loadSTAC(ctx context.Context, rawURL string) ([]entry, error) {
	ep, err := stacapi.NewEndpoint(rawURL,
		stacapi.WithFetcher(t.deps.fetcher),
		stacapi.WithCache(t.deps.cache),
		stacapi.WithLogger(t.deps.logger),
	).IsReady(ctx)
	if err != nil {
		return nil, err
	}
	info, err := ep.Info(ctx)
	if err != nil {
		return nil, err
	}
	classes, err := ep.ConformanceClasses(ctx)
	if err != nil {
		return nil, err
	}
	root, err := ep.Root(ctx)
	if err != nil {
		return nil, err
	}
	entries := []entry{{label: "[::b]Catalog", detail: formatting.FormatInfo(info, classes), raw: root.Document}}

	collections, err := ep.Collections(ctx)
	if err != nil {
		return nil, err
	}
	for _, col := range collections {
		label := col.Id
		if col.Title != "" {
			label = col.Title
		}
		id := col.Id
		entries = append(entries, entry{
			label:  tview.Escape(label),
			detail: formatting.FormatSTACCollection(col),
			raw:    col,
			open:   func() { t.loadItems(ep, id) },
		})
	}
	return entries, nil
}

func (t *TUI) loadItems(ep *stacapi.Endpoint, collectionID string) {
	ctx := t.startLoad()
	t.itemsList.Clear()
	t.itemsList.AddItem("Loading items...", "", 0, nil)
	t.itemDetail.Clear()
	t.itemsList.SetTitle("Items of " + tview.Escape(collectionID))
	t.pages.SwitchToPage(pageItems)
	t.app.SetFocus(t.itemsList)

	go func() {
		var items []entry
		for item, err := range ep.Items(ctx, collectionID, 50) {
			if err != nil {
				if ctx.Err() == nil {
					t.showError(err.Error())
				}
				return
			}
			items = append(items, entry{label: tview.Escape(item.Id), detail: formatting.FormatItemSummary(item), raw: item})
			if len(items) >= maxItems {
				break
			}
		}

		t.mu.Lock()
		t.items = items
		t.mu.Unlock()
		t.app.QueueUpdateDraw(func() {
			fillList(t.itemsList, items)
			if len(items) > 0 {
				t.showDetail(t.itemDetail, &items[0])
			}
		})
	}()
}

func (t *TUI) loadOWS(ctx context.Context, rawURL, service string) ([]entry, error) {
	caps, err := ows.NewEndpoint(rawURL, service,
		ows.WithFetcher(t.deps.xmlFetcher),
		ows.WithCache(t.deps.cache),
		ows.WithRunner(t.deps.runner),
		ows.WithLogger(t.deps.logger),
	).Capabilities(ctx)
	if err != nil {
		return nil, err
	}
	entries := []entry{{label: "[::b]Service", detail: formatting.FormatCapabilities(caps), raw: caps}}
	for _, layer := range caps.Layers {
		label := layer.Name
		if layer.Title != "" {
			label = fmt.Sprintf("%s (%s)", layer.Title, layer.Name)
		}
		entries = append(entries, entry{label: tview.Escape(label), detail: formatting.FormatLayer(caps, layer), raw: layer})
	}
	return entries, nil
}

func (t *TUI) showInfo(message string) {
	t.showModal("info", message)
}

func (t *TUI) showError(message string) {
	t.showModal("error", message)
}

func (t *TUI) showModal(name, message string) {
	t.app.QueueUpdateDraw(func() {
		modal := tview.NewModal().
			SetText(message).
			AddButtons([]string{"OK"}).
			SetDoneFunc(func(int, string) {
				t.pages.HidePage(name)
			})
		t.pages.RemovePage(name)
		t.pages.AddPage(name, modal, false, true)
		t.pages.ShowPage(name)
	})
}
