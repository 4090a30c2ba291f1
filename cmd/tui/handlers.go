package main

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

func (t *TUI) onInputDone(key tcell.Key) {
	if key == tcell.KeyEnter {
		go t.loadService(t.service, t.input.GetText())
	}
}

func (t *TUI) onInputCapture(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() == tcell.KeyCtrlC {
		t.Stop()
		return nil
	}

	currentPage, _ := t.pages.GetFrontPage()

	if event.Key() == tcell.KeyRune {
		if r := event.Rune(); r == 'j' || r == 'J' {
			switch currentPage {
			case pageBrowse:
				if e := t.entryAt(t.entries, t.browseList.GetCurrentItem()); e != nil {
					t.showJSON(fmt.Sprintf("Raw %s", e.label), e.raw)
				}
				return nil
			case pageItems:
				if e := t.entryAt(t.items, t.itemsList.GetCurrentItem()); e != nil {
					t.showJSON(fmt.Sprintf("Item %s", e.label), e.raw)
				}
				return nil
			}
		}
	}

	switch event.Key() {
	case tcell.KeyTab, tcell.KeyBacktab:
		switch currentPage {
		case pageInput:
			if t.app.GetFocus() == t.input {
				t.app.SetFocus(t.serviceField)
			} else {
				t.app.SetFocus(t.input)
			}
			return nil
		case pageBrowse:
			if t.app.GetFocus() == t.browseList {
				t.app.SetFocus(t.browseDetail)
			} else {
				t.app.SetFocus(t.browseList)
			}
			return nil
		case pageItems:
			if t.app.GetFocus() == t.itemsList {
				t.app.SetFocus(t.itemDetail)
			} else {
				t.app.SetFocus(t.itemsList)
			}
			return nil
		}
	case tcell.KeyEscape:
		switch currentPage {
		case pageItems:
			t.startLoad()
			t.pages.SwitchToPage(pageBrowse)
			t.app.SetFocus(t.browseList)
			return nil
		case pageBrowse:
			t.startLoad()
			t.pages.SwitchToPage(pageInput)
			t.app.SetFocus(t.input)
			return nil
		}
	}

	return event
}
