package scraper

import (
	"fmt"

	"github.com/chromedp/chromedp"
)

type NextState string

const (
	NextAbsent   NextState = "absent"
	NextDisabled NextState = "disabled"
	NextEnabled  NextState = "enabled"
)

// Table is the product table as the scrape loop sees it.
type Table interface {
	// RowCount is the number of rows currently rendered.
	RowCount() (int, error)
	// RowHTML is the outer HTML of row i, or "" if it is not rendered.
	RowHTML(i int) (string, error)
	// Nudge scrolls the table body down by px.
	Nudge(px int) error
	ScrollHeight() (int64, error)
	ScrollToBottom() error
	Next() (NextState, error)
	ClickNext() error
	// WaitForRows blocks until at least one row is visible.
	WaitForRows() error
	// Fingerprint identifies the page currently shown, "" when no row is
	// rendered.
	Fingerprint() (string, error)
	// WaitForPageChange blocks until a row is rendered and the fingerprint
	// differs from before.
	WaitForPageChange(before string) error
}

type chromeTable struct {
	s    *Scraper
	body string
	next string
}

// Table returns the product table of the current page.
func (s *Scraper) Table() Table {
	return &chromeTable{
		s:    s,
		body: s.cfg.Selectors.TableBody,
		next: s.cfg.Selectors.NextButton,
	}
}

func (t *chromeTable) eval(script string, res any) error {
	return t.s.runWithTimeout(chromedp.Evaluate(script, res))
}

func (t *chromeTable) RowCount() (int, error) {
	var n int
	err := t.eval(fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(t.body+" tr")), &n)
	return n, err
}

func (t *chromeTable) RowHTML(i int) (string, error) {
	var html string
	err := t.eval(fmt.Sprintf(`(() => {
		const row = document.querySelectorAll(%s)[%d];
		return row ? row.outerHTML : "";
	})()`, jsString(t.body+" tr"), i), &html)
	return html, err
}

func (t *chromeTable) Nudge(px int) error {
	var ok bool
	return t.eval(fmt.Sprintf(`(() => {
		const body = document.querySelector(%s);
		if (!body) return false;
		body.scrollTop += %d;
		return true;
	})()`, jsString(t.body), px), &ok)
}

func (t *chromeTable) ScrollHeight() (int64, error) {
	var h int64
	err := t.eval(fmt.Sprintf(`(() => {
		const body = document.querySelector(%s);
		return body ? body.scrollHeight : -1;
	})()`, jsString(t.body)), &h)
	return h, err
}

func (t *chromeTable) ScrollToBottom() error {
	var ok bool
	return t.eval(fmt.Sprintf(`(() => {
		const body = document.querySelector(%s);
		if (!body) return false;
		body.scrollTop = body.scrollHeight;
		return true;
	})()`, jsString(t.body)), &ok)
}

// Next looks at the first visible button labelled with the next-page text.
func (t *chromeTable) Next() (NextState, error) {
	var state string
	err := t.eval(fmt.Sprintf(`(() => {
		const btn = %s;
		if (!btn) return %s;
		if (btn.disabled || btn.getAttribute("aria-disabled") === "true") return %s;
		return %s;
	})()`, firstVisibleJS(buttonXPath(t.next)), jsString(string(NextAbsent)), jsString(string(NextDisabled)), jsString(string(NextEnabled))), &state)
	return NextState(state), err
}

func (t *chromeTable) ClickNext() error {
	return t.s.clickFirstVisible(buttonXPath(t.next), t.s.actionTimeout)
}

func (t *chromeTable) WaitForRows() error {
	return t.s.runFor(t.s.cfg.RowWaitTimeout, chromedp.WaitVisible(t.body+" tr", chromedp.ByQuery))
}

func (t *chromeTable) firstRowJS() string {
	return fmt.Sprintf(`document.querySelector(%s)`, jsString(t.body+" tr"))
}

func (t *chromeTable) Fingerprint() (string, error) {
	var html string
	err := t.eval(fmt.Sprintf(`(() => {
		const row = %s;
		return row ? row.outerHTML : "";
	})()`, t.firstRowJS()), &html)
	return html, err
}

func (t *chromeTable) WaitForPageChange(before string) error {
	return t.s.waitTrue(t.s.cfg.RowWaitTimeout, fmt.Sprintf(`(() => {
		const row = %s;
		return !!row && row.outerHTML !== %s;
	})()`, t.firstRowJS(), jsString(before)))
}
