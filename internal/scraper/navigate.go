package scraper

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/chromedp/chromedp"
)

// NavigateToProducts clicks through the configured menu path and waits for
// the product table to become visible.
func (s *Scraper) NavigateToProducts() error {
	sel := s.cfg.Selectors

	for _, item := range sel.MenuPath {
		slog.Debug("clicking menu item", "item", item)
		if err := s.clickFirstVisible(textXPath(item), s.cfg.NavigationTimeout); err != nil {
			return &NavigationError{Step: item, Err: err}
		}
		// pacing only; the next click waits for its own element
		if err := s.pause(s.cfg.SettleDelay); err != nil {
			return err
		}
	}

	if err := s.runFor(s.cfg.NavigationTimeout,
		chromedp.WaitVisible(sel.Table, chromedp.ByQuery),
	); err != nil {
		return &NavigationError{Step: "product table", Err: err}
	}

	slog.Info("reached product table")
	return nil
}

// Screenshot writes a PNG of the current viewport to path.
func (s *Scraper) Screenshot(path string) error {
	var buf []byte
	if err := s.runWithTimeout(chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	slog.Info("screenshot saved", "path", path)
	return nil
}
