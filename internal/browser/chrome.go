package browser

import (
	"context"
	"fmt"
	"log/slog"

	"inventory-export/internal/config"

	"github.com/chromedp/chromedp"
)

// NewChrome starts a browser and returns a tab context bounded by the
// global timeout. The returned cancel func shuts the browser down and must
// be called on every exit path.
func NewChrome(parent context.Context, cfg *config.Config) (context.Context, context.CancelFunc, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,

		// Disable updates and popups
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-component-update", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-default-apps", true),

		// Basic settings
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", cfg.Headless),
		chromedp.Flag("window-size", "1920,1080"),

		// Stability flags
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	)
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)

	ctxOpts := []chromedp.ContextOption{}
	if cfg.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithLogf(func(format string, args ...any) {
			slog.Debug(fmt.Sprintf(format, args...), "source", "chrome")
		}))
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	timeoutCtx, timeoutCancel := context.WithTimeout(browserCtx, cfg.GlobalTimeout)

	cancelFunc := func() {
		slog.Debug("closing browser")
		timeoutCancel()
		browserCancel()
		allocCancel()
	}

	// The first Run launches the browser process.
	if err := chromedp.Run(timeoutCtx); err != nil {
		cancelFunc()
		return nil, nil, fmt.Errorf("start browser: %w", err)
	}

	return timeoutCtx, cancelFunc, nil
}
