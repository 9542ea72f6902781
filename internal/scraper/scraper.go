package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"inventory-export/internal/config"

	"github.com/chromedp/chromedp"
)

// Scraper drives one browser tab through login, navigation and the product
// table. ctx must be a chromedp context.
type Scraper struct {
	ctx           context.Context
	cfg           *config.Config
	actionTimeout time.Duration
}

func New(ctx context.Context, cfg *config.Config) *Scraper {
	return &Scraper{
		ctx:           ctx,
		cfg:           cfg,
		actionTimeout: cfg.ActionTimeout,
	}
}

// runWithTimeout runs actions bounded by the action timeout
func (s *Scraper) runWithTimeout(actions ...chromedp.Action) error {
	return s.runFor(s.actionTimeout, actions...)
}

func (s *Scraper) runFor(timeout time.Duration, actions ...chromedp.Action) error {
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("parent context canceled: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	err := chromedp.Run(timeoutCtx, actions...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && s.ctx.Err() == nil {
			return fmt.Errorf("action timed out after %v: %w", timeout, err)
		}
		return err
	}
	return nil
}

// pause waits for d unless the run is canceled first.
func (s *Scraper) pause(d time.Duration) error {
	return sleep(s.ctx, d)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// textXPath matches body elements whose own text is exactly text, ignoring
// surrounding whitespace.
func textXPath(text string) string {
	return fmt.Sprintf(`//body//*[not(self::script) and not(self::style)][normalize-space(text())=%s]`, xpathLiteral(text))
}

// buttonXPath matches buttons whose text contains text.
func buttonXPath(text string) string {
	return fmt.Sprintf(`//body//button[contains(normalize-space(.), %s)]`, xpathLiteral(text))
}

// firstVisibleJS evaluates to the first element matching xpath that is
// rendered with a non-empty box, or null. Hidden duplicates are skipped
// instead of blocking the wait.
func firstVisibleJS(xpath string) string {
	return fmt.Sprintf(`(() => {
		const res = document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
		for (let i = 0; i < res.snapshotLength; i++) {
			const el = res.snapshotItem(i);
			const box = el.getBoundingClientRect();
			const style = getComputedStyle(el);
			if (box.width > 0 && box.height > 0 && style.visibility !== "hidden" && style.display !== "none") return el;
		}
		return null;
	})()`, jsString(xpath))
}

const pollInterval = 100 * time.Millisecond

// waitValue evaluates script every pollInterval until it yields a non-empty
// string or timeout passes. Evaluation errors are retried: the page may be
// navigating, which drops the execution context.
func (s *Scraper) waitValue(timeout time.Duration, script string) (string, error) {
	if err := s.ctx.Err(); err != nil {
		return "", fmt.Errorf("parent context canceled: %w", err)
	}
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	var lastErr error
	for {
		var v string
		err := chromedp.Run(ctx, chromedp.Evaluate(script, &v))
		if err == nil && v != "" {
			return v, nil
		}
		if err != nil {
			lastErr = err
		}
		if err := sleep(ctx, pollInterval); err != nil {
			if s.ctx.Err() != nil {
				return "", fmt.Errorf("parent context canceled: %w", s.ctx.Err())
			}
			if lastErr != nil {
				return "", fmt.Errorf("action timed out after %v: %w (last error: %v)", timeout, context.DeadlineExceeded, lastErr)
			}
			return "", fmt.Errorf("action timed out after %v: %w", timeout, context.DeadlineExceeded)
		}
	}
}

// waitTrue blocks until the boolean script evaluates to true.
func (s *Scraper) waitTrue(timeout time.Duration, script string) error {
	_, err := s.waitValue(timeout, fmt.Sprintf(`(%s) ? "true" : ""`, script))
	return err
}

// waitFirstVisible blocks until some element matching xpath is visible.
func (s *Scraper) waitFirstVisible(xpath string, timeout time.Duration) error {
	return s.waitTrue(timeout, fmt.Sprintf(`%s !== null`, firstVisibleJS(xpath)))
}

// clickFirstVisible waits for the first visible element matching xpath and
// clicks it.
func (s *Scraper) clickFirstVisible(xpath string, timeout time.Duration) error {
	return s.waitTrue(timeout, fmt.Sprintf(`(() => {
		const el = %s;
		if (!el) return false;
		el.scrollIntoView({block: "center"});
		el.click();
		return true;
	})()`, firstVisibleJS(xpath)))
}

// clearInputJS empties the input matched by the CSS selector so typing
// replaces any autofilled value.
func clearInputJS(selector string) string {
	return fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		el.focus();
		el.value = "";
		el.dispatchEvent(new Event("input", {bubbles: true}));
		return true;
	})()`, jsString(selector))
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	hasDouble := false
	hasSingle := false
	for _, r := range s {
		switch r {
		case '"':
			hasDouble = true
		case '\'':
			hasSingle = true
		}
	}
	switch {
	case !hasDouble:
		return `"` + s + `"`
	case !hasSingle:
		return `'` + s + `'`
	}

	parts := []string{}
	start := 0
	for i, r := range s {
		if r == '"' {
			if i > start {
				parts = append(parts, `"`+s[start:i]+`"`)
			}
			parts = append(parts, `'"'`)
			start = i + 1
		}
	}
	if start < len(s) {
		parts = append(parts, `"`+s[start:]+`"`)
	}
	out := "concat("
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out + ")"
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
