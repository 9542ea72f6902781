package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"inventory-export/internal/product"
	"inventory-export/internal/store"
)

// Stats counts what a scrape loop did.
type Stats struct {
	Pages     int
	Rows      int // rows read successfully, new or not
	Added     int
	Skipped   int
	Flushes   int
	ScrollCap int // pages that used up MaxScrolls while still growing
	Converged bool
}

// Loop walks every page of the product table, adding unseen records to
// Store and checkpointing every BatchSize additions.
type Loop struct {
	Table Table
	Store *store.Store
	// Flush persists Store; a failure stops the loop.
	Flush func() error

	BatchSize   int
	MaxAttempts int
	NudgeOffset int
	MaxScrolls  int
	ScrollPause time.Duration
	SettleDelay time.Duration

	// StopOnConvergence ends the run after a page pass that added nothing,
	// even when a next page exists.
	StopOnConvergence bool

	stats Stats
	page  int
}

func (l *Loop) Run(ctx context.Context) (Stats, error) {
	l.stats = Stats{}
	l.page = 1

	for {
		l.stats.Pages = l.page
		anyNew, err := l.readPage(ctx)
		if err != nil {
			return l.stats, err
		}
		slog.Info("page done", "page", l.page, "total", l.Store.Len(), "added", l.stats.Added, "skipped", l.stats.Skipped)

		if l.StopOnConvergence && !anyNew {
			slog.Info("no new products on this page, stopping", "page", l.page)
			l.stats.Converged = true
			return l.stats, nil
		}

		next, err := l.Table.Next()
		if err != nil {
			return l.stats, fmt.Errorf("find next page control: %w", err)
		}
		if next != NextEnabled {
			slog.Info("last page reached", "page", l.page, "next", string(next))
			return l.stats, nil
		}

		before, err := l.Table.Fingerprint()
		if err != nil {
			return l.stats, fmt.Errorf("read current page: %w", err)
		}
		if err := l.Table.ClickNext(); err != nil {
			return l.stats, &NavigationError{Step: "next page", Err: err}
		}
		// pacing only; the wait below is what proves the page changed
		if err := sleep(ctx, l.SettleDelay); err != nil {
			return l.stats, err
		}
		if err := l.Table.WaitForPageChange(before); err != nil {
			return l.stats, &NavigationError{Step: "next page", Err: err}
		}
		l.page++
	}
}

// readPage reads every rendered row, then scrolls for lazily loaded rows
// and reads those too, until scrolling reveals nothing more or the page has
// used MaxScrolls scrolls.
func (l *Loop) readPage(ctx context.Context) (bool, error) {
	anyNew := false
	processed := 0
	scrolls := 0
	capped := false

	for {
		total, err := l.Table.RowCount()
		if err != nil {
			return anyNew, fmt.Errorf("count rows: %w", err)
		}

		for i := processed; i < total; i++ {
			if err := ctx.Err(); err != nil {
				return anyNew, err
			}
			rec, ok, err := l.readRow(ctx, i)
			if err != nil {
				return anyNew, err
			}
			if !ok {
				continue
			}
			added, err := l.add(rec)
			if err != nil {
				return anyNew, err
			}
			anyNew = anyNew || added
			slog.Debug("progress", "page", l.page, "row", fmt.Sprintf("%d/%d", i+1, total), "total", l.Store.Len())
		}
		if total > processed {
			processed = total
		}

		if capped {
			l.scrollCapped(processed)
			return anyNew, nil
		}
		capped, err = l.loadMore(ctx, &scrolls)
		if err != nil {
			return anyNew, err
		}
		after, err := l.Table.RowCount()
		if err != nil {
			return anyNew, fmt.Errorf("count rows: %w", err)
		}
		if after <= processed {
			if capped {
				l.scrollCapped(processed)
			}
			return anyNew, nil
		}
	}
}

func (l *Loop) scrollCapped(rows int) {
	l.stats.ScrollCap++
	slog.Warn("scroll limit reached, moving on with the rows loaded so far", "page", l.page, "scrolls", l.MaxScrolls, "rows", rows)
}

// readRow tries row i up to MaxAttempts times, nudging the table between
// attempts. ok is false when the row was skipped.
func (l *Loop) readRow(ctx context.Context, i int) (rec product.Record, ok bool, err error) {
	var lastErr error
	for attempt := 1; attempt <= l.MaxAttempts; attempt++ {
		html, err := l.Table.RowHTML(i)
		if err == nil {
			rec, err = ExtractRow(html)
			if err == nil {
				l.stats.Rows++
				return rec, true, nil
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return rec, false, ctxErr
		}
		lastErr = err
		slog.Debug("row not ready", "page", l.page, "row", i+1, "attempt", attempt, "err", err)

		if attempt == l.MaxAttempts {
			break
		}
		if err := sleep(ctx, l.ScrollPause); err != nil {
			return rec, false, err
		}
		if err := l.Table.Nudge(l.NudgeOffset); err != nil {
			slog.Debug("nudge failed", "err", err)
		}
	}

	l.stats.Skipped++
	slog.Warn("skipped row", "page", l.page, "row", i+1, "attempts", l.MaxAttempts, "err", lastErr)
	return product.Record{}, false, nil
}

func (l *Loop) add(rec product.Record) (bool, error) {
	if !l.Store.Add(rec) {
		return false, nil
	}
	l.stats.Added++
	if l.Store.Len()%l.BatchSize == 0 {
		if err := l.checkpoint(); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (l *Loop) checkpoint() error {
	if err := l.Flush(); err != nil {
		return err
	}
	l.stats.Flushes++
	return nil
}

// loadMore scrolls the table to the bottom until its scroll height stops
// changing. scrolls is the page's running count; capped reports that it
// reached MaxScrolls while the table was still growing.
func (l *Loop) loadMore(ctx context.Context, scrolls *int) (capped bool, err error) {
	prev := int64(-1)
	for {
		height, err := l.Table.ScrollHeight()
		if err != nil {
			return false, fmt.Errorf("read scroll height: %w", err)
		}
		if height == prev {
			return false, nil
		}
		if *scrolls >= l.MaxScrolls {
			return true, nil
		}
		prev = height

		if err := l.Table.ScrollToBottom(); err != nil {
			return false, fmt.Errorf("scroll table: %w", err)
		}
		*scrolls++
		if err := sleep(ctx, l.ScrollPause); err != nil {
			return false, err
		}
	}
}
