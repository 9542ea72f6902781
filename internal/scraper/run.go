package scraper

import (
	"context"
	"errors"
	"log/slog"

	"inventory-export/internal/browser"
	"inventory-export/internal/config"
	"inventory-export/internal/session"
	"inventory-export/internal/store"
)

type Status int

const (
	Completed Status = iota
	// Partial means the run failed after saving at least one new record.
	Partial
	Failed
)

func (s Status) String() string {
	switch s {
	case Completed:
		return "completed"
	case Partial:
		return "partial"
	default:
		return "failed"
	}
}

// ExitCode is the process exit status for s.
func (s Status) ExitCode() int {
	switch s {
	case Completed:
		return 0
	case Partial:
		return 3
	default:
		return 1
	}
}

// Report is the outcome of Run.
type Report struct {
	Status Status
	Stats  Stats
	Total  int
	Err    error
}

// Run performs one full scrape: open the products file, start the browser,
// log in or reuse the session, reach the product table and walk it. The
// products file is flushed one last time on every path that loaded it, and
// the browser is always closed.
func Run(ctx context.Context, cfg *config.Config) Report {
	st, err := store.Open(cfg.ProductsFile, store.CorruptPolicy(cfg.OnCorrupt))
	if err != nil {
		return Report{Status: Failed, Err: err}
	}

	stats, runErr := scrape(ctx, cfg, st)

	flushErr := st.Flush(cfg.ProductsFile)
	if flushErr == nil {
		stats.Flushes++
	}

	saved := stats.Added > 0 && stats.Flushes > 0
	return finish(stats, st.Len(), saved, errors.Join(runErr, flushErr))
}

func scrape(ctx context.Context, cfg *config.Config, st *store.Store) (Stats, error) {
	slog.Info("initializing browser", "headless", cfg.Headless)
	bctx, cancel, err := browser.NewChrome(ctx, cfg)
	if err != nil {
		return Stats{}, err
	}
	defer cancel()

	s := New(bctx, cfg)
	if err := s.EnsureSession(session.NewStore(cfg.SessionFile), cfg.Email, cfg.Password); err != nil {
		return Stats{}, err
	}
	if err := s.NavigateToProducts(); err != nil {
		return Stats{}, err
	}
	if cfg.ScreenshotFile != "" {
		if err := s.Screenshot(cfg.ScreenshotFile); err != nil {
			slog.Warn("could not save screenshot", "err", err)
		}
	}

	table := s.Table()
	if err := table.WaitForRows(); err != nil {
		return Stats{}, &NavigationError{Step: "first row", Err: err}
	}

	loop := &Loop{
		Table:             table,
		Store:             st,
		Flush:             func() error { return st.Flush(cfg.ProductsFile) },
		BatchSize:         cfg.BatchSize,
		MaxAttempts:       cfg.MaxAttempts,
		NudgeOffset:       cfg.NudgeOffset,
		MaxScrolls:        cfg.MaxScrolls,
		ScrollPause:       cfg.ScrollPause,
		SettleDelay:       cfg.SettleDelay,
		StopOnConvergence: cfg.Pagination == config.PaginateUntilConverged,
	}
	return loop.Run(bctx)
}

// finish classifies a run. saved reports whether any new record made it to
// disk, which is what separates Partial from Failed.
func finish(stats Stats, total int, saved bool, err error) Report {
	r := Report{Stats: stats, Total: total, Err: err}
	switch {
	case err == nil:
		r.Status = Completed
	case saved:
		r.Status = Partial
	default:
		r.Status = Failed
	}
	return r
}
