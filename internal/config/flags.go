package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Flags holds command-line overrides. Only flags the user actually set are
// applied, so defaults never clobber values from the file or environment.
type Flags struct {
	fs *pflag.FlagSet

	url            string
	email          string
	sessionFile    string
	productsFile   string
	screenshotFile string
	headless       bool
	chromePath     string
	debug          bool
	logFormat      string
	pagination     string
	onCorrupt      string
	timeoutMinutes int
	batchSize      int
	maxScrolls     int
}

// RegisterFlags defines the scraper flags on fs, using cfg for the help text
// defaults.
func RegisterFlags(fs *pflag.FlagSet, cfg *Config) *Flags {
	f := &Flags{fs: fs}

	fs.StringVar(&f.url, "url", cfg.URL, "Application URL to scrape")
	fs.StringVar(&f.email, "email", cfg.Email, "Login email (prefer SCRAPER_EMAIL)")
	fs.StringVar(&f.sessionFile, "session", cfg.SessionFile, "Where browser session state is saved")
	fs.StringVar(&f.productsFile, "out", cfg.ProductsFile, "Products JSON file, read on start and written incrementally")
	fs.StringVar(&f.screenshotFile, "screenshot", cfg.ScreenshotFile, "PNG written after reaching the product table (empty disables)")
	fs.BoolVar(&f.headless, "headless", cfg.Headless, "Run in headless mode")
	fs.StringVar(&f.chromePath, "chrome", cfg.ChromePath, "Chrome or headless-shell binary (default: search PATH)")
	fs.BoolVar(&f.debug, "debug", cfg.Debug, "Enable debug logging and per-row progress")
	fs.StringVar(&f.logFormat, "log-format", cfg.LogFormat, "Log format: text or json")
	fs.StringVar(&f.pagination, "pagination", string(cfg.Pagination), "converge: stop after a page with no new sku; all-pages: follow Next to the end")
	fs.StringVar(&f.onCorrupt, "on-corrupt", cfg.OnCorrupt, "What to do with an unreadable products file: fail or reset")
	fs.IntVar(&f.timeoutMinutes, "timeout", int(cfg.GlobalTimeout.Minutes()), "Global timeout in minutes")
	fs.IntVar(&f.batchSize, "batch", cfg.BatchSize, "Flush the products file every N new records")
	fs.IntVar(&f.maxScrolls, "max-scrolls", cfg.MaxScrolls, "Upper bound on lazy-load scrolls per page")

	return f
}

// Apply copies every flag that was set on the command line onto cfg.
func (f *Flags) Apply(cfg *Config) {
	changed := f.fs.Changed

	if changed("url") {
		cfg.URL = f.url
	}
	if changed("email") {
		cfg.Email = f.email
	}
	if changed("session") {
		cfg.SessionFile = f.sessionFile
	}
	if changed("out") {
		cfg.ProductsFile = f.productsFile
	}
	if changed("screenshot") {
		cfg.ScreenshotFile = f.screenshotFile
	}
	if changed("headless") {
		cfg.Headless = f.headless
	}
	if changed("chrome") {
		cfg.ChromePath = f.chromePath
	}
	if changed("debug") {
		cfg.Debug = f.debug
	}
	if changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if changed("pagination") {
		cfg.Pagination = PaginationMode(f.pagination)
	}
	if changed("on-corrupt") {
		cfg.OnCorrupt = f.onCorrupt
	}
	if changed("timeout") {
		cfg.GlobalTimeout = time.Duration(f.timeoutMinutes) * time.Minute
	}
	if changed("batch") {
		cfg.BatchSize = f.batchSize
	}
	if changed("max-scrolls") {
		cfg.MaxScrolls = f.maxScrolls
	}
}
