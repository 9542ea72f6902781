package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

type PaginationMode string

const (
	// PaginateUntilConverged stops after a page pass that found no new sku.
	PaginateUntilConverged PaginationMode = "converge"
	// PaginateAllPages follows "Next" until it is absent or disabled.
	PaginateAllPages PaginationMode = "all-pages"
)

// Selectors locate the elements the scraper interacts with.
type Selectors struct {
	EmailInput    string   `json:"emailInput"`
	PasswordInput string   `json:"passwordInput"`
	LoginButton   string   `json:"loginButton"`  // visible text of the login control
	LoggedInText  string   `json:"loggedInText"` // visible text that only exists after login
	MenuPath      []string `json:"menuPath"`
	Table         string   `json:"table"`
	TableBody     string   `json:"tableBody"`
	NextButton    string   `json:"nextButton"` // visible text of the pagination control
}

type Config struct {
	URL      string
	Email    string
	Password string

	SessionFile    string
	ProductsFile   string
	ScreenshotFile string

	Headless   bool
	ChromePath string // empty lets chromedp find a browser
	Debug      bool
	LogFormat  string

	GlobalTimeout     time.Duration // Overall timeout
	ActionTimeout     time.Duration // Timeout for individual actions
	LoginTimeout      time.Duration // Wait for the post-login marker
	NavigationTimeout time.Duration // Wait for each menu item and the table
	RowWaitTimeout    time.Duration // Wait for the first row after paging

	SettleDelay time.Duration // Pacing after each click, never a substitute for a wait
	ScrollPause time.Duration

	BatchSize   int
	MaxAttempts int
	NudgeOffset int
	MaxScrolls  int

	Pagination PaginationMode
	OnCorrupt  string // "fail" or "reset"

	Selectors Selectors
}

func Default() *Config {
	return &Config{
		SessionFile:    "session.json",
		ProductsFile:   "products.json",
		ScreenshotFile: "after_navigation.png",

		Headless:  true,
		LogFormat: "text",

		GlobalTimeout:     30 * time.Minute,
		ActionTimeout:     time.Minute,
		LoginTimeout:      15 * time.Second,
		NavigationTimeout: 15 * time.Second,
		RowWaitTimeout:    10 * time.Second,

		SettleDelay: 250 * time.Millisecond,
		ScrollPause: 300 * time.Millisecond,

		BatchSize:   100,
		MaxAttempts: 3,
		NudgeOffset: 50,
		MaxScrolls:  200,

		Pagination: PaginateUntilConverged,
		OnCorrupt:  "fail",

		Selectors: Selectors{
			EmailInput:    "input[type='email']",
			PasswordInput: "input[type='password']",
			LoginButton:   "Login",
			LoggedInText:  "Menu",
			MenuPath:      []string{"Menu", "Data Management", "Inventory", "View All Products"},
			Table:         "table, div[role='table']",
			TableBody:     "table tbody",
			NextButton:    "Next",
		},
	}
}

// ApplyEnv overrides cfg with SCRAPER_* variables found through lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SCRAPER_URL":             &cfg.URL,
		"SCRAPER_EMAIL":           &cfg.Email,
		"SCRAPER_PASSWORD":        &cfg.Password,
		"SCRAPER_SESSION_FILE":    &cfg.SessionFile,
		"SCRAPER_PRODUCTS_FILE":   &cfg.ProductsFile,
		"SCRAPER_SCREENSHOT_FILE": &cfg.ScreenshotFile,
		"SCRAPER_LOG_FORMAT":      &cfg.LogFormat,
		"SCRAPER_CHROME_PATH":     &cfg.ChromePath,
		"SCRAPER_ON_CORRUPT":      &cfg.OnCorrupt,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("SCRAPER_PAGINATION"); ok && v != "" {
		cfg.Pagination = PaginationMode(v)
	}
	if v, ok := lookup("SCRAPER_HEADLESS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SCRAPER_HEADLESS: %w", err)
		}
		cfg.Headless = b
	}
	if v, ok := lookup("SCRAPER_DEBUG"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SCRAPER_DEBUG: %w", err)
		}
		cfg.Debug = b
	}
	if v, ok := lookup("SCRAPER_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SCRAPER_TIMEOUT: %w", err)
		}
		cfg.GlobalTimeout = d
	}
	return nil
}

// Validate reports the first problem that would make a run pointless.
// Credentials are only required when there is no saved session to reuse.
func (c *Config) Validate(haveSession bool) error {
	if c.URL == "" {
		return errors.New("app url is required")
	}
	if !haveSession && (c.Email == "" || c.Password == "") {
		return errors.New("email and password are required when no saved session exists")
	}
	if c.ProductsFile == "" {
		return errors.New("products file is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.MaxScrolls <= 0 {
		return fmt.Errorf("max scrolls must be positive, got %d", c.MaxScrolls)
	}
	switch c.Pagination {
	case PaginateUntilConverged, PaginateAllPages:
	default:
		return fmt.Errorf("unknown pagination mode %q", c.Pagination)
	}
	switch c.OnCorrupt {
	case "fail", "reset":
	default:
		return fmt.Errorf("unknown corrupt-file policy %q", c.OnCorrupt)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if len(c.Selectors.MenuPath) == 0 {
		return errors.New("menu path is empty")
	}
	return nil
}
