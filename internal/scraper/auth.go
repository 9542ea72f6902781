package scraper

import (
	"errors"
	"fmt"
	"log/slog"

	"inventory-export/internal/browser"
	"inventory-export/internal/session"

	"github.com/chromedp/chromedp"
)

var errNoCredentials = errors.New("no email/password configured")

// Authenticate fills and submits the login form on the current page, then
// waits for the logged-in marker. It makes a single attempt.
func (s *Scraper) Authenticate(email, password string) error {
	if email == "" || password == "" {
		return &AuthenticationError{Step: "credentials", Err: errNoCredentials}
	}
	sel := s.cfg.Selectors
	timeout := s.cfg.LoginTimeout

	var cleared bool
	steps := []struct {
		name string
		run  func() error
	}{
		{"email field", func() error {
			return s.runFor(timeout,
				chromedp.WaitVisible(sel.EmailInput, chromedp.ByQuery),
				chromedp.Evaluate(clearInputJS(sel.EmailInput), &cleared),
				chromedp.SendKeys(sel.EmailInput, email, chromedp.ByQuery),
			)
		}},
		{"password field", func() error {
			return s.runFor(timeout,
				chromedp.WaitVisible(sel.PasswordInput, chromedp.ByQuery),
				chromedp.Evaluate(clearInputJS(sel.PasswordInput), &cleared),
				chromedp.SendKeys(sel.PasswordInput, password, chromedp.ByQuery),
			)
		}},
		{"login button", func() error {
			return s.clickFirstVisible(buttonXPath(sel.LoginButton), timeout)
		}},
		{"logged-in marker", func() error {
			return s.waitFirstVisible(textXPath(sel.LoggedInText), timeout)
		}},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			return &AuthenticationError{Step: step.name, Err: err}
		}
	}

	slog.Info("login successful")
	return nil
}

type pageState string

const (
	pageLoggedIn pageState = "logged-in"
	pageLogin    pageState = "login"
)

// detectPage waits until the page shows either the login form or the
// logged-in marker and reports which one came first.
func (s *Scraper) detectPage() (pageState, error) {
	sel := s.cfg.Selectors
	script := fmt.Sprintf(`(() => {
		if (%s) return %s;
		if (document.querySelector(%s)) return %s;
		return "";
	})()`,
		firstVisibleJS(textXPath(sel.LoggedInText)), jsString(string(pageLoggedIn)),
		jsString(sel.EmailInput), jsString(string(pageLogin)),
	)

	state, err := s.waitValue(s.cfg.LoginTimeout, script)
	if err != nil {
		return "", err
	}
	return pageState(state), nil
}

// EnsureSession opens the application with the saved session when there is
// one. When no session is saved, or the saved one no longer gets past the
// login page, it logs in and saves the fresh session.
func (s *Scraper) EnsureSession(store session.Store, email, password string) error {
	raw, haveSession, err := store.Load()
	if err != nil {
		return err
	}

	var state browser.StorageState
	if haveSession {
		state, err = browser.ParseState(raw)
		if err != nil {
			slog.Warn("saved session is unreadable, logging in", "path", store.Path, "err", err)
			haveSession = false
		}
	}

	if haveSession {
		slog.Info("using existing session", "path", store.Path)
		if err := browser.RestoreCookies(s.ctx, state); err != nil {
			return err
		}
	} else {
		slog.Info("no session found, logging in")
	}

	if err := s.runFor(s.cfg.NavigationTimeout,
		chromedp.Navigate(s.cfg.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return &NavigationError{Step: s.cfg.URL, Err: err}
	}

	if haveSession {
		if err := browser.RestoreLocalStorage(s.ctx, state); err != nil {
			return err
		}
	}

	page, err := s.detectPage()
	if err != nil {
		return &AuthenticationError{Step: "detect login page", Err: err}
	}
	if page == pageLoggedIn {
		return nil
	}

	if haveSession {
		slog.Warn("saved session was rejected, logging in again", "path", store.Path)
		if err := store.Remove(); err != nil {
			return err
		}
	}
	if err := s.Authenticate(email, password); err != nil {
		return err
	}

	data, err := browser.CaptureState(s.ctx)
	if err != nil {
		return err
	}
	return store.Save(data)
}
