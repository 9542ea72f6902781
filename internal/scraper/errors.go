package scraper

import (
	"fmt"
)

// AuthenticationError means the login form could not be driven to a
// logged-in page. It is fatal to the run.
type AuthenticationError struct {
	Step string
	Err  error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("login failed at %s: %v", e.Step, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// NavigationError means a menu item, the product table or the next page did
// not appear in time. It is fatal to the run.
type NavigationError struct {
	Step string
	Err  error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation failed at %q: %v", e.Step, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// MalformedRowError is a row that did not yield a full record. The scrape
// loop retries it and eventually skips it.
type MalformedRowError struct {
	Err error
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed row: %v", e.Err)
}

func (e *MalformedRowError) Unwrap() error {
	return e.Err
}
