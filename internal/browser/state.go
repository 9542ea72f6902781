package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

// StorageState is the serialized login state of a browser: every cookie plus
// the localStorage of the page's origin. The layout matches Playwright's
// storage-state files, so either tool can reuse the other's session.
type StorageState struct {
	Cookies []Cookie `json:"cookies"`
	Origins []Origin `json:"origins"`
}

type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"` // unix seconds, -1 for session cookies
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

type Origin struct {
	Origin       string      `json:"origin"`
	LocalStorage []NameValue `json:"localStorage"`
}

type NameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func ParseState(data []byte) (StorageState, error) {
	var st StorageState
	if err := json.Unmarshal(data, &st); err != nil {
		return StorageState{}, fmt.Errorf("parse storage state: %w", err)
	}
	return st, nil
}

func fromCookies(cookies []*network.Cookie) []Cookie {
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		expires := c.Expires
		if c.Session {
			expires = -1
		}
		out = append(out, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return out
}

func toCookieParams(cookies []Cookie) []*network.CookieParam {
	out := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.SameSite != "" {
			p.SameSite = network.CookieSameSite(c.SameSite)
		}
		if c.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &exp
		}
		out = append(out, p)
	}
	return out
}

const captureOriginJS = `({
	origin: location.origin,
	localStorage: Object.keys(localStorage).map(k => ({name: k, value: localStorage.getItem(k)})),
})`

// CaptureState serializes the cookies of the whole browser and the
// localStorage of the current page.
func CaptureState(ctx context.Context) ([]byte, error) {
	var st StorageState
	var origin Origin

	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			cookies, err := storage.GetCookies().Do(ctx)
			if err != nil {
				return err
			}
			st.Cookies = fromCookies(cookies)
			return nil
		}),
		chromedp.Evaluate(captureOriginJS, &origin),
	)
	if err != nil {
		return nil, fmt.Errorf("capture storage state: %w", err)
	}

	st.Origins = []Origin{}
	if origin.Origin != "" && origin.Origin != "null" {
		st.Origins = append(st.Origins, origin)
	}
	return json.MarshalIndent(st, "", "  ")
}

// RestoreCookies loads the saved cookies into the browser. Call it before
// navigating so the first request already carries them.
func RestoreCookies(ctx context.Context, st StorageState) error {
	if len(st.Cookies) == 0 {
		return nil
	}
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return storage.SetCookies(toCookieParams(st.Cookies)).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("restore cookies: %w", err)
	}
	return nil
}

// RestoreLocalStorage writes the saved localStorage for the current page's
// origin and reloads the page when anything was written.
func RestoreLocalStorage(ctx context.Context, st StorageState) error {
	var current string
	if err := chromedp.Run(ctx, chromedp.Evaluate(`location.origin`, &current)); err != nil {
		return fmt.Errorf("restore local storage: %w", err)
	}

	for _, o := range st.Origins {
		if o.Origin != current || len(o.LocalStorage) == 0 {
			continue
		}
		items, err := json.Marshal(o.LocalStorage)
		if err != nil {
			return err
		}
		script := fmt.Sprintf(`(items => { for (const i of items) localStorage.setItem(i.name, i.value); return items.length })(%s)`, items)
		var n int
		if err := chromedp.Run(ctx,
			chromedp.Evaluate(script, &n),
			chromedp.Reload(),
		); err != nil {
			return fmt.Errorf("restore local storage: %w", err)
		}
	}
	return nil
}
