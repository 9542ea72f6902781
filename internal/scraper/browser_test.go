package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"inventory-export/internal/browser"
	"inventory-export/internal/config"
	"inventory-export/internal/session"
	"inventory-export/internal/store"

	"github.com/stretchr/testify/require"
)

// chromePath finds a browser for the end-to-end tests, skipping them when
// none is installed.
func chromePath(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests skipped in short mode")
	}
	if p := os.Getenv("CHROME_PATH"); p != "" {
		return p
	}
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no chrome binary found, set CHROME_PATH to run browser tests")
	return ""
}

const (
	appEmail    = "user@example.test"
	appPassword = "secret"
)

// The email field is prefilled the way browser autofill leaves it.
const loginPage = `<!doctype html>
<html><head><title>Sign in</title></head>
<body>
<form onsubmit="return false">
	<input type="email" value="stale@autofill">
	<input type="password">
	<button type="button" id="go">Login</button>
</form>
<script>
document.getElementById("go").addEventListener("click", () => {
	const email = document.querySelector("input[type='email']").value;
	const password = document.querySelector("input[type='password']").value;
	location.href = "/login?email=" + encodeURIComponent(email) + "&password=" + encodeURIComponent(password);
});
</script>
</body></html>`

// Every label the scraper looks for also exists hidden, ahead of the real
// one. Menu levels and the next page appear after a delay.
const appPage = `<!doctype html>
<html><head><title>Inventory</title></head>
<body>
<div style="display:none"><span>Menu</span><span>Inventory</span><button>Next</button></div>
<nav>
	<button id="menu">Menu</button>
	<ul id="level1" hidden><li><a href="#" id="data">Data Management</a></li></ul>
	<ul id="level2" hidden><li><a href="#" id="inventory">Inventory</a></li></ul>
	<ul id="level3" hidden><li><a href="#" id="all">View All Products</a></li></ul>
</nav>
<div id="products" hidden>
	<table>
		<thead><tr><th>Item #</th><th>Cost</th><th>SKU</th><th>Details</th><th>Product</th><th>Dimensions</th><th>Weight (kg)</th><th>Type</th></tr></thead>
		<tbody></tbody>
	</table>
	<button id="next">Next</button>
</div>
<script>
const pages = __PAGES__;
let current = 0;
localStorage.setItem("lastView", "inventory");

function reveal(id) {
	setTimeout(() => { document.getElementById(id).hidden = false; }, 150);
}
function render(p) {
	current = p;
	document.querySelector("table tbody").innerHTML = pages[p]
		.map(r => "<tr>" + r.map(c => "<td>" + c + "</td>").join("") + "</tr>")
		.join("");
	document.getElementById("next").disabled = p + 1 >= pages.length;
}
function link(id, next, then) {
	document.getElementById(id).addEventListener("click", e => {
		e.preventDefault();
		reveal(next);
		if (then) then();
	});
}
link("menu", "level1");
link("data", "level2");
link("inventory", "level3");
link("all", "products", () => render(0));
document.getElementById("next").addEventListener("click", () => {
	setTimeout(() => render(current + 1), 400);
});
</script>
</body></html>`

type testApp struct {
	*httptest.Server

	mu       sync.Mutex
	logins   int
	sessions map[string]bool
}

func newTestApp(t *testing.T, pages [][][]string) *testApp {
	t.Helper()
	data, err := json.Marshal(pages)
	require.NoError(t, err)
	app := strings.ReplaceAll(appPage, "__PAGES__", string(data))

	a := &testApp{sessions: map[string]bool{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("email") == appEmail && q.Get("password") == appPassword {
			a.mu.Lock()
			a.logins++
			sid := fmt.Sprintf("valid-%d", a.logins)
			a.sessions[sid] = true
			a.mu.Unlock()
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: sid, Path: "/", HttpOnly: true})
		}
		http.Redirect(w, r, "/", http.StatusFound)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		for _, c := range r.Cookies() {
			if c.Name == "sid" && a.valid(c.Value) {
				fmt.Fprint(w, app)
				return
			}
		}
		fmt.Fprint(w, loginPage)
	})

	a.Server = httptest.NewServer(mux)
	t.Cleanup(a.Close)
	return a
}

func (a *testApp) valid(sid string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessions[sid]
}

func (a *testApp) loginCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.logins
}

func productRow(item int, sku string) []string {
	return []string{fmt.Sprint(item), "9.99", sku, "details", "product " + sku, "1x1x1", "0.5", "misc"}
}

func testPages() [][][]string {
	return [][][]string{
		{productRow(1, "A1"), productRow(2, "A2"), productRow(3, "A3")},
		{productRow(4, "B1"), productRow(5, "B2")},
	}
}

func browserConfig(t *testing.T, app *testApp) *config.Config {
	cfg := config.Default()
	cfg.URL = app.URL + "/"
	cfg.ChromePath = chromePath(t)
	cfg.Email = appEmail
	cfg.Password = appPassword

	dir := t.TempDir()
	cfg.SessionFile = filepath.Join(dir, "session.json")
	cfg.ProductsFile = filepath.Join(dir, "products.json")
	cfg.ScreenshotFile = ""

	cfg.GlobalTimeout = time.Minute
	cfg.ActionTimeout = 5 * time.Second
	cfg.LoginTimeout = 5 * time.Second
	cfg.NavigationTimeout = 5 * time.Second
	cfg.RowWaitTimeout = 5 * time.Second
	cfg.SettleDelay = 50 * time.Millisecond
	cfg.ScrollPause = 10 * time.Millisecond
	cfg.MaxScrolls = 5
	return cfg
}

func newBrowserScraper(t *testing.T, cfg *config.Config) *Scraper {
	t.Helper()
	ctx, cancel, err := browser.NewChrome(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(cancel)
	return New(ctx, cfg)
}

func loadSession(t *testing.T, path string) browser.StorageState {
	t.Helper()
	raw, ok, err := session.NewStore(path).Load()
	require.NoError(t, err)
	require.True(t, ok)
	st, err := browser.ParseState(raw)
	require.NoError(t, err)
	return st
}

func TestBrowserLoginSavesSession(t *testing.T) {
	app := newTestApp(t, testPages())
	cfg := browserConfig(t, app)

	s := newBrowserScraper(t, cfg)
	require.NoError(t, s.EnsureSession(session.NewStore(cfg.SessionFile), cfg.Email, cfg.Password))
	require.Equal(t, 1, app.loginCount())

	st := loadSession(t, cfg.SessionFile)
	require.Len(t, st.Cookies, 1)
	require.Equal(t, "sid", st.Cookies[0].Name)
	require.True(t, st.Cookies[0].HTTPOnly)
	require.Len(t, st.Origins, 1)
	require.Equal(t, []browser.NameValue{{Name: "lastView", Value: "inventory"}}, st.Origins[0].LocalStorage)

	info, err := os.Stat(cfg.SessionFile)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestBrowserReusesSession(t *testing.T) {
	app := newTestApp(t, testPages())
	cfg := browserConfig(t, app)
	sessions := session.NewStore(cfg.SessionFile)

	first := newBrowserScraper(t, cfg)
	require.NoError(t, first.EnsureSession(sessions, cfg.Email, cfg.Password))

	// a fresh browser only has the saved file to go on
	second := newBrowserScraper(t, cfg)
	require.NoError(t, second.EnsureSession(sessions, "", ""))
	require.Equal(t, 1, app.loginCount())
}

func writeStaleSession(t *testing.T, path string) {
	t.Helper()
	data, err := json.Marshal(browser.StorageState{
		Cookies: []browser.Cookie{{Name: "sid", Value: "expired", Domain: "127.0.0.1", Path: "/", Expires: -1, HTTPOnly: true}},
		Origins: []browser.Origin{},
	})
	require.NoError(t, err)
	require.NoError(t, session.NewStore(path).Save(data))
}

func TestBrowserStaleSessionLogsInAgain(t *testing.T) {
	app := newTestApp(t, testPages())
	cfg := browserConfig(t, app)
	writeStaleSession(t, cfg.SessionFile)

	s := newBrowserScraper(t, cfg)
	require.NoError(t, s.EnsureSession(session.NewStore(cfg.SessionFile), cfg.Email, cfg.Password))
	require.Equal(t, 1, app.loginCount())

	st := loadSession(t, cfg.SessionFile)
	values := []string{}
	for _, c := range st.Cookies {
		values = append(values, c.Value)
	}
	require.Contains(t, values, "valid-1")
}

func TestBrowserWrongPasswordDropsSession(t *testing.T) {
	app := newTestApp(t, testPages())
	cfg := browserConfig(t, app)
	cfg.LoginTimeout = 2 * time.Second
	writeStaleSession(t, cfg.SessionFile)

	s := newBrowserScraper(t, cfg)
	err := s.EnsureSession(session.NewStore(cfg.SessionFile), cfg.Email, "wrong")
	var authErr *AuthenticationError
	require.True(t, errors.As(err, &authErr))
	require.Equal(t, "logged-in marker", authErr.Step)
	require.Equal(t, 0, app.loginCount())

	_, statErr := os.Stat(cfg.SessionFile)
	require.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestBrowserWalksDelayedPages(t *testing.T) {
	app := newTestApp(t, testPages())
	cfg := browserConfig(t, app)

	s := newBrowserScraper(t, cfg)
	require.NoError(t, s.EnsureSession(session.NewStore(cfg.SessionFile), cfg.Email, cfg.Password))
	require.NoError(t, s.NavigateToProducts())

	table := s.Table()
	require.NoError(t, table.WaitForRows())

	st := store.New()
	loop := &Loop{
		Table:             table,
		Store:             st,
		Flush:             func() error { return nil },
		BatchSize:         cfg.BatchSize,
		MaxAttempts:       cfg.MaxAttempts,
		NudgeOffset:       cfg.NudgeOffset,
		MaxScrolls:        cfg.MaxScrolls,
		ScrollPause:       cfg.ScrollPause,
		SettleDelay:       cfg.SettleDelay,
		StopOnConvergence: true,
	}
	stats, err := loop.Run(s.ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Pages)
	require.False(t, stats.Converged)
	require.Equal(t, []string{"A1", "A2", "A3", "B1", "B2"}, skus(st.Records()))
	require.Equal(t, "product B2", st.Records()[4].Product)
}

func TestBrowserMissingMenuItem(t *testing.T) {
	app := newTestApp(t, testPages())
	cfg := browserConfig(t, app)
	cfg.NavigationTimeout = time.Second
	cfg.Selectors.MenuPath = []string{"Menu", "Reports"}

	s := newBrowserScraper(t, cfg)
	require.NoError(t, s.EnsureSession(session.NewStore(cfg.SessionFile), cfg.Email, cfg.Password))

	err := s.NavigateToProducts()
	var navErr *NavigationError
	require.True(t, errors.As(err, &navErr))
	require.Equal(t, "Reports", navErr.Step)
}

func TestBrowserRun(t *testing.T) {
	app := newTestApp(t, testPages())
	cfg := browserConfig(t, app)
	cfg.ScreenshotFile = filepath.Join(filepath.Dir(cfg.ProductsFile), "table.png")

	r := Run(context.Background(), cfg)
	require.NoError(t, r.Err)
	require.Equal(t, Completed, r.Status)
	require.Equal(t, 5, r.Total)

	saved, err := store.Load(cfg.ProductsFile)
	require.NoError(t, err)
	require.Equal(t, []string{"A1", "A2", "A3", "B1", "B2"}, skus(saved))

	_, err = os.Stat(cfg.ScreenshotFile)
	require.NoError(t, err)

	// the second run reuses the session and adds nothing
	r = Run(context.Background(), cfg)
	require.NoError(t, r.Err)
	require.Equal(t, 0, r.Stats.Added)
	require.Equal(t, 1, app.loginCount())
}
