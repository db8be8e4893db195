// Package nav drives what the reader sees: initial load, link clicks,
// history navigation and locale switches, all served from the local cache
// first and corrected once fresher content arrives.
package nav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/dgallion1/pagecache/internal/content"
	"github.com/dgallion1/pagecache/internal/kv"
	"github.com/dgallion1/pagecache/internal/page"
	"github.com/dgallion1/pagecache/internal/reconcile"
)

// ErrMissingSibling is returned when a locale switch has no target page.
var ErrMissingSibling = errors.New("no page in requested locale")

// View is the display surface.
type View interface {
	Show(html string)
	Menu(items []MenuItem)
	ActiveLocale(locale string)
}

// History is the location bar: the page in the current location and a way to
// push a new one.
type History interface {
	Current() string
	Push(name, search string)
}

type ContentFetcher interface {
	Fetch(ctx context.Context, name string) (string, error)
}

type ManifestFetcher interface {
	Fetch(ctx context.Context) ([]page.Descriptor, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, prev *reconcile.Snapshot, remote []page.Descriptor, show reconcile.ShowFunc) (*reconcile.Snapshot, reconcile.Result, error)
}

// MenuItem is one navigation link.
type MenuItem struct {
	Name  string
	Title string
	Href  string
}

// Deps are the controller's collaborators.
type Deps struct {
	Store      kv.Store
	Content    ContentFetcher
	Manifests  ManifestFetcher
	Reconciler Reconciler
	Mirror     *reconcile.Mirror
	View       View
	History    History
}

type Options struct {
	BasePath      string
	DefaultLocale string
	HomeLinkTitle string
	HomeLinkURL   string
}

// ClickEvent describes a click on a link. Page is the element's page
// attribute, still URL-encoded; empty when the element has none.
type ClickEvent struct {
	Button  int
	Buttons int
	Ctrl    bool
	Shift   bool
	Alt     bool
	Meta    bool
	Page    string
}

func (e ClickEvent) modified() bool {
	return e.Ctrl || e.Shift || e.Alt || e.Meta
}

type Controller struct {
	deps Deps
	opts Options
	log  *slog.Logger

	mu     sync.Mutex
	shown  string // page whose content may be displayed
	locale string

	syncMu sync.Mutex
	wg     sync.WaitGroup
}

func New(deps Deps, opts Options, log *slog.Logger) *Controller {
	if deps.Mirror == nil {
		deps.Mirror = reconcile.NewMirror()
	}
	if opts.BasePath == "" {
		opts.BasePath = "/"
	}
	if opts.DefaultLocale == "" {
		opts.DefaultLocale = "en"
	}
	return &Controller{
		deps:   deps,
		opts:   opts,
		log:    log,
		locale: opts.DefaultLocale,
	}
}

type listingResult struct {
	pages []page.Descriptor
	err   error
}

// Load shows the cached state of the current location, then reconciles with
// the remote listing. The listing request is issued before the cache is read.
func (c *Controller) Load(ctx context.Context) (reconcile.Result, error) {
	listed := make(chan listingResult, 1)
	go func() {
		pages, err := c.deps.Manifests.Fetch(ctx)
		listed <- listingResult{pages: pages, err: err}
	}()

	selected := c.deps.History.Current()
	cached, err := reconcile.LoadManifest(ctx, c.deps.Store)
	if err != nil {
		c.log.Error("cached manifest unavailable", "error", err)
		cached = page.Manifest{}
	}
	c.deps.Mirror.Publish(c.deps.Mirror.Next(cached))

	locale := c.localeOf(cached, selected)
	c.setLocale(locale)
	c.deps.View.Menu(c.menu(cached.Pages(), locale))

	if selected != "" {
		c.setShown(selected)
		html := ""
		if d, ok := cached[selected]; ok {
			html = c.cachedContent(ctx, d)
		}
		if html == "" {
			html = c.fetchLive(ctx, selected)
		}
		c.show(selected, html)
		c.log.Info("show page", "page", selected, "cached", cached[selected].Sha != "")
	} else {
		c.log.Info("no selected page")
	}

	res := <-listed
	return c.apply(ctx, res.pages, res.err)
}

// Sync fetches the listing and reconciles the cache against it.
func (c *Controller) Sync(ctx context.Context) (reconcile.Result, error) {
	pages, err := c.deps.Manifests.Fetch(ctx)
	return c.apply(ctx, pages, err)
}

// apply runs one reconciliation. A failed listing leaves the cache, the
// mirror and the menu as they are.
func (c *Controller) apply(ctx context.Context, pages []page.Descriptor, listErr error) (reconcile.Result, error) {
	if listErr != nil {
		c.log.Error("listing request failed", "error", listErr)
		return reconcile.Result{}, listErr
	}

	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	next, res, err := c.deps.Reconciler.Reconcile(ctx, c.deps.Mirror.Load(), pages, c.show)
	if next != nil {
		c.deps.Mirror.Publish(next)
	}
	c.deps.View.Menu(c.menu(pages, c.Locale()))
	return res, err
}

// Click handles a link click and reports whether the default navigation was
// prevented.
func (c *Controller) Click(ctx context.Context, ev ClickEvent) bool {
	if ev.Button != 0 || ev.Buttons != 0 || ev.modified() {
		return false
	}
	if ev.Page == "" {
		return false
	}
	clicked, err := url.PathUnescape(ev.Page)
	if err != nil {
		c.log.Warn("undecodable page attribute", "page", ev.Page, "error", err)
		return false
	}
	if clicked == c.deps.History.Current() {
		return true
	}
	d, ok := c.loadPage(ctx, clicked)
	if !ok {
		return false
	}
	c.deps.History.Push(d.Name, d.Search)
	return true
}

// PopState redisplays the page named by the current location after a back or
// forward navigation. History is left alone.
func (c *Controller) PopState(ctx context.Context) {
	c.loadPage(ctx, c.deps.History.Current())
}

// SwitchLocale moves to the current page's sibling in locale.
func (c *Controller) SwitchLocale(ctx context.Context, locale string) error {
	locale = strings.ToLower(locale)
	snap := c.deps.Mirror.Load()
	current, ok := snap.Page(c.deps.History.Current())
	if !ok {
		current, ok = snap.Pages.First()
	}
	if !ok {
		c.log.Error("no alternate page", "locale", locale, "reason", "no pages cached")
		return fmt.Errorf("%w: no pages cached", ErrMissingSibling)
	}
	if current.Locale == locale {
		return nil
	}

	target, ok := current.SiblingIn(locale)
	if !ok {
		c.log.Error("no alternate page", "page", current.Name, "locale", locale)
		return fmt.Errorf("%w: %s has no %s page", ErrMissingSibling, current.Name, locale)
	}
	next, ok := c.loadPage(ctx, target)
	if !ok {
		c.log.Error("alternate page not cached", "page", current.Name, "target", target)
		return fmt.Errorf("%w: %s is not cached", ErrMissingSibling, target)
	}
	c.log.Info("switching locale", "locale", locale, "from", current.Name, "to", next.Name)
	c.deps.View.Menu(c.menu(snap.Pages.Pages(), locale))
	c.deps.History.Push(next.Name, next.Search)
	return nil
}

// Wait blocks until background content checks have finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Locale returns the active locale.
func (c *Controller) Locale() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locale
}

// loadPage shows the cached content of a known page and starts a background
// check against the live content.
func (c *Controller) loadPage(ctx context.Context, name string) (page.Descriptor, bool) {
	d, ok := c.deps.Mirror.Load().Page(name)
	if !ok {
		return d, false
	}
	c.setShown(name)
	c.setLocale(d.Locale)

	cached := c.cachedContent(ctx, d)
	c.show(name, cached)

	bg := context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.checkLive(bg, name, cached)
	}()
	return d, true
}

// checkLive re-fetches a page and, when it changed out of band, shows the new
// content and resyncs the cache.
func (c *Controller) checkLive(ctx context.Context, name, cached string) {
	live := c.fetchLive(ctx, name)
	if live == "" || live == cached {
		return
	}
	c.log.Info("live content differs from cache", "page", name)
	c.show(name, live)
	if _, err := c.Sync(ctx); err != nil {
		c.log.Error("resync failed", "page", name, "error", err)
	}
}

func (c *Controller) cachedContent(ctx context.Context, d page.Descriptor) string {
	if d.Sha == "" {
		return ""
	}
	v, ok, err := c.deps.Store.Get(ctx, d.Sha)
	if err != nil {
		c.log.Error("cached content unavailable", "page", d.Name, "sha", d.Sha, "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return string(v)
}

func (c *Controller) fetchLive(ctx context.Context, name string) string {
	html, err := c.deps.Content.Fetch(ctx, name)
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, content.ErrRequest) {
			level = slog.LevelWarn
		}
		c.log.Log(ctx, level, "content fetch failed", "page", name, "error", err)
		return ""
	}
	return html
}

// show displays html if name is still the page on screen. Empty content never
// replaces what is shown; among displays for the same page the last one wins.
func (c *Controller) show(name, html string) {
	if html == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if name != c.shown {
		return
	}
	c.deps.View.Show(content.DecorateImages(html))
}

func (c *Controller) setShown(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shown = name
}

func (c *Controller) setLocale(locale string) {
	if locale == "" {
		locale = c.opts.DefaultLocale
	}
	c.mu.Lock()
	c.locale = locale
	c.mu.Unlock()
	c.deps.View.ActiveLocale(locale)
}

func (c *Controller) localeOf(m page.Manifest, name string) string {
	if d, ok := m[name]; ok && d.Locale != "" {
		return d.Locale
	}
	if name != "" {
		if l := page.ParseName(name).Locale; l != "" {
			return l
		}
	}
	return c.opts.DefaultLocale
}

func (c *Controller) menu(pages []page.Descriptor, locale string) []MenuItem {
	var items []MenuItem
	for _, p := range page.InLocale(pages, locale) {
		items = append(items, MenuItem{
			Name:  p.Name,
			Title: p.Title,
			Href:  c.opts.BasePath + p.Search,
		})
	}
	if c.opts.HomeLinkURL != "" {
		items = append(items, MenuItem{Title: c.opts.HomeLinkTitle, Href: c.opts.HomeLinkURL})
	}
	return items
}
