// Package reconcile brings the local page cache in line with the remote
// listing.
//
// The new manifest is persisted before any content is fetched, so the page
// list is current while bodies download. Content is stored under its hash and
// never rewritten; hashes the new manifest no longer references are deleted
// only after every replacement write has finished.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/pagecache/internal/kv"
	"github.com/dgallion1/pagecache/internal/page"
)

// Fetcher retrieves display fragments.
type Fetcher interface {
	Fetch(ctx context.Context, name string) (string, error)
	FetchMarkdown(ctx context.Context, rawURL string) (string, error)
}

// ShowFunc receives freshly fetched content. The receiver decides whether the
// page is the one on screen.
type ShowFunc func(name, html string)

// Result summarises one reconciliation.
type Result struct {
	Pages   int `json:"pages"`
	Fetched int `json:"fetched"`
	Reused  int `json:"reused"`
	Stored  int `json:"stored"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

type Reconciler struct {
	store    kv.Store
	content  Fetcher
	log      *slog.Logger
	maxFetch int
}

func New(store kv.Store, content Fetcher, log *slog.Logger, maxConcurrentFetch int) *Reconciler {
	if maxConcurrentFetch <= 0 {
		maxConcurrentFetch = 4
	}
	return &Reconciler{
		store:    store,
		content:  content,
		log:      log,
		maxFetch: maxConcurrentFetch,
	}
}

type fetchJob struct {
	page  page.Descriptor
	names []string // every page that resolved to this sha in this run
}

// Reconcile compares remote against prev, stores changed content and evicts
// unreferenced hashes. It returns the snapshot to publish; store failures are
// logged, joined into the error, and never abort the run.
func (r *Reconciler) Reconcile(ctx context.Context, prev *Snapshot, remote []page.Descriptor, show ShowFunc) (*Snapshot, Result, error) {
	if prev == nil {
		prev = &Snapshot{Pages: page.Manifest{}}
	}
	if show == nil {
		show = func(string, string) {}
	}
	next := page.Build(remote)
	res := Result{Pages: len(next)}
	var errs []error

	// The manifest goes out first; content work does not wait for it.
	manifestDone := make(chan error, 1)
	go func() { manifestDone <- r.persistManifest(ctx, next) }()

	known := prev.Pages.Shas()
	jobs := make(map[string]*fetchJob)
	var order []string
	seen := make(map[string]bool, len(remote))
	for _, p := range remote {
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		p = next[p.Name]

		if old, ok := prev.Pages[p.Name]; ok && old.Sha == p.Sha && r.has(ctx, p.Sha) {
			continue
		}
		if known[p.Sha] && r.has(ctx, p.Sha) {
			// Already stored for another name, typically a rename.
			res.Reused++
			r.log.Debug("content already cached", "page", p.Name, "sha", p.Sha)
			continue
		}
		if job, ok := jobs[p.Sha]; ok {
			job.names = append(job.names, p.Name)
			continue
		}
		jobs[p.Sha] = &fetchJob{page: p, names: []string{p.Name}}
		order = append(order, p.Sha)
	}

	var mu sync.Mutex
	failed := make(map[string]bool)

	var g errgroup.Group
	g.SetLimit(r.maxFetch)
	for _, sha := range order {
		job := jobs[sha]
		g.Go(func() error {
			log := r.log.With("page", job.page.Name, "sha", sha)
			html, err := r.fetchContent(ctx, job.page)
			if err != nil {
				log.Error("content fetch failed", "error", err)
				mu.Lock()
				failed[sha] = true
				mu.Unlock()
				return err
			}
			mu.Lock()
			res.Fetched++
			mu.Unlock()
			for _, name := range job.names {
				show(name, html)
			}

			if err := r.store.Set(ctx, sha, []byte(html)); err != nil {
				log.Error("content write failed", "error", err)
				mu.Lock()
				failed[sha] = true
				mu.Unlock()
				return fmt.Errorf("store %s: %w", sha, err)
			}
			mu.Lock()
			res.Stored++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}
	if err := <-manifestDone; err != nil {
		errs = append(errs, err)
	}

	// Pages whose content never landed keep their previous hash so the next
	// run retries them and their old content stays displayable. The revert
	// and the evictions below must land even when ctx was cancelled mid-run.
	cleanup := context.WithoutCancel(ctx)
	if len(failed) > 0 {
		for sha := range failed {
			for _, name := range jobs[sha].names {
				d := next[name]
				d.Sha = prev.Pages[name].Sha
				next[name] = d
				res.Failed++
			}
		}
		if err := r.persistManifest(cleanup, next); err != nil {
			errs = append(errs, err)
		}
	}

	keep := next.Shas()
	var stale []string
	for sha := range known {
		if !keep[sha] {
			stale = append(stale, sha)
		}
	}
	var dg errgroup.Group
	for _, sha := range stale {
		dg.Go(func() error {
			if err := r.store.Delete(cleanup, sha); err != nil {
				r.log.Error("evict failed", "sha", sha, "error", err)
				return fmt.Errorf("evict %s: %w", sha, err)
			}
			mu.Lock()
			res.Deleted++
			mu.Unlock()
			return nil
		})
	}
	if err := dg.Wait(); err != nil {
		errs = append(errs, err)
	}

	r.log.Info("reconciled",
		"pages", res.Pages,
		"fetched", res.Fetched,
		"reused", res.Reused,
		"stored", res.Stored,
		"deleted", res.Deleted,
		"failed", res.Failed,
	)
	return &Snapshot{Version: prev.Version + 1, Pages: next}, res, errors.Join(errs...)
}

// fetchContent asks the content server first, then renders the raw Markdown,
// and falls back to the page name when both yield nothing. A failed request
// with no usable source is returned as an error rather than replaced by the
// placeholder, so the page is retried instead of caching the name under an
// immutable hash.
func (r *Reconciler) fetchContent(ctx context.Context, p page.Descriptor) (string, error) {
	html, err := r.content.Fetch(ctx, p.Name)
	if err != nil {
		if p.Source == "" {
			return "", err
		}
		r.log.Warn("content server failed, rendering source", "page", p.Name, "error", err)
	}
	if html == "" && p.Source != "" {
		var mdErr error
		html, mdErr = r.content.FetchMarkdown(ctx, p.Source)
		if mdErr != nil {
			return "", errors.Join(err, mdErr)
		}
	}
	if html == "" {
		if err != nil {
			return "", err
		}
		return p.Name, nil
	}
	return html, nil
}

func (r *Reconciler) has(ctx context.Context, sha string) bool {
	_, ok, err := r.store.Get(ctx, sha)
	if err != nil {
		r.log.Warn("content lookup failed", "sha", sha, "error", err)
		return false
	}
	return ok
}

func (r *Reconciler) persistManifest(ctx context.Context, m page.Manifest) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, page.ManifestKey, data); err != nil {
		r.log.Error("manifest write failed", "error", err)
		return fmt.Errorf("persist manifest: %w", err)
	}
	return nil
}

// LoadManifest reads the persisted manifest. A missing key is an empty
// manifest.
func LoadManifest(ctx context.Context, store kv.Store) (page.Manifest, error) {
	data, ok, err := store.Get(ctx, page.ManifestKey)
	if err != nil {
		return page.Manifest{}, fmt.Errorf("load manifest: %w", err)
	}
	if !ok {
		return page.Manifest{}, nil
	}
	return page.Decode(data)
}
