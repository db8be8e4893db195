package cli

import (
	"context"
	"fmt"

	"github.com/dgallion1/pagecache/internal/config"
	"github.com/dgallion1/pagecache/internal/content"
	"github.com/dgallion1/pagecache/internal/kv"
	"github.com/dgallion1/pagecache/internal/listing"
	"github.com/dgallion1/pagecache/internal/nav"
	"github.com/dgallion1/pagecache/internal/reconcile"
)

// app is the wired object graph shared by the commands.
type app struct {
	store   *kv.Lazy
	content *content.Client
	listing *listing.Client
	screen  *nav.Screen
	history *nav.MemoryHistory
	ctrl    *nav.Controller
}

// newApp wires the components for one session starting at page start.
func newApp(opts *RootOptions, start string) *app {
	cfg := opts.Config
	log := opts.Log

	a := &app{
		store:   openStore(cfg),
		content: content.NewClient(cfg.ContentBaseURL, cfg.HTTPTimeout, log.With("component", "content")),
		listing: listing.NewClient(cfg.ListingURL, cfg.ListingToken, cfg.HTTPTimeout, log.With("component", "listing")),
		screen:  &nav.Screen{},
		history: nav.NewMemoryHistory(start),
	}
	a.ctrl = nav.New(nav.Deps{
		Store:      a.store,
		Content:    a.content,
		Manifests:  a.listing,
		Reconciler: reconcile.New(a.store, a.content, log.With("component", "reconcile"), cfg.MaxConcurrentFetch),
		Mirror:     reconcile.NewMirror(),
		View:       a.screen,
		History:    a.history,
	}, nav.Options{
		BasePath:      cfg.BasePath,
		DefaultLocale: cfg.DefaultLocale,
		HomeLinkTitle: cfg.HomeLinkTitle,
		HomeLinkURL:   cfg.HomeLinkURL,
	}, log.With("component", "nav"))
	return a
}

// openStore starts opening the configured backend without blocking.
func openStore(cfg config.Config) *kv.Lazy {
	return kv.OpenAsync(func() (kv.Store, error) {
		switch cfg.StoreBackend {
		case config.BackendMemory:
			return kv.NewMemory(), nil
		case config.BackendPathstore:
			return kv.NewPathstore(cfg.PathstoreURL, cfg.PathstoreAPIKey, cfg.PathstorePrefix), nil
		case config.BackendSQLite:
			db, err := kv.OpenSQLite(cfg.StorePath)
			if err != nil {
				return nil, err
			}
			return db, nil
		}
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	})
}

// ready waits for the store and turns an open failure into a command error.
func (a *app) ready(ctx context.Context) error {
	if _, err := a.store.Ready(ctx); err != nil {
		return WrapExitError(ExitCommandError, "open store", err)
	}
	return nil
}

func (a *app) close() {
	a.ctrl.Wait()
	a.content.Close()
	a.listing.Close()
	_ = a.store.Close()
}
