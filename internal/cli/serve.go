package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/pagecache/internal/nav"
	"github.com/dgallion1/pagecache/internal/viewer"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
	Page string

	// listening, when set, receives the bound address once the server
	// accepts connections.
	listening chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local reader",
		Long: `Serve the reader over HTTP and keep the cache reconciled on the
SYNC_INTERVAL schedule until interrupted.

Example:
  pageloader serve --addr :8090 --page 01en-Intro`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default :$PORT)")
	cmd.Flags().StringVar(&opts.Page, "page", "", "page shown at startup")

	return cmd
}

func runServe(parent context.Context, opts *ServeOptions) error {
	log := opts.Log
	cfg := opts.Config

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := newApp(opts.RootOptions, opts.Page)
	defer a.close()
	if err := a.ready(ctx); err != nil {
		return err
	}
	if _, err := a.ctrl.Load(ctx); err != nil {
		log.Warn("initial reconciliation incomplete", "error", err)
	}

	refresher := nav.NewRefresher(a.ctrl, cfg.SyncInterval, log.With("component", "refresher"))
	refresher.Start(ctx)
	defer refresher.Stop()

	addr := opts.Addr
	if addr == "" {
		addr = ":" + cfg.Port
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "listen", err)
	}

	srv := viewer.NewServer(a.ctrl, a.history, a.screen, cfg.Locales, log.With("component", "viewer"))
	httpServer := &http.Server{
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Serve returns as soon as Shutdown starts; the deferred teardown must
	// wait until in-flight handlers have finished.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		log.Info("shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown incomplete", "error", err)
		}
	}()

	log.Info("starting pageloader reader", "addr", ln.Addr().String(), "store", cfg.StoreBackend)
	if opts.listening != nil {
		opts.listening <- ln.Addr().String()
	}
	err = httpServer.Serve(ln)
	cancel()
	<-shutdownDone
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return WrapExitError(ExitCommandError, "server error", err)
	}
	return nil
}
