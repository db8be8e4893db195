// Package viewer serves the reader's screen over HTTP: the current page, the
// menu and the locale toggles, with form posts for navigation.
package viewer

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dgallion1/pagecache/internal/nav"
	"github.com/dgallion1/pagecache/internal/reconcile"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Navigator is the part of nav.Controller the reader drives.
type Navigator interface {
	Click(ctx context.Context, ev nav.ClickEvent) bool
	PopState(ctx context.Context)
	SwitchLocale(ctx context.Context, locale string) error
	Sync(ctx context.Context) (reconcile.Result, error)
}

// History is the session history behind the back and forward buttons.
type History interface {
	Current() string
	Search() string
	Back() bool
	Forward() bool
}

// Screen exposes what is currently displayed.
type Screen interface {
	State() nav.ScreenState
}

// Server is the local reader.
type Server struct {
	router  chi.Router
	nav     Navigator
	history History
	screen  Screen
	locales []string
	log     *slog.Logger
}

// NewServer creates and configures the HTTP server. locales lists the toggles
// in display order.
func NewServer(n Navigator, h History, s Screen, locales []string, log *slog.Logger) *Server {
	srv := &Server{
		nav:     n,
		history: h,
		screen:  s,
		locales: locales,
		log:     log,
	}
	srv.setupRoutes()
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handlePage)
	r.Get("/state", s.handleState)

	r.Post("/locale/{locale}", s.handleLocale)
	r.Post("/history/back", s.handleBack)
	r.Post("/history/forward", s.handleForward)
	r.Post("/sync", s.handleSync)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
