package viewer

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/dgallion1/pagecache/internal/nav"
	"github.com/dgallion1/pagecache/internal/page"
	"github.com/go-chi/chi/v5"
)

//go:embed templates/page.html
var templateFS embed.FS

var pageTmpl = template.Must(template.New("page.html").
	Funcs(template.FuncMap{"pathescape": url.PathEscape}).
	ParseFS(templateFS, "templates/page.html"))

type toggle struct {
	Locale string
	Label  string
	Active bool
}

type pageView struct {
	Title   string
	Locale  string
	Menu    []nav.MenuItem
	Toggles []toggle
	Article template.HTML
}

type stateResponse struct {
	Page   string         `json:"page"`
	Locale string         `json:"locale"`
	HTML   string         `json:"html"`
	Menu   []nav.MenuItem `json:"menu"`
	Shows  int            `json:"shows"`
}

// handlePage follows a link to ?page= and renders the screen.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	name := page.NameFromQuery(r.URL.RawQuery)
	if name != "" && name != s.history.Current() {
		if !s.nav.Click(r.Context(), nav.ClickEvent{Page: url.PathEscape(name)}) {
			s.log.Warn("link to unknown page", "page", name)
			http.Error(w, "page not found", http.StatusNotFound)
			return
		}
	}

	st := s.screen.State()
	view := pageView{
		Title:   "pageloader",
		Locale:  st.Locale,
		Menu:    st.Menu,
		Article: template.HTML(st.HTML),
	}
	if cur := s.history.Current(); cur != "" {
		if t := page.ParseName(cur).Title; t != "" {
			view.Title = t
		}
	}
	for _, l := range s.locales {
		view.Toggles = append(view.Toggles, toggle{Locale: l, Label: strings.ToUpper(l), Active: l == st.Locale})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTmpl.Execute(w, view); err != nil {
		s.log.Error("render page", "error", err)
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st := s.screen.State()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stateResponse{
		Page:   s.history.Current(),
		Locale: st.Locale,
		HTML:   st.HTML,
		Menu:   st.Menu,
		Shows:  st.Shows,
	})
}

func (s *Server) handleLocale(w http.ResponseWriter, r *http.Request) {
	locale := chi.URLParam(r, "locale")
	if err := s.nav.SwitchLocale(r.Context(), locale); err != nil {
		if errors.Is(err, nav.ErrMissingSibling) {
			jsonError(w, err.Error(), http.StatusConflict)
			return
		}
		jsonError(w, "switch locale: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.redirectCurrent(w, r)
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	if s.history.Back() {
		s.nav.PopState(r.Context())
	}
	s.redirectCurrent(w, r)
}

func (s *Server) handleForward(w http.ResponseWriter, r *http.Request) {
	if s.history.Forward() {
		s.nav.PopState(r.Context())
	}
	s.redirectCurrent(w, r)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	res, err := s.nav.Sync(r.Context())
	if err != nil {
		jsonError(w, "sync failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}

func (s *Server) redirectCurrent(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/"+s.history.Search(), http.StatusSeeOther)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
