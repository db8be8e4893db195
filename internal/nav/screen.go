package nav

import "sync"

// Screen is a View that keeps the displayed state in memory, for the local
// reader and the CLI.
type Screen struct {
	mu     sync.Mutex
	html   string
	menu   []MenuItem
	locale string
	shows  int
}

// ScreenState is a copy of what the screen shows.
type ScreenState struct {
	HTML   string
	Menu   []MenuItem
	Locale string
	Shows  int
}

func (s *Screen) Show(html string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.html = html
	s.shows++
}

func (s *Screen) Menu(items []MenuItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menu = append([]MenuItem(nil), items...)
}

func (s *Screen) ActiveLocale(locale string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locale = locale
}

func (s *Screen) State() ScreenState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ScreenState{
		HTML:   s.html,
		Menu:   append([]MenuItem(nil), s.menu...),
		Locale: s.locale,
		Shows:  s.shows,
	}
}
