package nav

import (
	"sync"

	"github.com/dgallion1/pagecache/internal/page"
)

// MemoryHistory is a browser-style session history of page names.
type MemoryHistory struct {
	mu      sync.Mutex
	entries []string
	pos     int
}

// NewMemoryHistory starts a history at the given page; "" is the home page.
func NewMemoryHistory(start string) *MemoryHistory {
	return &MemoryHistory{entries: []string{start}}
}

func (h *MemoryHistory) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.pos]
}

// Push drops any forward entries and appends name.
func (h *MemoryHistory) Push(name, search string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.pos+1], name)
	h.pos++
}

// Back moves one entry back and reports whether it could.
func (h *MemoryHistory) Back() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pos == 0 {
		return false
	}
	h.pos--
	return true
}

// Forward moves one entry forward and reports whether it could.
func (h *MemoryHistory) Forward() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pos == len(h.entries)-1 {
		return false
	}
	h.pos++
	return true
}

// Search is the query string of the current location.
func (h *MemoryHistory) Search() string {
	name := h.Current()
	if name == "" {
		return ""
	}
	return page.SearchFor(name)
}

// Len is the number of entries.
func (h *MemoryHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
