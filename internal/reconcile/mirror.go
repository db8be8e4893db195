package reconcile

import (
	"sync/atomic"

	"github.com/dgallion1/pagecache/internal/page"
)

// Snapshot is one complete version of the manifest. A published snapshot is
// never modified.
type Snapshot struct {
	Version uint64
	Pages   page.Manifest
}

// Page looks a page up by name.
func (s *Snapshot) Page(name string) (page.Descriptor, bool) {
	if s == nil {
		return page.Descriptor{}, false
	}
	d, ok := s.Pages[name]
	return d, ok
}

// Mirror holds the session's current snapshot. Readers never see a partly
// built manifest: a snapshot replaces the previous one whole.
type Mirror struct {
	cur atomic.Pointer[Snapshot]
}

func NewMirror() *Mirror {
	m := &Mirror{}
	m.cur.Store(&Snapshot{Pages: page.Manifest{}})
	return m
}

// Load returns the current snapshot.
func (m *Mirror) Load() *Snapshot {
	return m.cur.Load()
}

// Next wraps pages in a snapshot one version past the current one.
func (m *Mirror) Next(pages page.Manifest) *Snapshot {
	if pages == nil {
		pages = page.Manifest{}
	}
	return &Snapshot{Version: m.Load().Version + 1, Pages: pages}
}

// Publish swaps s in unless a snapshot of the same or a later version is
// already current. It reports whether s was published.
func (m *Mirror) Publish(s *Snapshot) bool {
	for {
		cur := m.cur.Load()
		if s.Version <= cur.Version {
			return false
		}
		if m.cur.CompareAndSwap(cur, s) {
			return true
		}
	}
}
