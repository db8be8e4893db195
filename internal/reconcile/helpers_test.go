package reconcile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/dgallion1/pagecache/internal/kv"
	"github.com/dgallion1/pagecache/internal/page"
)

type op struct {
	kind string // "set" or "delete"
	key  string
}

// recordingStore wraps a memory store and logs every write.
type recordingStore struct {
	*kv.Memory
	mu      sync.Mutex
	ops     []op
	failSet map[string]bool
}

func newRecordingStore() *recordingStore {
	return &recordingStore{Memory: kv.NewMemory(), failSet: map[string]bool{}}
}

func (s *recordingStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	fail := s.failSet[key]
	s.ops = append(s.ops, op{"set", key})
	s.mu.Unlock()
	if fail {
		return fmt.Errorf("%w: injected failure for %s", kv.ErrStore, key)
	}
	return s.Memory.Set(ctx, key, value)
}

func (s *recordingStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	s.ops = append(s.ops, op{"delete", key})
	s.mu.Unlock()
	return s.Memory.Delete(ctx, key)
}

func (s *recordingStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = nil
}

func (s *recordingStore) writes(kind string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for _, o := range s.ops {
		if o.kind == kind {
			keys = append(keys, o.key)
		}
	}
	return keys
}

func (s *recordingStore) contentSets() []string {
	var keys []string
	for _, k := range s.writes("set") {
		if k != page.ManifestKey {
			keys = append(keys, k)
		}
	}
	return keys
}

func (s *recordingStore) value(key string) (string, bool) {
	v, ok, _ := s.Memory.Get(context.Background(), key)
	return string(v), ok
}

// fakeFetcher serves fixed fragments per page name.
type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]string
	markdown map[string]string
	failing  map[string]error
	fetched  []string
	rendered []string

	// onFetch runs after a page has been fetched.
	onFetch func(name string)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string]string{}, markdown: map[string]string{}, failing: map[string]error{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, name)
	if err := f.failing[name]; err != nil {
		return "", err
	}
	if f.onFetch != nil {
		f.onFetch(name)
	}
	return f.pages[name], nil
}

func (f *fakeFetcher) FetchMarkdown(ctx context.Context, rawURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rendered = append(f.rendered, rawURL)
	return f.markdown[rawURL], nil
}

func (f *fakeFetcher) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func listing(entries ...[2]string) []page.Descriptor {
	var out []page.Descriptor
	for _, e := range entries {
		d := page.ParseName(e[0])
		d.Sha = e[1]
		out = append(out, d)
	}
	return out
}
