package nav

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/dgallion1/pagecache/internal/kv"
	"github.com/dgallion1/pagecache/internal/page"
	"github.com/dgallion1/pagecache/internal/reconcile"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) errors() int {
	return strings.Count(b.String(), "level=ERROR")
}

type fakeContent struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func (f *fakeContent) Fetch(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.pages[name], nil
}

func (f *fakeContent) FetchMarkdown(ctx context.Context, rawURL string) (string, error) {
	return "", nil
}

func (f *fakeContent) set(name, html string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[name] = html
}

type fakeListing struct {
	mu    sync.Mutex
	pages []page.Descriptor
	err   error
	gate  chan struct{}
	calls int
}

func (f *fakeListing) Fetch(ctx context.Context) ([]page.Descriptor, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pages, f.err
}

func (f *fakeListing) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type env struct {
	store   *kv.Memory
	content *fakeContent
	listing *fakeListing
	mirror  *reconcile.Mirror
	screen  *Screen
	history *MemoryHistory
	logs    *syncBuffer
	ctrl    *Controller
}

func newEnv(t *testing.T, start string) *env {
	t.Helper()
	logs := &syncBuffer{}
	log := slog.New(slog.NewTextHandler(logs, nil))
	e := &env{
		store:   kv.NewMemory(),
		content: &fakeContent{pages: map[string]string{}},
		listing: &fakeListing{},
		mirror:  reconcile.NewMirror(),
		screen:  &Screen{},
		history: NewMemoryHistory(start),
		logs:    logs,
	}
	e.ctrl = New(Deps{
		Store:      e.store,
		Content:    e.content,
		Manifests:  e.listing,
		Reconciler: reconcile.New(e.store, e.content, log, 2),
		Mirror:     e.mirror,
		View:       e.screen,
		History:    e.history,
	}, Options{
		BasePath:      "/traite/",
		DefaultLocale: "en",
		HomeLinkTitle: "Home",
		HomeLinkURL:   "https://example.test",
	}, log)
	return e
}

// seed stores content and a cached manifest as an earlier session would have.
func (e *env) seed(t *testing.T, content map[string]string, entries ...[2]string) {
	t.Helper()
	ctx := context.Background()
	for sha, html := range content {
		if err := e.store.Set(ctx, sha, []byte(html)); err != nil {
			t.Fatalf("seed content: %v", err)
		}
	}
	data, err := page.Build(descriptors(entries...)).Encode()
	if err != nil {
		t.Fatalf("encode manifest: %v", err)
	}
	if err := e.store.Set(ctx, page.ManifestKey, data); err != nil {
		t.Fatalf("seed manifest: %v", err)
	}
}

func descriptors(entries ...[2]string) []page.Descriptor {
	var out []page.Descriptor
	for _, en := range entries {
		d := page.ParseName(en[0])
		d.Sha = en[1]
		out = append(out, d)
	}
	return out
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
