package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pagecache/internal/config"
	"github.com/dgallion1/pagecache/internal/nav"
	"github.com/dgallion1/pagecache/internal/page"
	"github.com/dgallion1/pagecache/internal/reconcile"
)

var fragments = map[string]string{
	"01en-Intro": "<p>intro</p>",
	"01fr-Intro": "<p>intro fr</p>",
	"02en-Body":  "<p>body</p>",
}

func newRemote(t *testing.T) config.Config {
	t.Helper()
	listing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"name":"01en-Intro.md","sha":"a1","type":"file"},
			{"name":"01fr-Intro.md","sha":"b1","type":"file"},
			{"name":"02en-Body.md","sha":"c1","type":"file"},
			{"name":"img","sha":"d1","type":"dir"}
		]`)
	}))
	t.Cleanup(listing.Close)

	content := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		frag, ok := fragments[strings.TrimPrefix(r.URL.Path, "/pages/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, "<html><body><main><h1>title</h1>"+frag+"</main></body></html>")
	}))
	t.Cleanup(content.Close)

	return config.Config{
		Port:               "0",
		ListingURL:         listing.URL,
		ContentBaseURL:     content.URL,
		HTTPTimeout:        5 * time.Second,
		StoreBackend:       config.BackendSQLite,
		StorePath:          filepath.Join(t.TempDir(), "pages.db"),
		MaxConcurrentFetch: 2,
		SyncInterval:       time.Hour,
		Locales:            []string{"en", "fr"},
		DefaultLocale:      "en",
		BasePath:           "/",
	}
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func execute(t *testing.T, cfg config.Config, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(cfg, quiet(), nil)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(config.Config{}, quiet(), nil)
	for _, name := range []string{"sync", "show", "serve", "get", "keys"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand(config.Config{}, quiet(), nil)

	ephemeral := cmd.PersistentFlags().Lookup("ephemeral")
	require.NotNil(t, ephemeral)
	assert.Equal(t, "false", ephemeral.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, newRemote(t), "sync", "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInvalidConfig(t *testing.T) {
	cfg := newRemote(t)
	cfg.ListingURL = ""
	_, err := execute(t, cfg, "sync")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestVerboseLowersLevel(t *testing.T) {
	level := new(slog.LevelVar)
	cmd := NewRootCommand(newRemote(t), quiet(), level)
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"get", "pages", "-v", "--ephemeral"})
	_ = cmd.Execute()
	assert.Equal(t, slog.LevelDebug, level.Level())
}

func TestSync_Idempotent(t *testing.T) {
	cfg := newRemote(t)

	out, err := execute(t, cfg, "sync")
	require.NoError(t, err)
	assert.Equal(t, "pages=3 fetched=3 reused=0 stored=3 deleted=0 failed=0\n", out)

	out, err = execute(t, cfg, "sync", "--format", "json")
	require.NoError(t, err)
	var res reconcile.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, reconcile.Result{Pages: 3}, res)
}

func TestGet(t *testing.T) {
	cfg := newRemote(t)
	_, err := execute(t, cfg, "sync")
	require.NoError(t, err)

	out, err := execute(t, cfg, "get", "a1")
	require.NoError(t, err)
	assert.Equal(t, "<p>intro</p>\n", out)

	out, err = execute(t, cfg, "get", page.ManifestKey)
	require.NoError(t, err)
	m, err := page.Decode([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, "01fr-Intro", m["01en-Intro"].Siblings["fr"])

	_, err = execute(t, cfg, "get", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestKeys(t *testing.T) {
	cfg := newRemote(t)
	_, err := execute(t, cfg, "sync")
	require.NoError(t, err)

	out, err := execute(t, cfg, "keys")
	require.NoError(t, err)
	assert.Equal(t, "a1\nb1\nc1\npages\n", out)

	cfg.StoreBackend = config.BackendPathstore
	cfg.PathstoreAPIKey = "key"
	_, err = execute(t, cfg, "keys")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGet_Ephemeral(t *testing.T) {
	_, err := execute(t, newRemote(t), "get", "pages", "--ephemeral")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestShow(t *testing.T) {
	cfg := newRemote(t)

	out, err := execute(t, cfg, "show", "01en-Intro")
	require.NoError(t, err)
	assert.Equal(t, "<p>intro</p>\n", out)

	out, err = execute(t, cfg, "show", "01en-Intro", "--locale", "fr", "--format", "json")
	require.NoError(t, err)
	var shown shownPage
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, "01fr-Intro", shown.Page)
	assert.Equal(t, "fr", shown.Locale)
	assert.Equal(t, "<p>intro fr</p>", shown.HTML)
}

func TestShow_Menu(t *testing.T) {
	out, err := execute(t, newRemote(t), "show")
	require.NoError(t, err)
	assert.Equal(t, "Intro\t/?page=01en-Intro\nBody\t/?page=02en-Body\n", out)
}

func TestShow_MissingSibling(t *testing.T) {
	_, err := execute(t, newRemote(t), "show", "02en-Body", "--locale", "fr")
	require.Error(t, err)
	assert.ErrorIs(t, err, nav.ErrMissingSibling)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestServe(t *testing.T) {
	cfg := newRemote(t)
	cmd := NewRootCommand(cfg, quiet(), nil)
	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)
	require.NotNil(t, serveCmd)

	listening := make(chan string, 1)
	opts := &ServeOptions{
		RootOptions: &RootOptions{Config: cfg, Log: quiet(), Format: "text"},
		Addr:        "127.0.0.1:0",
		Page:        "01en-Intro",
		listening:   listening,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, opts) }()

	var addr string
	select {
	case addr = <-listening:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/state")
	require.NoError(t, err)
	var st struct {
		Page string `json:"page"`
		HTML string `json:"html"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	resp.Body.Close()
	assert.Equal(t, "01en-Intro", st.Page)
	assert.Equal(t, "<p>intro</p>", st.HTML)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not stop")
	}
}


func TestServe_ShutdownWaitsForHandlers(t *testing.T) {
	cfg := newRemote(t)

	var mu sync.Mutex
	requests := 0
	entered := make(chan struct{})
	release := make(chan struct{})
	listing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		n := requests
		mu.Unlock()
		if n == 2 {
			close(entered)
			<-release
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"name":"01en-Intro.md","sha":"a1","type":"file"}]`)
	}))
	defer listing.Close()
	var releaseOnce sync.Once
	unblock := func() { releaseOnce.Do(func() { close(release) }) }
	defer unblock()
	cfg.ListingURL = listing.URL

	listening := make(chan string, 1)
	opts := &ServeOptions{
		RootOptions: &RootOptions{Config: cfg, Log: quiet(), Format: "text"},
		Addr:        "127.0.0.1:0",
		listening:   listening,
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, opts) }()

	var addr string
	select {
	case addr = <-listening:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	synced := make(chan int, 1)
	go func() {
		resp, err := http.Post("http://"+addr+"/sync", "", nil)
		if err != nil {
			synced <- 0
			return
		}
		resp.Body.Close()
		synced <- resp.StatusCode
	}()
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("sync never reached the listing")
	}

	cancel()
	select {
	case err := <-done:
		t.Fatalf("serve returned while a request was in flight: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	unblock()
	assert.Equal(t, http.StatusOK, <-synced)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not stop")
	}
}
