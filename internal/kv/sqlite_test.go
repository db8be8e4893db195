package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenSQLite_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	_, err := OpenSQLite("  ")
	require.Error(t, err)
}

func TestOpenSQLite_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	s1, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, "a1", []byte("<p>hello</p>")))
	require.NoError(t, s1.Close())

	s2, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s2.Close()

	v, ok, err := s2.Get(ctx, "a1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "<p>hello</p>", string(v))
}

func TestSQLite_GetSetDelete(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "pages", []byte(`{}`)))
	require.NoError(t, s.Set(ctx, "pages", []byte(`{"a":1}`)))
	v, ok, err := s.Get(ctx, "pages")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(v))

	require.NoError(t, s.Delete(ctx, "pages"))
	_, ok, err = s.Get(ctx, "pages")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting twice is fine.
	require.NoError(t, s.Delete(ctx, "pages"))
}

func TestSQLite_SetNilDeletes(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "old", []byte("x")))
	require.NoError(t, s.Set(ctx, "old", nil))

	_, ok, err := s.Get(ctx, "old")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLite_EmptyValueIsStored(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "blank", []byte{}))
	_, ok, err := s.Get(ctx, "blank")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLite_Keys(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	for _, k := range []string{"pages", "b2", "a1"} {
		require.NoError(t, s.Set(ctx, k, []byte(k)))
	}
	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "b2", "pages"}, keys)
}

func TestSQLite_ClosedStoreFails(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, _, err = s.Get(context.Background(), "a1")
	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, s.Set(context.Background(), "a1", []byte("x")), ErrStore)
}
