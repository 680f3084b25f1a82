package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStorePutObject(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "assets/abc123.mp3", "audio/mpeg", strings.NewReader("payload"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "file://"))

	data, err := os.ReadFile(filepath.Join(dir, "assets", "abc123.mp3"))
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	t.Parallel()

	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "../escape.mp3", "", strings.NewReader("x"))
	require.Error(t, err)
}

func TestLocalStoreCreatesBaseDir(t *testing.T) {
	t.Parallel()

	base := filepath.Join(t.TempDir(), "nested", "blobs")
	_, err := NewLocalStore(base)
	require.NoError(t, err)
	info, err := os.Stat(base)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	uri, err := store.PutObject(context.Background(), "a/b", "audio/flac", strings.NewReader("bytes"))
	require.NoError(t, err)
	require.Equal(t, "mem://a/b", uri)

	data, ok := store.Object("a/b")
	require.True(t, ok)
	require.Equal(t, "bytes", string(data))
	require.Equal(t, 1, store.Len())
}
