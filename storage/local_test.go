package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageUploadAndRemove(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(ClientConfig{URL: dir})
	require.NoError(t, err)

	ctx := context.Background()
	key := "2026/10/cat_abc.png"
	require.NoError(t, store.Upload(ctx, key, []byte("meow"), UploadOptions{Upsert: true}))

	data, err := os.ReadFile(filepath.Join(dir, "2026", "10", "cat_abc.png"))
	require.NoError(t, err)
	require.Equal(t, "meow", string(data))

	require.NoError(t, store.Upload(ctx, key, []byte("purr"), UploadOptions{Upsert: true}))
	data, err = os.ReadFile(filepath.Join(dir, "2026", "10", "cat_abc.png"))
	require.NoError(t, err)
	require.Equal(t, "purr", string(data))

	require.NoError(t, store.Remove(ctx, []string{key, "missing.png"}))
	_, err = os.Stat(filepath.Join(dir, "2026", "10", "cat_abc.png"))
	require.True(t, os.IsNotExist(err))
}

func TestLocalStorageWithoutUpsertRefusesOverwrite(t *testing.T) {
	store, err := NewLocalStorage(ClientConfig{URL: t.TempDir()})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Upload(ctx, "a.txt", []byte("1"), UploadOptions{}))
	require.Error(t, store.Upload(ctx, "a.txt", []byte("2"), UploadOptions{}))
}

func TestLocalStorageURLs(t *testing.T) {
	store, err := NewLocalStorage(ClientConfig{URL: t.TempDir(), PublicBaseURL: "http://cdn.test/media/"})
	require.NoError(t, err)

	require.Equal(t, "http://cdn.test/media/x/y.png", store.PublicURL("x/y.png"))

	_, err = store.SignedURL(context.Background(), "x/y.png", time.Minute)
	require.ErrorIs(t, err, ErrSigningUnsupported)
}
