package accounts_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundtrip(t *testing.T) {
	dir := t.TempDir()
	storage := accounts.NewLocalStorage(dir, "https://static.example.com/")
	ctx := context.Background()

	path, url, err := storage.MoveToSignedLocation(ctx, strings.NewReader("payload"), "avatars/u1.png")
	require.NoError(t, err)

	assert.Equal(t, "avatars/u1.png", path)
	assert.Equal(t, "https://static.example.com/avatars/u1.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "avatars", "u1.png"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestLocalStorageContainsTraversal(t *testing.T) {
	dir := t.TempDir()
	storage := accounts.NewLocalStorage(dir, "https://static.example.com")

	path, _, err := storage.MoveToSignedLocation(context.Background(), strings.NewReader("x"), "../../evil.png")
	require.NoError(t, err)

	// the cleaned path stays inside the base directory
	assert.Equal(t, "evil.png", path)
	_, err = os.Stat(filepath.Join(dir, "evil.png"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(dir), "evil.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStorageDelete(t *testing.T) {
	dir := t.TempDir()
	storage := accounts.NewLocalStorage(dir, "https://static.example.com")
	ctx := context.Background()

	path, _, err := storage.MoveToSignedLocation(ctx, strings.NewReader("x"), "avatars/gone.png")
	require.NoError(t, err)

	require.NoError(t, storage.Delete(ctx, path))
	_, err = os.Stat(filepath.Join(dir, "avatars", "gone.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStorageDeleteMissingFileIsFine(t *testing.T) {
	storage := accounts.NewLocalStorage(t.TempDir(), "https://static.example.com")
	assert.NoError(t, storage.Delete(context.Background(), "avatars/never-existed.png"))
}
