package credstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/escrow-tf/trackmmr"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadDropsPassword(t *testing.T) {
	ctx := context.Background()
	store := NewFile(filepath.Join(t.TempDir(), "nested", "credentials.json"))

	err := store.Save(ctx, trackmmr.Credentials{Username: "gaben", Password: "hunter2", RefreshToken: "token"})
	require.NoError(t, err)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, trackmmr.Credentials{Username: "gaben", RefreshToken: "token"}, loaded)

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	require.NotContains(t, string(data), "hunter2")
	require.Contains(t, string(data), "\n  \"refresh_token\": \"token\"")
}

func TestSaveReplacesToken(t *testing.T) {
	ctx := context.Background()
	store := NewFile(filepath.Join(t.TempDir(), "credentials.json"))

	require.NoError(t, store.Save(ctx, trackmmr.Credentials{Username: "gaben", RefreshToken: "token"}))
	require.NoError(t, store.Save(ctx, trackmmr.Credentials{Username: "gaben"}))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.False(t, loaded.HasRefreshToken())

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestLoadMissingFile(t *testing.T) {
	store := NewFile(filepath.Join(t.TempDir(), "missing.json"))
	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, trackmmr.Credentials{}, loaded)
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err := NewFile(path).Load(context.Background())
	require.Error(t, err)
}
