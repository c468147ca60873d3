package ca

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_GeneratesThenPersists(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "echovault-ca.crt")
	keyPath := filepath.Join(dir, "echovault-ca.key")

	a, err := Load(certPath, keyPath)
	require.NoError(t, err)
	require.FileExists(t, certPath)
	require.FileExists(t, keyPath)

	if runtime.GOOS != "windows" {
		info, err := statMode(keyPath)
		require.NoError(t, err)
		require.Equal(t, "-rw-------", info)
	}

	// spec.md §8 invariant 6: a subsequent load's root PEM matches the one
	// already on disk.
	b, err := Load(certPath, keyPath)
	require.NoError(t, err)
	require.Equal(t, a.RootPEM(), b.RootPEM())
}

func TestLeafFor_CachesByHost(t *testing.T) {
	dir := t.TempDir()
	a, err := Load(filepath.Join(dir, "ca.crt"), filepath.Join(dir, "ca.key"))
	require.NoError(t, err)

	leaf1, err := a.LeafFor("api.example.com")
	require.NoError(t, err)
	leaf2, err := a.LeafFor("api.example.com")
	require.NoError(t, err)
	require.Same(t, leaf1, leaf2)

	other, err := a.LeafFor("other.example.com")
	require.NoError(t, err)
	require.NotSame(t, leaf1, other)
}

func statMode(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return info.Mode().String(), nil
}
