package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/stretchr/testify/require"
)

// CatalogDir writes files (name -> content) into a fresh temp dir and returns
// its absolute path.
func CatalogDir(t *testing.T, files map[string]string) string {
	t.Helper()

	dir, err := filepath.Abs(t.TempDir())
	require.NoError(t, err, "Failed to get absolute path for temp dir")
	WriteFiles(t, dir, files)
	return dir
}

// WriteFiles writes catalog documents into dir.
func WriteFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

// SetupCatalogRepo initializes a loam repository in a temp dir, then writes
// files into it.
func SetupCatalogRepo(t *testing.T, files map[string]string, opts ...loam.Option) (string, core.Repository) {
	t.Helper()

	dir := CatalogDir(t, nil)
	repo, err := loam.Init(dir, opts...)
	require.NoError(t, err, "Failed to init loam repo")
	WriteFiles(t, dir, files)
	return dir, repo
}
