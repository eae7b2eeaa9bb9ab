package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := ResolvePath("")
		assert.Error(t, err)
	})

	t.Run("tilde", func(t *testing.T) {
		home, err := os.UserHomeDir()
		require.NoError(t, err)

		got, err := ResolvePath("~/stuff")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "stuff"), got)
	})

	t.Run("relative", func(t *testing.T) {
		got, err := ResolvePath("./x/../y")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(got))
	})
}

func TestNormPath(t *testing.T) {
	assert.Equal(t, "a/b", NormPath("/a/b"))
	assert.Equal(t, "a/b", NormPath("a//b/"))
	assert.Equal(t, "a/b", NormPath("a\\b"))
}

func TestDirAndFileExists(t *testing.T) {
	tmp := t.TempDir()
	file := filepath.Join(tmp, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.True(t, DirExists(tmp))
	assert.False(t, DirExists(file))
	assert.True(t, FileExists(file))
	assert.False(t, FileExists(tmp))
	assert.False(t, FileExists(filepath.Join(tmp, "nope")))
}

func TestEnsureDir(t *testing.T) {
	tmp := t.TempDir()
	nested := filepath.Join(tmp, "a", "b", "c")

	require.NoError(t, EnsureDir(nested))
	assert.True(t, DirExists(nested))

	// idempotent
	require.NoError(t, EnsureDir(nested))

	require.NoError(t, EnsureParent(filepath.Join(tmp, "x", "y", "file.txt")))
	assert.True(t, DirExists(filepath.Join(tmp, "x", "y")))
}
