package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()

	t.Run("creates parent directories and sets mode", func(t *testing.T) {
		path := filepath.Join(dir, "conf", "node.key")

		err := WriteFileAtomic(path, []byte("secret"), 0o600)
		require.NoError(t, err)

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "secret", string(content))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("overwrites existing content", func(t *testing.T) {
		path := filepath.Join(dir, "file")
		require.NoError(t, WriteFileAtomic(path, []byte("first"), 0o644))
		require.NoError(t, WriteFileAtomic(path, []byte("second"), 0o644))

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "second", string(content))
	})

	t.Run("empty content is refused and nothing is left behind", func(t *testing.T) {
		sub := filepath.Join(dir, "empty")
		err := WriteFileAtomic(filepath.Join(sub, "file"), nil, 0o644)
		assert.True(t, errors.Is(err, ErrEmptyContent))
		assert.False(t, Exists(sub))
	})
}

func TestCopyDir(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "copy")

	require.NoError(t, os.MkdirAll(filepath.Join(src, "a", "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a", "b", "sdk.crt"), []byte("crt"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "top"), []byte("top"), 0o755))

	require.NoError(t, CopyDir(src, dst))

	content, err := os.ReadFile(filepath.Join(dst, "a", "b", "sdk.crt"))
	require.NoError(t, err)
	assert.Equal(t, "crt", string(content))
	assert.True(t, IsDir(filepath.Join(dst, "a")))

	info, err := os.Stat(filepath.Join(dst, "top"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o100)
}

func TestMakeExecutable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "start.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/bash"), 0o644))

	require.NoError(t, MakeExecutable(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	assert.Error(t, MakeExecutable(filepath.Join(t.TempDir(), "missing")))
}
