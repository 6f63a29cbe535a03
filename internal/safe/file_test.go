package safe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bin")
	require.NoError(t, os.WriteFile(path, []byte("\x7fELF...."), 0o600))

	t.Run("regular file", func(t *testing.T) {
		data, err := ReadFile(path, 0)
		require.NoError(t, err)
		assert.Equal(t, []byte("\x7fELF...."), data)
	})

	t.Run("symlink is followed", func(t *testing.T) {
		link := filepath.Join(dir, "link")
		require.NoError(t, os.Symlink(path, link))
		data, err := ReadFile(link, 0)
		require.NoError(t, err)
		assert.Len(t, data, 8)
	})

	t.Run("too large", func(t *testing.T) {
		_, err := ReadFile(path, 4)
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("exact limit", func(t *testing.T) {
		_, err := ReadFile(path, 8)
		assert.NoError(t, err)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := ReadFile(dir, 0)
		assert.ErrorContains(t, err, "not a regular file")
	})

	t.Run("missing", func(t *testing.T) {
		_, err := ReadFile(filepath.Join(dir, "nope"), 0)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
