package inference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveORTLibPathOverride(t *testing.T) {
	dir := t.TempDir()

	t.Run("explicit file", func(t *testing.T) {
		lib := filepath.Join(dir, "libonnxruntime.so")
		require.NoError(t, os.WriteFile(lib, []byte("x"), 0o644))

		path, err := resolveORTLibPath(lib)
		require.NoError(t, err)
		assert.Equal(t, lib, path)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := resolveORTLibPath(filepath.Join(dir, "nope.so"))
		assert.Error(t, err)
	})

	t.Run("directory rejected", func(t *testing.T) {
		_, err := resolveORTLibPath(dir)
		assert.Error(t, err)
	})
}

func TestNewONNXClassifierMissingModel(t *testing.T) {
	// Fails fast before touching the runtime when the weight file is gone.
	_, err := NewONNXClassifier(Config{
		ModelPath: filepath.Join(t.TempDir(), "missing.onnx"),
	})
	assert.Error(t, err)
}
