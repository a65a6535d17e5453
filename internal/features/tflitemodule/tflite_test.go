package tflitemodule

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/mfcc-go/internal/errors"
	"github.com/tphakala/mfcc-go/internal/features"
)

func TestLoad_MissingModelFile(t *testing.T) {
	t.Parallel()

	_, err := NewLoader(Config{ModelPath: filepath.Join(t.TempDir(), "missing.tflite")}).Load()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelLoad))
}

func TestLoad_InvalidModelData(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "garbage.tflite")
	require.NoError(t, os.WriteFile(path, []byte("not a flatbuffer"), 0o600))

	_, err := Load(Config{ModelPath: path, Threads: 1})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelInit))
}

func TestRegisteredFactory(t *testing.T) {
	t.Parallel()

	_, err := features.NewLoader("tflite", features.ModelOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	loader, err := features.NewLoader("tflite", features.ModelOptions{Path: filepath.Join(t.TempDir(), "missing.tflite")})
	require.NoError(t, err)
	_, err = loader.Load()
	assert.True(t, errors.IsCategory(err, errors.CategoryModelLoad))
}
