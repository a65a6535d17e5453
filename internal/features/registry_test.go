package features

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/mfcc-go/internal/errors"
)

func TestNewLoader_Builtin(t *testing.T) {
	t.Parallel()

	loader, err := NewLoader(Builtin, ModelOptions{
		FFTSize:      64,
		HopSize:      16,
		MelBands:     8,
		Coefficients: 2,
		TopDB:        80,
	})
	require.NoError(t, err)

	module, err := loader.Load()
	require.NoError(t, err)
	defer func() { assert.NoError(t, module.Close()) }()

	out, err := module.Infer(context.Background(), make([]float32, 64), 64, 1, 8000)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestNewLoader_UnknownType(t *testing.T) {
	t.Parallel()

	_, err := NewLoader("onnx", ModelOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	assert.Contains(t, err.Error(), Builtin)
}

func TestRegister(t *testing.T) {
	t.Parallel()

	called := false
	Register("test-registry", func(opts ModelOptions) (Loader, error) {
		called = true
		assert.Equal(t, "/models/x.bin", opts.Path)
		return LoaderFunc(func() (Module, error) { return nil, nil }), nil
	})

	_, err := NewLoader("test-registry", ModelOptions{Path: "/models/x.bin"})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Contains(t, ModelTypes(), "test-registry")

	assert.Panics(t, func() { Register("nil-factory", nil) })
}
