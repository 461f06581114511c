package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "config.yaml").
			Build()

		assert.Equal(t, CategoryConfig, err.Category())
		assert.Equal(t, SeverityFatal, err.Severity())
		assert.Equal(t, "invalid configuration", err.Message())

		file, ok := err.Context().GetString("file")
		require.True(t, ok)
		assert.Equal(t, "config.yaml", file)
	})

	t.Run("Wrapped sentinel survives errors.Is", func(t *testing.T) {
		sentinel := stderrors.New("sentinel")
		err := WrapError(sentinel, CategoryMacro, "embed failed").Build()
		outer := fmt.Errorf("post foo: %w", err)

		assert.ErrorIs(t, outer, sentinel)
		assert.True(t, HasCategory(outer, CategoryMacro))
		assert.Equal(t, SeverityError, GetSeverity(outer))
	})

	t.Run("WithContext does not mutate the original", func(t *testing.T) {
		base := NewError(CategoryAsset, "missing").Warning().Build()
		derived := base.WithContext("path", "a.png")

		_, ok := base.Context().Get("path")
		assert.False(t, ok)
		v, ok := derived.Context().GetString("path")
		require.True(t, ok)
		assert.Equal(t, "a.png", v)
	})
}

func TestUnclassifiedDefaults(t *testing.T) {
	err := stderrors.New("plain")
	assert.Equal(t, CategoryInternal, GetCategory(err))
	assert.Equal(t, SeverityError, GetSeverity(err))
	assert.False(t, IsFatal(err))
}

func TestCLIErrorAdapterExitCodes(t *testing.T) {
	a := NewCLIErrorAdapter(false, nil)
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", stderrors.New("x"), 1},
		{"config", ConfigError("bad").Build(), 7},
		{"validation", ValidationError("bad").Build(), 2},
		{"metadata", NewError(CategoryMetadata, "slug").Fatal().Build(), 11},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, a.ExitCodeFor(tc.err))
		})
	}
}

func TestCLIErrorAdapterFormat(t *testing.T) {
	cause := stderrors.New("disk full")
	err := WrapError(cause, CategoryFileSystem, "write page").Build()

	assert.Equal(t, "Error: write page: disk full", NewCLIErrorAdapter(false, nil).FormatError(err))
	assert.Contains(t, NewCLIErrorAdapter(true, nil).FormatError(err), "[filesystem:error]")
}
