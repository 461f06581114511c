package post

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pcie:\n  - learning-pcie\n  - pcie-part-2\nboot: [minimizing-boot]\n"), 0o600))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"boot", "pcie"}, reg.Names())
	assert.Equal(t, []string{"learning-pcie", "pcie-part-2"}, reg.Members("pcie"))
}

func TestLoadRegistry_MissingFileIsEmpty(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, reg.Names())
}

func TestResolve_RegistryOrder(t *testing.T) {
	root := t.TempDir()
	writePost(t, root, "part-2", "POST.md", postSource("Part Two", "2023-02-01", "series: pcie\n"))
	writePost(t, root, "part-1", "POST.md", postSource("Part One", "2023-01-01", "series: pcie\n"))
	reg := newRegistry(map[string][]string{"pcie": {"part-1", "part-2"}})

	s, err := reg.Resolve("pcie", root, NewCache())
	require.NoError(t, err)
	require.Len(t, s.Members, 2)
	assert.Equal(t, "Part One", s.Members[0].Meta.RawTitle)
	assert.Equal(t, "Part Two", s.Members[1].Meta.RawTitle)
}

func TestResolve_Unresolved(t *testing.T) {
	root := t.TempDir()
	reg := newRegistry(map[string][]string{"empty": {}, "broken": {"missing-dir"}})

	for _, name := range []string{"unknown", "empty", "broken"} {
		_, err := reg.Resolve(name, root, nil)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrSeriesUnresolved), name)
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Learning Pcie", DisplayName("learning-pcie"))
	assert.Equal(t, "Linux Boot", DisplayName("linux_boot"))
}
