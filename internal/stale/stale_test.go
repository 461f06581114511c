package stale

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/postbuilder/internal/config"
)

func touch(t *testing.T, path string, mtime time.Time) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	if _, err := os.Stat(path); os.IsNotExist(err) {
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestIsStale(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	out := filepath.Join(dir, "out.html")
	src := touch(t, filepath.Join(dir, "POST.md"), now.Add(-2*time.Hour))

	stale, err := IsStale(out, []string{src})
	require.NoError(t, err)
	assert.True(t, stale, "missing output")

	touch(t, out, now.Add(-time.Hour))
	stale, err = IsStale(out, []string{src, filepath.Join(dir, "absent.png")})
	require.NoError(t, err)
	assert.False(t, stale, "output newer than every existing dependency")

	touch(t, src, now.Add(-time.Hour))
	stale, err = IsStale(out, []string{src})
	require.NoError(t, err)
	assert.True(t, stale, "equal mtime is stale")

	touch(t, src, now)
	stale, err = IsStale(out, []string{src})
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestDecide_ReportsNewestOffendingDependency(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	out := touch(t, filepath.Join(dir, "out.html"), now.Add(-time.Hour))
	older := touch(t, filepath.Join(dir, "a"), now.Add(-10*time.Minute))
	newest := touch(t, filepath.Join(dir, "b"), now)
	fresh := touch(t, filepath.Join(dir, "c"), now.Add(-2*time.Hour))

	c := NewController(Options{})
	d, err := c.Decide(out, []string{older, newest, fresh})
	require.NoError(t, err)
	assert.True(t, d.Stale)
	assert.Equal(t, ReasonDependency, d.Reason)
	assert.Equal(t, newest, d.Dependency)
}

func TestDecide_Force(t *testing.T) {
	dir := t.TempDir()
	out := touch(t, filepath.Join(dir, "out.html"), time.Now())

	d, err := NewController(Options{Force: true}).Decide(out, nil)
	require.NoError(t, err)
	assert.True(t, d.Stale)
	assert.Equal(t, ReasonForced, d.Reason)

	d, err = NewController(Options{}).Decide(out, nil)
	require.NoError(t, err)
	assert.False(t, d.Stale)
	assert.Equal(t, ReasonFresh, d.Reason)
}

func TestPostDeps(t *testing.T) {
	c := NewController(Options{
		Pipeline:    []string{"/bin/postbuilder", "", "/etc/postbuilder.yaml"},
		Registry:    "/raw/series.yaml",
		ContentRoot: "/raw",
	})

	deps := c.PostDeps("/raw/p/POST.md", []string{"/raw/p/example.py"}, []string{"/raw/p/assets/a.png", "/raw/p/example.py"}, false)
	assert.Equal(t, []string{
		"/raw/p/POST.md",
		"/bin/postbuilder",
		"/etc/postbuilder.yaml",
		"/raw/p/example.py",
		"/raw/p/assets/a.png",
	}, deps)

	deps = c.PostDeps("/raw/p/POST.md", nil, nil, true)
	assert.Contains(t, deps, "/raw/series.yaml")
	assert.NotContains(t, deps, "/raw", "a post page does not depend on its siblings")
}

func TestAggregateDeps(t *testing.T) {
	c := NewController(Options{
		Pipeline:    []string{"/etc/postbuilder.yaml"},
		Registry:    "/raw/series.yaml",
		ContentRoot: "/raw",
	})
	deps := c.AggregateDeps([]string{"/raw/a/POST.md", "/raw/b/POST.md"})
	assert.Equal(t, []string{"/raw/a/POST.md", "/raw/b/POST.md", "/etc/postbuilder.yaml", "/raw", "/raw/series.yaml"}, deps)
}

func TestAggregateDeps_RemovedPostDetectedThroughContentRoot(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "raw")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "b"), 0o755))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(root, past, past))
	out := touch(t, filepath.Join(dir, "html", "index.html"), time.Now().Add(-time.Hour))

	c := NewController(Options{ContentRoot: root})
	d, err := c.Decide(out, c.AggregateDeps(nil))
	require.NoError(t, err)
	require.False(t, d.Stale)

	require.NoError(t, os.Remove(filepath.Join(root, "b")))
	d, err = c.Decide(out, c.AggregateDeps(nil))
	require.NoError(t, err)
	assert.True(t, d.Stale)
	assert.Equal(t, root, d.Dependency)
}

func TestStampMode(t *testing.T) {
	dir := t.TempDir()

	path, changed, err := StampMode(dir, config.ModeProduction)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, filepath.Join(dir, ModeStampName), path)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, past, past))

	_, changed, err = StampMode(dir, config.ModeProduction)
	require.NoError(t, err)
	assert.False(t, changed)
	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.WithinDuration(t, past, st.ModTime(), time.Second, "unchanged mode keeps the stamp's mtime")

	_, changed, err = StampMode(dir, config.ModeDevelopment)
	require.NoError(t, err)
	assert.True(t, changed)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "development\n", string(data))
}
