package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldIgnore(t *testing.T) {
	tests := []struct {
		path   string
		ignore bool
	}{
		{"/p/POST.md", false},
		{"/p/assets/pic.png", false},
		{"/p/.POST.md.swp", true},
		{"/p/POST.md~", true},
		{"/p/#POST.md#", true},
		{"/p/.hidden", true},
		{"/p/4913", true},
		{"/p/notes.swx", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.ignore, ShouldIgnore(tt.path))
		})
	}
}

func TestTouchMarkdown(t *testing.T) {
	dir := t.TempDir()
	past := time.Now().Add(-time.Hour)
	files := map[string]bool{
		"POST.md":          true,
		"nested/extra.md":  true,
		"assets/image.png": false,
	}
	for rel := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		require.NoError(t, os.Chtimes(path, past, past))
	}

	n, err := TouchMarkdown(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for rel, touched := range files {
		st, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
		require.NoError(t, err)
		assert.Equal(t, touched, st.ModTime().After(past.Add(time.Minute)), rel)
	}
}

func TestNew_RejectsMissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent"), func(context.Context) error { return nil })
	require.Error(t, err)
}

func TestRelevant(t *testing.T) {
	root := t.TempDir()
	postDir := filepath.Join(root, "post")
	require.NoError(t, os.Mkdir(postDir, 0o755))
	cfg := filepath.Join(root, "postbuilder.yaml")

	w, err := New(postDir, nil, WithFiles(cfg))
	require.NoError(t, err)

	assert.True(t, w.relevant(filepath.Join(postDir, "POST.md")))
	assert.True(t, w.relevant(filepath.Join(postDir, "assets", "a.png")))
	assert.True(t, w.relevant(cfg))
	assert.False(t, w.relevant(filepath.Join(root, "other.yaml")))
	assert.False(t, w.relevant(filepath.Join(root, "post-two", "POST.md")))
	assert.False(t, w.relevant(filepath.Join(postDir, ".POST.md.swp")))
}

func TestDebouncer_CoalescesBursts(t *testing.T) {
	out := make(chan struct{}, 1)
	trigger, stop := debouncer(20*time.Millisecond, out)
	defer stop()

	for range 5 {
		trigger()
	}
	select {
	case <-out:
	case <-time.After(2 * time.Second):
		t.Fatal("no signal after burst")
	}
	select {
	case <-out:
		t.Fatal("burst produced more than one signal")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRun_RebuildsOnChangeAndTouchesOnShutdown(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "POST.md")
	require.NoError(t, os.WriteFile(source, []byte("one"), 0o644))

	var builds atomic.Int32
	built := make(chan struct{}, 10)
	w, err := New(dir, func(context.Context) error {
		builds.Add(1)
		built <- struct{}{}
		return nil
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	wait := func(msg string) {
		t.Helper()
		select {
		case <-built:
		case <-time.After(5 * time.Second):
			t.Fatal(msg)
		}
	}
	wait("no initial build")

	// Give the watcher a moment to register before changing files.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(source, []byte("two"), 0o644))
	wait("no rebuild after change")

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(source, past, past))
	time.Sleep(100 * time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	st, err := os.Stat(source)
	require.NoError(t, err)
	assert.True(t, st.ModTime().After(past.Add(time.Minute)), "markdown touched on shutdown")
	assert.GreaterOrEqual(t, builds.Load(), int32(2))
}
