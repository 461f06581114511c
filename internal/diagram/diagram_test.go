package diagram

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/postbuilder/internal/config"
	perrors "git.home.luguber.info/inful/postbuilder/internal/errors"
	"git.home.luguber.info/inful/postbuilder/internal/retry"
	"git.home.luguber.info/inful/postbuilder/internal/svg"
)

type fakeRunner struct {
	mu       sync.Mutex
	calls    int
	args     [][]string
	failures int // number of leading calls that fail
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.args = append(f.args, append([]string{name}, args...))
	if f.calls <= f.failures {
		return []byte("Error: parse error on line 1"), errors.New("exit status 1")
	}
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "-o" {
			return nil, os.WriteFile(args[i+1], []byte(`<svg id="m"><g/></svg>`), 0o644)
		}
	}
	return nil, errors.New("no -o flag")
}

type fixture struct {
	source, stylesheet, output string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		source:     filepath.Join(dir, "raw", "flow.mmd"),
		stylesheet: filepath.Join(dir, "mermaid.css"),
		output:     filepath.Join(dir, "html", "post", "assets", "flow.svg"),
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(f.source), 0o755))
	require.NoError(t, os.WriteFile(f.source, []byte("graph TD; A-->B"), 0o644))
	require.NoError(t, os.WriteFile(f.stylesheet, []byte(".node{}"), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(f.source, past, past))
	require.NoError(t, os.Chtimes(f.stylesheet, past, past))
	return f
}

func newRenderer(f fixture, runner Runner) *Renderer {
	return NewRenderer(config.DiagramConfig{
		Command:    "mmdc",
		Stylesheet: f.stylesheet,
		Timeout:    time.Second,
	}, WithRunner(runner), WithPolicy(retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 2)))
}

func TestRender_InvokesToolAndInjectsStyle(t *testing.T) {
	f := newFixture(t)
	runner := &fakeRunner{}
	r := newRenderer(f, runner)

	require.NoError(t, r.Render(context.Background(), f.source, f.output))
	assert.Equal(t, 1, runner.calls)

	args := runner.args[0]
	assert.Equal(t, "mmdc", args[0])
	assert.Equal(t, []string{"-i", f.source}, args[1:3])
	assert.Equal(t, "-o", args[3])
	assert.Equal(t, []string{"-b", "transparent", "--cssFile", f.stylesheet}, args[5:9])

	data, err := os.ReadFile(f.output)
	require.NoError(t, err)
	assert.Contains(t, string(data), svg.StyleID)
	assert.Contains(t, string(data), `xmlns="http://www.w3.org/2000/svg"`)

	entries, err := os.ReadDir(filepath.Dir(f.output))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary render file is cleaned up")
}

func TestRender_CacheHitSkipsTool(t *testing.T) {
	f := newFixture(t)
	runner := &fakeRunner{}
	r := newRenderer(f, runner)

	require.NoError(t, r.Render(context.Background(), f.source, f.output))
	first, err := os.ReadFile(f.output)
	require.NoError(t, err)

	require.NoError(t, r.Render(context.Background(), f.source, f.output))
	second, err := os.ReadFile(f.output)
	require.NoError(t, err)

	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, first, second)
}

func TestRender_StylesheetChangeForcesRerender(t *testing.T) {
	f := newFixture(t)
	runner := &fakeRunner{}
	r := newRenderer(f, runner)
	require.NoError(t, r.Render(context.Background(), f.source, f.output))

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(f.stylesheet, future, future))

	require.NoError(t, r.Render(context.Background(), f.source, f.output))
	assert.Equal(t, 2, runner.calls)
}

func TestRender_RetriesThenSucceeds(t *testing.T) {
	f := newFixture(t)
	runner := &fakeRunner{failures: 2}
	r := newRenderer(f, runner)

	require.NoError(t, r.Render(context.Background(), f.source, f.output))
	assert.Equal(t, 3, runner.calls)
	assert.FileExists(t, f.output)
}

func TestRender_FailureKeepsPreviousOutput(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.output), 0o755))
	require.NoError(t, os.WriteFile(f.output, []byte("<svg>old</svg>"), 0o644))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(f.output, past, past))

	runner := &fakeRunner{failures: 10}
	r := newRenderer(f, runner)

	err := r.Render(context.Background(), f.source, f.output)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRenderToolFailure))
	assert.Equal(t, perrors.SeverityWarning, perrors.GetSeverity(err))
	assert.Equal(t, 3, runner.calls, "one attempt plus two retries")

	data, err := os.ReadFile(f.output)
	require.NoError(t, err)
	assert.Equal(t, "<svg>old</svg>", string(data))
}

func TestRender_MissingSource(t *testing.T) {
	f := newFixture(t)
	runner := &fakeRunner{}
	r := newRenderer(f, runner)

	err := r.Render(context.Background(), filepath.Join(filepath.Dir(f.source), "absent.mmd"), f.output)
	require.ErrorIs(t, err, ErrRenderToolFailure)
	assert.Zero(t, runner.calls)
}

func TestFresh(t *testing.T) {
	f := newFixture(t)

	fresh, err := Fresh(f.source, f.stylesheet, f.output)
	require.NoError(t, err)
	assert.False(t, fresh, "missing output is never fresh")

	require.NoError(t, os.MkdirAll(filepath.Dir(f.output), 0o755))
	require.NoError(t, os.WriteFile(f.output, nil, 0o644))
	fresh, err = Fresh(f.source, f.stylesheet, f.output)
	require.NoError(t, err)
	assert.True(t, fresh)

	same := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(f.output, same, same))
	require.NoError(t, os.Chtimes(f.source, same, same))
	fresh, err = Fresh(f.source, f.stylesheet, f.output)
	require.NoError(t, err)
	assert.False(t, fresh, "equal mtimes are stale")
}
