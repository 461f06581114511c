package macro

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "git.home.luguber.info/inful/postbuilder/internal/errors"
)

func setup(t *testing.T, files map[string]string) Context {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "raw", "post")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, body := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	}
	return Context{Dir: dir, OutputDir: filepath.Join(root, "html", "post")}
}

func TestExpand_FileEmbed(t *testing.T) {
	ctx := setup(t, map[string]string{"example.py": "print('hi')\n"})

	exp, err := Expand("```python\n{embed-file example.py}\n```\n", ctx)
	require.NoError(t, err)
	assert.Equal(t, "```python\nprint('hi')\n\n```\n", exp.Text)
	assert.Equal(t, []string{filepath.Join(ctx.Dir, "example.py")}, exp.Embedded)
}

func TestExpand_MissingEmbed(t *testing.T) {
	ctx := setup(t, nil)

	_, err := Expand("before {embed-file nope.c} after", ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingEmbed))
	assert.Equal(t, perrors.CategoryMacro, perrors.GetCategory(err))
}

func TestExpand_DiagramEmbedRecordsJobWithoutRendering(t *testing.T) {
	ctx := setup(t, map[string]string{"assets/flow.mmd": "graph TD; A-->B"})

	exp, err := Expand("{embed-mermaid assets/flow.mmd}\n\n{embed-mermaid assets/flow.mmd}", ctx)
	require.NoError(t, err)

	assert.Equal(t, "![flow](assets/flow.svg)\n\n![flow](assets/flow.svg)", exp.Text)
	require.Len(t, exp.Diagrams, 1)
	assert.Equal(t, filepath.Join(ctx.Dir, "assets", "flow.mmd"), exp.Diagrams[0].Source)
	assert.Equal(t, filepath.Join(ctx.OutputDir, "assets", "flow.svg"), exp.Diagrams[0].Output)
	assert.NoFileExists(t, exp.Diagrams[0].Output)
	assert.Contains(t, exp.GeneratedRefs(), "assets/flow.svg")
}

func TestExpand_Tooltip(t *testing.T) {
	ctx := setup(t, nil)

	exp, err := Expand(`A {^Peripheral Component <Interconnect>|PCI} bus & {^x|"y"}`, ctx)
	require.NoError(t, err)
	assert.Equal(t,
		`A <span class="tooltip" title="Peripheral Component &lt;Interconnect&gt;">PCI</span> bus & <span class="tooltip" title="x">&#34;y&#34;</span>`,
		exp.Text)
}

func TestExpand_TooltipInsideEmbeddedFileIsExpanded(t *testing.T) {
	ctx := setup(t, map[string]string{"snippet.md": "uses {^Direct Memory Access|DMA}"})

	exp, err := Expand("Intro: {embed-file snippet.md}", ctx)
	require.NoError(t, err)
	assert.Equal(t, `Intro: uses <span class="tooltip" title="Direct Memory Access">DMA</span>`, exp.Text)
}

func TestExpand_EmbeddedMarkersAreNotReExpandedByFilePass(t *testing.T) {
	ctx := setup(t, map[string]string{
		"outer.md": "{embed-file inner.md}",
		"inner.md": "inner",
	})

	exp, err := Expand("{embed-file outer.md}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "{embed-file inner.md}", exp.Text)
	assert.Len(t, exp.Embedded, 1)
}

func TestExpand_NoDirectives(t *testing.T) {
	ctx := setup(t, nil)
	exp, err := Expand("plain {text} with braces", ctx)
	require.NoError(t, err)
	assert.Equal(t, "plain {text} with braces", exp.Text)
	assert.Empty(t, exp.Embedded)
	assert.Empty(t, exp.Diagrams)
}
