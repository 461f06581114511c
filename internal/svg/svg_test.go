package svg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mermaidOutput = `<?xml version="1.0" encoding="UTF-8"?>
<!-- generated -->
<svg id="my-svg" width="100%" xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink"><style>#my-svg{fill:#333;}</style><g><rect x="1"/></g></svg>
`

func TestInject_InsertsFirstChildAndKeepsRest(t *testing.T) {
	out, err := Inject([]byte(mermaidOutput), Mermaid)
	require.NoError(t, err)

	s := string(out)
	openTag := `<svg id="my-svg" width="100%" xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink">`
	require.True(t, strings.HasPrefix(s, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<!-- generated -->\n"+openTag+`<defs><style id="postbuilder-dark-mode"`))
	assert.True(t, strings.HasSuffix(s, `]]></style></defs><style>#my-svg{fill:#333;}</style><g><rect x="1"/></g></svg>`+"\n"))
	assert.Equal(t, 1, strings.Count(s, "xmlns=\""), "namespace already present")
	assert.Contains(t, s, "prefers-color-scheme: dark")

	// Removing the injected node restores the input byte for byte.
	startIdx := strings.Index(s, "<defs>")
	endIdx := strings.Index(s, "</defs>") + len("</defs>")
	assert.Equal(t, mermaidOutput, s[:startIdx]+s[endIdx:])
}

func TestInject_AddsMissingNamespace(t *testing.T) {
	out, err := Inject([]byte(`<svg width="10"><circle r="1"/></svg>`), General)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), `<svg width="10" xmlns="http://www.w3.org/2000/svg"><defs>`))
	assert.Contains(t, string(out), `[fill="#ffffff"]`)
}

func TestInject_SelfClosingRoot(t *testing.T) {
	out, err := Inject([]byte(`<svg xmlns="http://www.w3.org/2000/svg"/>`), Mermaid)
	require.NoError(t, err)
	s := string(out)
	assert.True(t, strings.HasPrefix(s, `<svg xmlns="http://www.w3.org/2000/svg"><defs>`))
	assert.True(t, strings.HasSuffix(s, `</defs></svg>`))
}

func TestInject_Idempotent(t *testing.T) {
	once, err := Inject([]byte(mermaidOutput), Mermaid)
	require.NoError(t, err)
	twice, err := Inject(once, Mermaid)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestInject_RejectsNonSVG(t *testing.T) {
	_, err := Inject([]byte(`<html><body/></html>`), Mermaid)
	require.ErrorIs(t, err, ErrNotSVG)

	_, err = Inject([]byte(``), Mermaid)
	require.ErrorIs(t, err, ErrNotSVG)
}

func TestInjectFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diagram.svg")
	require.NoError(t, os.WriteFile(path, []byte(`<svg><g/></svg>`), 0o644))

	require.NoError(t, InjectFile(path, General))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), StyleID)

	st1, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, InjectFile(path, General))
	st2, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, st1.ModTime(), st2.ModTime(), "already styled files are not rewritten")
}
