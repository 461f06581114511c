// Package macro expands the inline directives of a post body before markup
// conversion. Directives are resolved in a fixed order:
//
//	{embed-file <relpath>}     contents of a file next to the post
//	{embed-mermaid <relpath>}  image reference to the rendered diagram
//	{^hint|content}            inline span with a hover annotation
//
// Each pass is a single left-to-right replacement, so substituted text is
// never matched again by the same pass. Later passes do see text spliced in
// by earlier ones.
package macro

import (
	"errors"
	"fmt"
	"html"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	perrors "git.home.luguber.info/inful/postbuilder/internal/errors"
)

// ErrMissingEmbed is returned when an embed-file directive names a file that does not exist.
var ErrMissingEmbed = errors.New("missing embed")

// AssetsDir is the per-post output directory for copied and generated files.
const AssetsDir = "assets"

var (
	embedFileRe    = regexp.MustCompile(`\{embed-file\s+([^\s}]+)\s*\}`)
	embedMermaidRe = regexp.MustCompile(`\{embed-mermaid\s+([^\s}]+)\s*\}`)
	tooltipRe      = regexp.MustCompile(`\{\^([^|}]+)\|([^}]+)\}`)
)

// Context locates the post being expanded.
type Context struct {
	Dir       string // post source directory
	OutputDir string // post output directory
}

// DiagramJob is a diagram the post needs rendered.
type DiagramJob struct {
	Source string // absolute path of the diagram source
	Output string // absolute path of the SVG under the post's assets
}

// Expansion is the rewritten text plus what it depends on.
type Expansion struct {
	Text     string
	Embedded []string
	Diagrams []DiagramJob
}

// GeneratedRefs returns the relative image references produced for diagrams.
func (e *Expansion) GeneratedRefs() map[string]struct{} {
	refs := make(map[string]struct{}, len(e.Diagrams))
	for _, d := range e.Diagrams {
		refs[AssetsDir+"/"+filepath.Base(d.Output)] = struct{}{}
	}
	return refs
}

// Expand applies the file, diagram and tooltip passes to text. It has no
// side effects besides reading embedded files.
func Expand(text string, doc Context) (*Expansion, error) {
	exp := &Expansion{}

	text, err := expandFiles(text, doc, exp)
	if err != nil {
		return nil, err
	}
	text, err = expandDiagrams(text, doc, exp)
	if err != nil {
		return nil, err
	}
	exp.Text = expandTooltips(text)
	return exp, nil
}

func expandFiles(text string, doc Context, exp *Expansion) (string, error) {
	var firstErr error
	out := embedFileRe.ReplaceAllStringFunc(text, func(marker string) string {
		if firstErr != nil {
			return marker
		}
		rel := embedFileRe.FindStringSubmatch(marker)[1]
		path, err := filepath.Abs(filepath.Join(doc.Dir, filepath.FromSlash(rel)))
		if err != nil {
			firstErr = err
			return marker
		}
		data, err := os.ReadFile(path)
		if err != nil {
			firstErr = embedError(rel, path, err)
			return marker
		}
		exp.Embedded = append(exp.Embedded, path)
		return string(data)
	})
	return out, firstErr
}

func embedError(rel, path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return perrors.WrapError(fmt.Errorf("%w: %s", ErrMissingEmbed, rel), perrors.CategoryMacro, "embed-file").
			WithContext("path", path).Build()
	}
	return perrors.WrapError(err, perrors.CategoryFileSystem, "embed-file").
		WithContext("path", path).Build()
}

func expandDiagrams(text string, doc Context, exp *Expansion) (string, error) {
	seen := map[string]bool{}
	var firstErr error
	out := embedMermaidRe.ReplaceAllStringFunc(text, func(marker string) string {
		if firstErr != nil {
			return marker
		}
		rel := embedMermaidRe.FindStringSubmatch(marker)[1]
		src, err := filepath.Abs(filepath.Join(doc.Dir, filepath.FromSlash(rel)))
		if err != nil {
			firstErr = err
			return marker
		}
		base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		name := base + ".svg"
		outPath := filepath.Join(doc.OutputDir, AssetsDir, name)
		if !seen[outPath] {
			seen[outPath] = true
			exp.Diagrams = append(exp.Diagrams, DiagramJob{Source: src, Output: outPath})
		}
		return fmt.Sprintf("![%s](%s/%s)", base, AssetsDir, name)
	})
	return out, firstErr
}

func expandTooltips(text string) string {
	return tooltipRe.ReplaceAllStringFunc(text, func(marker string) string {
		m := tooltipRe.FindStringSubmatch(marker)
		return fmt.Sprintf(`<span class="tooltip" title="%s">%s</span>`,
			html.EscapeString(strings.TrimSpace(m[1])), html.EscapeString(m[2]))
	})
}
