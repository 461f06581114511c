package assets

import (
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

var refParser = goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser()

// References returns the local media files referenced by markdown, resolved
// against postDir, in document order without duplicates. Markdown images and
// img/video/source tags in raw HTML are both considered. It has no side effects.
func References(markdown, postDir string) []string {
	body := []byte(markdown)
	root := refParser.Parse(text.NewReader(body))

	var refs []string
	seen := map[string]bool{}
	add := func(ref string) {
		if !IsLocal(ref) {
			return
		}
		rel, err := refPath(ref)
		if err != nil {
			return
		}
		p := filepath.Join(postDir, filepath.FromSlash(rel))
		if !seen[p] {
			seen[p] = true
			refs = append(refs, p)
		}
	}

	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Image:
			add(string(node.Destination))
		case *gmast.HTMLBlock:
			var sb strings.Builder
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				sb.Write(seg.Value(body))
			}
			if node.HasClosure() {
				sb.Write(node.ClosureLine.Value(body))
			}
			for _, ref := range htmlRefs(sb.String()) {
				add(ref)
			}
		case *gmast.RawHTML:
			var sb strings.Builder
			for i := 0; i < node.Segments.Len(); i++ {
				seg := node.Segments.At(i)
				sb.Write(seg.Value(body))
			}
			for _, ref := range htmlRefs(sb.String()) {
				add(ref)
			}
		}
		return gmast.WalkContinue, nil
	})
	return refs
}

// htmlRefs extracts src values of media tags from an HTML fragment.
func htmlRefs(fragment string) []string {
	var refs []string
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return refs
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		tok := z.Token()
		if i := srcIndex(tok); i >= 0 {
			refs = append(refs, tok.Attr[i].Val)
		}
	}
}
