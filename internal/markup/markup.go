// Package markup converts expanded Markdown into HTML with goldmark.
package markup

import (
	"bytes"
	"fmt"

	"github.com/inful/mdfp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	perrors "git.home.luguber.info/inful/postbuilder/internal/errors"
)

// converterVersion is folded into cache keys; bump it when the rendered
// output for the same input changes.
const converterVersion = "goldmark-gfm-anchors/1"

// Heading is a section heading found during conversion.
type Heading struct {
	Level int    `json:"level"`
	ID    string `json:"id"`
	Text  string `json:"text"`
}

// Result is the converted HTML and the headings extracted from it.
type Result struct {
	HTML     string    `json:"html"`
	Headings []Heading `json:"headings"`
}

// Converter renders Markdown and memoizes results by source text.
type Converter struct {
	md    goldmark.Markdown
	cache Cache
}

// Option configures a Converter.
type Option func(*Converter)

// WithCache replaces the default in-memory cache.
func WithCache(c Cache) Option {
	return func(conv *Converter) {
		if c != nil {
			conv.cache = c
		}
	}
}

// NewConverter builds a converter with GFM, footnotes, heading IDs and
// heading anchor links. Raw HTML in the source is passed through.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Footnote),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
				parser.WithASTTransformers(util.Prioritized(headingAnchors{}, 500)),
			),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		cache: NewMemoryCache(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key is the cache key for source.
func Key(source string) string {
	return mdfp.CalculateFingerprintFromParts(converterVersion, source)
}

// Convert renders source, consulting the cache first.
func (c *Converter) Convert(source string) (*Result, error) {
	key := Key(source)
	if r, ok := c.cache.Get(key); ok {
		return r, nil
	}

	pc := parser.NewContext()
	var buf bytes.Buffer
	if err := c.md.Convert([]byte(source), &buf, parser.WithContext(pc)); err != nil {
		return nil, perrors.WrapError(err, perrors.CategoryMarkup, "convert markdown").Build()
	}

	r := &Result{HTML: buf.String()}
	if hs, ok := pc.Get(headingsKey).([]Heading); ok {
		r.Headings = hs
	}
	c.cache.Put(key, r)
	return r, nil
}

var headingsKey = parser.NewContextKey()

// headingAnchors appends a self-link to every heading that has an id and
// records the headings in the parser context.
type headingAnchors struct{}

func (headingAnchors) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	source := reader.Source()
	var headings []Heading

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		raw, ok := h.AttributeString("id")
		if !ok {
			return ast.WalkSkipChildren, nil
		}
		id := fmt.Sprintf("%s", raw)
		headings = append(headings, Heading{Level: h.Level, ID: id, Text: nodeText(h, source)})

		link := ast.NewLink()
		link.Destination = []byte("#" + id)
		link.SetAttributeString("class", []byte("anchor"))
		link.AppendChild(link, ast.NewString([]byte("#")))
		h.AppendChild(h, link)
		return ast.WalkSkipChildren, nil
	})

	pc.Set(headingsKey, headings)
}

func nodeText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}
