// Package svg injects a dark-mode stylesheet into SVG documents.
package svg

import (
	"bytes"
	_ "embed"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"

	"git.home.luguber.info/inful/postbuilder/internal/fsutil"
)

// StyleID marks the injected <style> element; its presence makes injection a no-op.
const StyleID = "postbuilder-dark-mode"

const svgNamespace = "http://www.w3.org/2000/svg"

var (
	//go:embed styles/mermaid-dark.css
	mermaidCSS string
	//go:embed styles/diagram-dark.css
	diagramCSS string
)

// ErrNotSVG is returned when the document root is not an <svg> element.
var ErrNotSVG = errors.New("document root is not <svg>")

// Palette selects the stylesheet injected by Inject.
type Palette int

const (
	// Mermaid targets the class names emitted by the Mermaid CLI.
	Mermaid Palette = iota
	// General targets literal fill/stroke colours of arbitrary diagram exports.
	General
)

// CSS returns the stylesheet for the palette.
func (p Palette) CSS() string {
	if p == General {
		return diagramCSS
	}
	return mermaidCSS
}

// Inject inserts <defs><style id=StyleID> as the first child of the root
// element and declares the SVG namespace when the root has none. Every other
// byte of data is kept.
func Inject(data []byte, p Palette) ([]byte, error) {
	if bytes.Contains(data, []byte(`id="`+StyleID+`"`)) {
		return data, nil
	}

	start, end, root, err := rootStartTag(data)
	if err != nil {
		return nil, err
	}

	tag := data[start:end]
	selfClosing := bytes.HasSuffix(tag, []byte("/>"))
	head := bytes.TrimSuffix(tag, []byte(">"))
	if selfClosing {
		head = bytes.TrimSuffix(head, []byte("/"))
	}

	var out bytes.Buffer
	out.Grow(len(data) + len(p.CSS()) + 128)
	out.Write(data[:start])
	out.Write(head)
	if !hasDefaultNamespace(root) {
		out.WriteString(` xmlns="` + svgNamespace + `"`)
	}
	out.WriteString(">")
	out.WriteString(`<defs><style id="` + StyleID + `" type="text/css"><![CDATA[`)
	out.WriteString("\n" + p.CSS())
	out.WriteString(`]]></style></defs>`)
	if selfClosing {
		out.WriteString("</" + root.Name.Local + ">")
	}
	out.Write(data[end:])
	return out.Bytes(), nil
}

// InjectFile rewrites path in place with Inject, atomically.
func InjectFile(path string, p Palette) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	styled, err := Inject(data, p)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if bytes.Equal(styled, data) {
		return nil
	}
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, styled, st.Mode().Perm())
}

// rootStartTag returns the byte range of the root element's start tag.
func rootStartTag(data []byte) (start, end int, root xml.StartElement, err error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	for {
		offset := int(dec.InputOffset())
		tok, err := dec.RawToken()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, 0, root, ErrNotSVG
			}
			return 0, 0, root, fmt.Errorf("parse svg: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local != "svg" {
			return 0, 0, se, ErrNotSVG
		}
		return offset, int(dec.InputOffset()), se, nil
	}
}

func hasDefaultNamespace(se xml.StartElement) bool {
	for _, a := range se.Attr {
		if a.Name.Space == "" && a.Name.Local == "xmlns" {
			return true
		}
	}
	return false
}
