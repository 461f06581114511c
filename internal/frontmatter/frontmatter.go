// Package frontmatter splits a post source into its YAML header and Markdown body.
package frontmatter

import (
	"bytes"
	"errors"

	"github.com/inful/mdfp"
	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter indicates the source opened a `---` block that never closes.
var ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Document is a source split at its front-matter delimiters.
type Document struct {
	FrontMatter []byte // without delimiters
	Body        []byte
	Present     bool // source started with a front-matter block
}

// Split separates a `---` delimited YAML header from the body. A source
// without an opening delimiter is returned whole as Body.
func Split(content []byte) (Document, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	nl := newline(content)

	open := []byte("---" + nl)
	if !bytes.HasPrefix(content, open) {
		return Document{Body: content}, nil
	}
	rest := content[len(open):]

	if bytes.HasPrefix(rest, open) {
		return Document{FrontMatter: []byte{}, Body: rest[len(open):], Present: true}, nil
	}

	closing := []byte(nl + "---")
	idx := bytes.Index(rest, closing)
	for idx >= 0 {
		after := rest[idx+len(closing):]
		// The closing line is `---` alone, followed by a newline or EOF.
		if len(after) == 0 {
			return Document{FrontMatter: rest[:idx+len(nl)], Body: []byte{}, Present: true}, nil
		}
		if bytes.HasPrefix(after, []byte(nl)) {
			return Document{FrontMatter: rest[:idx+len(nl)], Body: after[len(nl):], Present: true}, nil
		}
		next := bytes.Index(after, closing)
		if next < 0 {
			break
		}
		idx += len(closing) + next
	}
	return Document{}, ErrMissingClosingDelimiter
}

// Decode unmarshals the front matter into v. An empty header leaves v untouched.
func (d Document) Decode(v any) error {
	if len(bytes.TrimSpace(d.FrontMatter)) == 0 {
		return nil
	}
	return yaml.Unmarshal(d.FrontMatter, v)
}

// Fingerprint identifies the exact source text of the document.
func (d Document) Fingerprint() string {
	return mdfp.CalculateFingerprintFromParts(string(d.FrontMatter), string(d.Body))
}

func newline(content []byte) string {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
