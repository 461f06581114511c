// Package assets copies the local files a rendered post references into the
// post's output directory and points the references at the copies.
package assets

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	perrors "git.home.luguber.info/inful/postbuilder/internal/errors"
	"git.home.luguber.info/inful/postbuilder/internal/fsutil"
	"git.home.luguber.info/inful/postbuilder/internal/logfields"
	"git.home.luguber.info/inful/postbuilder/internal/svg"
)

// Dir is the per-post output directory for assets.
const Dir = "assets"

// ErrMissingAsset is reported when a referenced local file does not exist.
var ErrMissingAsset = errors.New("missing asset")

// ErrAssetCollision is reported when two different files share a base name and
// therefore the same output path. The later copy wins.
var ErrAssetCollision = errors.New("asset base name collision")

// mediaTags are the elements whose src attribute is an asset reference.
var mediaTags = map[string]bool{"img": true, "video": true, "source": true}

// Pipeline copies assets for rendered posts.
type Pipeline struct {
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for warnings.
func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.logger = l } }

// New returns a Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result describes what Process did.
type Result struct {
	HTML   string
	Copied []string // output paths
	// Warnings holds one MissingAsset (or copy) error per unresolved reference.
	Warnings []error
}

// Process rewrites every local img, video and source reference in htmlText to
// assets/<base>, copying the file from postDir to outDir/assets. References
// in generated (already relative, e.g. "assets/flow.svg") are left alone.
// Problems with individual files are warnings and never fail the call.
func (p *Pipeline) Process(htmlText, postDir, outDir string, generated map[string]struct{}) (*Result, error) {
	res := &Result{}
	copied := map[string]string{}  // ref -> rewritten
	sources := map[string]string{} // base -> source path

	var out bytes.Buffer
	out.Grow(len(htmlText))
	z := html.NewTokenizer(strings.NewReader(htmlText))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				break
			}
			return nil, perrors.WrapError(z.Err(), perrors.CategoryAsset, "tokenize html").Build()
		}
		raw := z.Raw()
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			out.Write(raw)
			continue
		}

		tok := z.Token()
		idx := srcIndex(tok)
		if idx < 0 {
			out.Write(raw)
			continue
		}
		ref := tok.Attr[idx].Val
		if _, ok := generated[ref]; ok || !IsLocal(ref) {
			out.Write(raw)
			continue
		}

		rewritten, done := copied[ref]
		if !done {
			var err error
			rewritten, err = p.copyAsset(ref, postDir, outDir, sources, res)
			if err != nil {
				res.Warnings = append(res.Warnings, err)
				p.logger.Warn("Asset not copied", logfields.Path(ref), logfields.Post(postDir), logfields.Error(err))
				copied[ref] = ""
				out.Write(raw)
				continue
			}
			copied[ref] = rewritten
		}
		if rewritten == "" {
			out.Write(raw)
			continue
		}
		tok.Attr[idx].Val = rewritten
		out.WriteString(tok.String())
	}
	res.HTML = out.String()
	return res, nil
}

func (p *Pipeline) copyAsset(ref, postDir, outDir string, sources map[string]string, res *Result) (string, error) {
	rel, err := refPath(ref)
	if err != nil {
		return "", perrors.WrapError(err, perrors.CategoryAsset, "invalid asset reference").
			Warning().WithContext("path", ref).Build()
	}
	src := filepath.Join(postDir, filepath.FromSlash(rel))
	base := path.Base(rel)
	dst := filepath.Join(outDir, Dir, base)

	if prev, ok := sources[base]; ok && prev != src {
		err := perrors.WrapError(fmt.Errorf("%w: %s and %s", ErrAssetCollision, prev, src), perrors.CategoryAsset, "copy asset").
			Warning().WithContext("path", dst).Build()
		res.Warnings = append(res.Warnings, err)
		p.logger.Warn("Asset overwrites another with the same name",
			logfields.Path(src), logfields.Output(dst), slog.String("previous", prev))
	}

	if err := fsutil.CopyFile(src, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", perrors.WrapError(fmt.Errorf("%w: %s", ErrMissingAsset, ref), perrors.CategoryAsset, "copy asset").
				Warning().WithContext("path", src).Build()
		}
		return "", perrors.WrapError(err, perrors.CategoryAsset, "copy asset").
			Warning().WithContext("path", src).Build()
	}
	sources[base] = src
	res.Copied = append(res.Copied, dst)

	if strings.EqualFold(filepath.Ext(base), ".svg") {
		if err := svg.InjectFile(dst, svg.General); err != nil {
			// The plain copy stays usable.
			res.Warnings = append(res.Warnings, err)
			p.logger.Warn("SVG dark-mode injection failed", logfields.Path(dst), logfields.Error(err))
		}
	}
	return Dir + "/" + base, nil
}

// CopySource places the raw post source in outDir/assets for provenance.
func (p *Pipeline) CopySource(source, outDir string) (string, error) {
	dst := filepath.Join(outDir, Dir, filepath.Base(source))
	if err := fsutil.CopyFile(source, dst); err != nil {
		return "", perrors.WrapError(err, perrors.CategoryFileSystem, "copy post source").
			WithContext("path", source).Build()
	}
	return dst, nil
}

func srcIndex(tok html.Token) int {
	if !mediaTags[tok.Data] {
		return -1
	}
	for i, a := range tok.Attr {
		if a.Namespace == "" && a.Key == "src" {
			return i
		}
	}
	return -1
}

// IsLocal reports whether ref is a relative file reference: not empty, not
// absolute, not a URL and not a fragment.
func IsLocal(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "/") || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "//") {
		return false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}

// refPath strips query and fragment from a local reference and unescapes it.
func refPath(ref string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	if u.Path == "" {
		return "", fmt.Errorf("empty path in %q", ref)
	}
	return u.Path, nil
}
