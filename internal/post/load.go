package post

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	perrors "git.home.luguber.info/inful/postbuilder/internal/errors"
)

// SourceName is the preferred post source file name.
const SourceName = "POST.md"

// Post is one content directory with its parsed metadata.
type Post struct {
	Dir    string // identity
	Source string
	Meta   *Metadata
}

// Name is the directory name, used by the series registry and the build filter.
func (p *Post) Name() string { return filepath.Base(p.Dir) }

// Load reads and parses the source of the post in dir. A nil cache parses
// without memoization.
func Load(dir string, cache *Cache) (*Post, error) {
	source, err := FindSource(dir)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(source)
	if err != nil {
		return nil, perrors.WrapError(err, perrors.CategoryFileSystem, "read post source").
			WithContext("path", source).Build()
	}

	var meta *Metadata
	if cache != nil {
		meta, err = cache.Parse(raw)
	} else {
		meta, err = Parse(raw)
	}
	if err != nil {
		if ce, ok := perrors.AsClassified(err); ok {
			return nil, ce.WithContext("path", source)
		}
		return nil, err
	}
	return &Post{Dir: dir, Source: source, Meta: meta}, nil
}

// FindSource locates POST.md in dir, falling back to the only *.md file.
func FindSource(dir string) (string, error) {
	preferred := filepath.Join(dir, SourceName)
	if st, err := os.Stat(preferred); err == nil && st.Mode().IsRegular() {
		return preferred, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", perrors.WrapError(err, perrors.CategoryFileSystem, "read post directory").
			WithContext("path", dir).Build()
	}
	var candidates []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			candidates = append(candidates, filepath.Join(dir, e.Name()))
		}
	}
	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
		return "", perrors.NewError(perrors.CategoryNotFound, "post directory has no markdown source").
			WithContext("path", dir).Build()
	default:
		return "", perrors.NewError(perrors.CategoryNotFound,
			fmt.Sprintf("post directory has %d markdown files and no %s", len(candidates), SourceName)).
			WithContext("path", dir).Build()
	}
}

// Discover lists the post directories under root, sorted by name. Hidden
// directories are skipped.
func Discover(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, perrors.WrapError(err, perrors.CategoryFileSystem, "read content root").
			WithContext("path", root).Build()
	}
	var dirs []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dirs = append(dirs, filepath.Join(root, e.Name()))
	}
	sort.Strings(dirs)
	return dirs, nil
}
