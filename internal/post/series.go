package post

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	perrors "git.home.luguber.info/inful/postbuilder/internal/errors"
)

// ErrSeriesUnresolved is returned when a referenced series has no loadable members.
var ErrSeriesUnresolved = errors.New("series unresolved")

// Registry maps a series name to its ordered member directory names.
type Registry struct {
	Path    string
	entries map[string][]string
}

// Series is a resolved registry entry.
type Series struct {
	Name    string
	Members []*Post
}

// LoadRegistry reads the series registry. A missing file yields an empty registry.
func LoadRegistry(path string) (*Registry, error) {
	reg := &Registry{Path: path, entries: map[string][]string{}}
	if path == "" {
		return reg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return reg, nil
		}
		return nil, perrors.WrapError(err, perrors.CategoryConfig, "read series registry").
			WithContext("path", path).Build()
	}
	if err := yaml.Unmarshal(data, &reg.entries); err != nil {
		return nil, perrors.WrapError(err, perrors.CategoryConfig, "parse series registry").
			Fatal().WithContext("path", path).Build()
	}
	if reg.entries == nil {
		reg.entries = map[string][]string{}
	}
	return reg, nil
}

// newRegistry builds a registry from memory.
func newRegistry(entries map[string][]string) *Registry {
	if entries == nil {
		entries = map[string][]string{}
	}
	return &Registry{entries: entries}
}

// Names returns the registered series, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Members returns the ordered member directory names of a series.
func (r *Registry) Members(name string) []string {
	return r.entries[name]
}

// Resolve loads each member of the series from contentRoot in registry order.
func (r *Registry) Resolve(name, contentRoot string, cache *Cache) (*Series, error) {
	members, ok := r.entries[name]
	if !ok || len(members) == 0 {
		return nil, unresolved(name, "not in registry")
	}

	s := &Series{Name: name}
	for _, member := range members {
		p, err := Load(filepath.Join(contentRoot, member), cache)
		if err != nil {
			return nil, perrors.WrapError(fmt.Errorf("%w: member %s: %w", ErrSeriesUnresolved, member, err),
				perrors.CategoryMetadata, "resolve series").
				WithContext("series", name).Build()
		}
		s.Members = append(s.Members, p)
	}
	if len(s.Members) == 0 {
		return nil, unresolved(name, "no members")
	}
	return s, nil
}

func unresolved(name, reason string) error {
	return perrors.WrapError(fmt.Errorf("%w: %s", ErrSeriesUnresolved, reason),
		perrors.CategoryMetadata, "resolve series").
		WithContext("series", name).Build()
}

// DisplayName turns a series or tag identifier into a heading ("rust-embedded" → "Rust Embedded").
func DisplayName(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	return cases.Title(language.English).String(strings.Join(words, " "))
}
