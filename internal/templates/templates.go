// Package templates renders post and list pages with html/template. The
// embedded defaults can be overridden per file from a directory.
package templates

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	PostTemplate = "post.html"
	ListTemplate = "list.html"
)

//go:embed default/*.html
var defaults embed.FS

// Site is the site-wide data every page receives.
type Site struct {
	Title       string
	BaseURL     string
	Description string
	Author      string
	Language    string
}

// Link is a titled URL.
type Link struct {
	Title   string
	URL     string
	Current bool
}

// TOCEntry is a heading in the post's table of contents.
type TOCEntry struct {
	Level int
	ID    string
	Text  string
}

// SeriesNav lists the members of the post's series in registry order.
type SeriesNav struct {
	Title   string
	URL     string
	Members []Link
}

// PostPage is the data for post.html.
type PostPage struct {
	Site        Site
	Title       string
	Description string
	Date        string
	URL         string
	Tags        []Link
	Series      *SeriesNav
	TOC         []TOCEntry
	Content     template.HTML
	SourceURL   string
}

// ListItem is one post in a list page.
type ListItem struct {
	Title       string
	URL         string
	Date        string
	Description string
}

// ListPage is the data for list.html, used by the index, tag and series pages.
type ListPage struct {
	Site    Site
	Heading string
	Items   []ListItem
}

// Set holds the parsed page templates.
type Set struct {
	post *template.Template
	list *template.Template
	// Overrides are the override files in use; they are pipeline dependencies.
	Overrides []string
}

// Load parses the embedded templates, replacing each one that exists in
// overrideDir. An empty overrideDir uses the defaults only.
func Load(overrideDir string) (*Set, error) {
	s := &Set{}
	var err error
	if s.post, err = s.parse(overrideDir, PostTemplate); err != nil {
		return nil, err
	}
	if s.list, err = s.parse(overrideDir, ListTemplate); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Set) parse(overrideDir, name string) (*template.Template, error) {
	if overrideDir != "" {
		path := filepath.Join(overrideDir, name)
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			tpl, perr := template.New(name).Option("missingkey=error").Parse(string(data))
			if perr != nil {
				return nil, fmt.Errorf("parse template %s: %w", path, perr)
			}
			s.Overrides = append(s.Overrides, path)
			return tpl, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("read template %s: %w", path, err)
		}
	}
	tpl, err := template.New(name).Option("missingkey=error").ParseFS(defaults, "default/"+name)
	if err != nil {
		return nil, fmt.Errorf("parse embedded template %s: %w", name, err)
	}
	return tpl, nil
}

// RenderPost renders a post page.
func (s *Set) RenderPost(p PostPage) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.post.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("render %s: %w", PostTemplate, err)
	}
	return buf.Bytes(), nil
}

// RenderList renders a list page.
func (s *Set) RenderList(p ListPage) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.list.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("render %s: %w", ListTemplate, err)
	}
	return buf.Bytes(), nil
}
