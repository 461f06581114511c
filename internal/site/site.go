// Package site generates the aggregate artifacts of the blog from the full
// collection of post metadata: the chronological index, tag and series
// pages, the sitemap and the RSS feed. Every artifact sorts its posts itself.
package site

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"git.home.luguber.info/inful/postbuilder/internal/config"
	perrors "git.home.luguber.info/inful/postbuilder/internal/errors"
	"git.home.luguber.info/inful/postbuilder/internal/fsutil"
	"git.home.luguber.info/inful/postbuilder/internal/logfields"
	"git.home.luguber.info/inful/postbuilder/internal/metrics"
	"git.home.luguber.info/inful/postbuilder/internal/post"
	"git.home.luguber.info/inful/postbuilder/internal/stale"
	"git.home.luguber.info/inful/postbuilder/internal/templates"
)

// Artifact kinds, used as metric labels.
const (
	KindIndex   = "index"
	KindTag     = "tag"
	KindSeries  = "series"
	KindSitemap = "sitemap"
	KindFeed    = "rss"
)

// Generator writes aggregate artifacts below an output directory.
type Generator struct {
	site      config.SiteConfig
	outDir    string
	mode      config.Mode
	templates *templates.Set
	stale     *stale.Controller
	loc       *time.Location
	logger    *slog.Logger
	recorder  metrics.Recorder
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(g *Generator) { g.logger = l } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option { return func(g *Generator) { g.recorder = r } }

// NewGenerator returns a Generator. The site timezone must be loadable.
func NewGenerator(site config.SiteConfig, outDir string, mode config.Mode, tpl *templates.Set, ctrl *stale.Controller, opts ...Option) (*Generator, error) {
	loc, err := time.LoadLocation(site.Timezone)
	if err != nil {
		return nil, perrors.WrapError(err, perrors.CategoryConfig, "load site timezone").
			WithContext("timezone", site.Timezone).Build()
	}
	g := &Generator{
		site:      site,
		outDir:    outDir,
		mode:      mode,
		templates: tpl,
		stale:     ctrl,
		loc:       loc,
		logger:    slog.Default(),
		recorder:  metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Result lists the artifacts written and skipped.
type Result struct {
	Written []string
	Skipped []string
}

// entry is an included post with its resolved URL.
type entry struct {
	post *post.Post
	url  string
}

// Generate writes every stale aggregate artifact. A post whose slug cannot be
// derived aborts the whole generation before anything is written.
func (g *Generator) Generate(ctx context.Context, posts []*post.Post) (*Result, error) {
	entries, err := g.include(posts)
	if err != nil {
		return nil, err
	}

	sources := make([]string, 0, len(posts))
	for _, p := range posts {
		sources = append(sources, p.Source)
	}
	deps := g.stale.AggregateDeps(sources)

	res := &Result{}
	write := func(kind, rel string, render func() ([]byte, error)) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		out := filepath.Join(g.outDir, filepath.FromSlash(rel))
		d, err := g.stale.Decide(out, deps)
		if err != nil {
			return perrors.WrapError(err, perrors.CategoryFileSystem, "check aggregate staleness").
				WithContext("path", out).Build()
		}
		if !d.Stale {
			res.Skipped = append(res.Skipped, out)
			return nil
		}
		data, err := render()
		if err != nil {
			return perrors.WrapError(err, perrors.CategoryBuild, "render "+kind).
				WithContext("path", out).Build()
		}
		if err := fsutil.WriteFileAtomic(out, data, 0o644); err != nil {
			return perrors.WrapError(err, perrors.CategoryFileSystem, "write "+kind).
				WithContext("path", out).Build()
		}
		g.recorder.IncAggregateWritten(kind)
		g.logger.Debug("Wrote aggregate",
			logfields.Stage(kind),
			logfields.Output(out),
			logfields.Reason(string(d.Reason)),
			logfields.Dependency(d.Dependency))
		res.Written = append(res.Written, out)
		return nil
	}

	if err := write(KindIndex, "index.html", func() ([]byte, error) {
		return g.renderList("", newestFirst(entries))
	}); err != nil {
		return res, err
	}

	tags := distinctTags(entries)
	for _, tag := range tags {
		tagged := filter(entries, func(e entry) bool { return e.post.Meta.HasTag(tag) })
		if err := write(KindTag, "tags/"+TagSegment(tag)+"/index.html", func() ([]byte, error) {
			return g.renderList(tag, newestFirst(tagged))
		}); err != nil {
			return res, err
		}
	}

	for _, name := range seriesNames(entries) {
		members := filter(entries, func(e entry) bool { return e.post.Meta.Series == name })
		if err := write(KindSeries, "series/"+TagSegment(name)+"/index.html", func() ([]byte, error) {
			return g.renderList(post.DisplayName(name), newestFirst(members))
		}); err != nil {
			return res, err
		}
	}

	if err := write(KindSitemap, "sitemap.txt", func() ([]byte, error) {
		return g.sitemap(tags), nil
	}); err != nil {
		return res, err
	}

	if err := write(KindFeed, "rss.xml", func() ([]byte, error) {
		return g.feed(oldestFirst(entries))
	}); err != nil {
		return res, err
	}

	return res, nil
}

// include drops drafts outside development mode and resolves every URL.
func (g *Generator) include(posts []*post.Post) ([]entry, error) {
	entries := make([]entry, 0, len(posts))
	for _, p := range posts {
		if p.Meta.Incomplete && !g.mode.IncludeDrafts() {
			continue
		}
		u, err := p.Meta.FullURL(g.site.BaseURL, g.site.SlugCutoffYear)
		if err != nil {
			if ce, ok := perrors.AsClassified(err); ok {
				return nil, ce.WithContext("path", p.Source)
			}
			return nil, err
		}
		entries = append(entries, entry{post: p, url: u})
	}
	return entries, nil
}

func (g *Generator) renderList(heading string, entries []entry) ([]byte, error) {
	page := templates.ListPage{Site: g.templateSite(), Heading: heading}
	for _, e := range entries {
		page.Items = append(page.Items, templates.ListItem{
			Title:       e.post.Meta.Title(),
			URL:         e.url,
			Date:        e.post.Meta.Date.Format(post.DateLayout),
			Description: e.post.Meta.Description,
		})
	}
	return g.templates.RenderList(page)
}

func (g *Generator) templateSite() templates.Site {
	return templates.Site{
		Title:       g.site.Title,
		BaseURL:     g.site.BaseURL,
		Description: g.site.Description,
		Author:      g.site.Author,
		Language:    g.site.Language,
	}
}

func (g *Generator) sitemap(tags []string) []byte {
	var b strings.Builder
	b.WriteString(g.site.BaseURL + "\n")
	for _, tag := range tags {
		b.WriteString(TagURL(g.site.BaseURL, tag) + "\n")
	}
	return []byte(b.String())
}

// TagSegment is the path segment of a tag or series page.
func TagSegment(name string) string {
	if name != "." && name != ".." && !strings.ContainsAny(name, `/\`) {
		return name
	}
	s := strings.Trim(post.SanitizeSlug(strings.NewReplacer("/", "-", `\`, "-").Replace(name)), ".")
	if s == "" {
		return "_"
	}
	return s
}

// TagURL is the canonical URL of a tag page.
func TagURL(baseURL, tag string) string {
	return strings.TrimSuffix(baseURL, "/") + "/tags/" + pathEscape(TagSegment(tag)) + "/"
}

// SeriesURL is the canonical URL of a series page.
func SeriesURL(baseURL, name string) string {
	return strings.TrimSuffix(baseURL, "/") + "/series/" + pathEscape(TagSegment(name)) + "/"
}

func filter(entries []entry, keep func(entry) bool) []entry {
	var out []entry
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// newestFirst returns a copy sorted by date descending, ties by title.
func newestFirst(entries []entry) []entry {
	out := append([]entry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].post.Meta, out[j].post.Meta
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.RawTitle < b.RawTitle
	})
	return out
}

// oldestFirst returns a copy sorted by date ascending, ties by title.
func oldestFirst(entries []entry) []entry {
	out := append([]entry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].post.Meta, out[j].post.Meta
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.RawTitle < b.RawTitle
	})
	return out
}

func distinctTags(entries []entry) []string {
	seen := map[string]bool{}
	var tags []string
	for _, e := range entries {
		for _, t := range e.post.Meta.Tags {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	sort.Strings(tags)
	return tags
}

func seriesNames(entries []entry) []string {
	seen := map[string]bool{}
	var names []string
	for _, e := range entries {
		if s := e.post.Meta.Series; s != "" && !seen[s] {
			seen[s] = true
			names = append(names, s)
		}
	}
	sort.Strings(names)
	return names
}
