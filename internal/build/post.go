package build

import (
	"context"
	"html/template"
	"net/url"
	"path/filepath"

	"git.home.luguber.info/inful/postbuilder/internal/assets"
	"git.home.luguber.info/inful/postbuilder/internal/diagram"
	perrors "git.home.luguber.info/inful/postbuilder/internal/errors"
	"git.home.luguber.info/inful/postbuilder/internal/fsutil"
	"git.home.luguber.info/inful/postbuilder/internal/logfields"
	"git.home.luguber.info/inful/postbuilder/internal/macro"
	"git.home.luguber.info/inful/postbuilder/internal/post"
	"git.home.luguber.info/inful/postbuilder/internal/site"
	"git.home.luguber.info/inful/postbuilder/internal/stale"
	"git.home.luguber.info/inful/postbuilder/internal/templates"
)

// PageName is the file each post page is written to inside its slug directory.
const PageName = "index.html"

// renderPost builds the page of p unless it is fresh. It reports whether the
// page was written.
func (r *run) renderPost(ctx context.Context, p *post.Post) (bool, error) {
	cfg := r.cfg.Site
	postURL, err := p.Meta.FullURL(cfg.BaseURL, cfg.SlugCutoffYear)
	if err != nil {
		return false, withPath(err, p.Source)
	}
	slug, _ := p.Meta.Slug(cfg.SlugCutoffYear)
	outDir := filepath.Join(r.outDir, slug)
	output := filepath.Join(outDir, PageName)
	logger := r.logger.With(logfields.Post(p.Name()), logfields.Slug(slug))

	exp, err := macro.Expand(p.Meta.Body, macro.Context{Dir: p.Dir, OutputDir: outDir})
	if err != nil {
		return false, withPath(err, p.Source)
	}

	var nav *templates.SeriesNav
	var related []string
	if p.Meta.Series != "" {
		if nav, related, err = r.seriesNav(p); err != nil {
			return false, withPath(err, p.Source)
		}
	}

	refs := assets.References(exp.Text, p.Dir)
	for _, job := range exp.Diagrams {
		refs = append(refs, job.Source)
	}
	if len(exp.Diagrams) > 0 {
		refs = append(refs, r.renderer.Stylesheet())
	}
	refs = append(refs, related...)
	deps := r.stale.PostDeps(p.Source, exp.Embedded, refs, p.Meta.Series != "")
	decision, err := r.stale.Decide(output, deps)
	if err != nil {
		return false, perrors.WrapError(err, perrors.CategoryFileSystem, "check post staleness").
			WithContext("path", output).Build()
	}
	if !decision.Stale {
		if job, ok := r.staleDiagram(exp.Diagrams); ok {
			decision = stale.Decision{Output: output, Stale: true, Reason: stale.ReasonDiagram, Dependency: job.Source}
		}
	}
	if !decision.Stale {
		logger.Debug("Post is fresh", logfields.Output(output))
		return false, nil
	}
	logger.Debug("Post is stale",
		logfields.Reason(string(decision.Reason)),
		logfields.Dependency(decision.Dependency))

	converted, err := r.converter.Convert(exp.Text)
	if err != nil {
		return false, perrors.WrapError(err, perrors.CategoryMarkup, "convert markdown").
			WithContext("path", p.Source).Build()
	}

	for _, job := range exp.Diagrams {
		if err := r.renderer.Render(ctx, job.Source, job.Output); err != nil {
			logger.Warn("Diagram not rendered", logfields.Path(job.Source), logfields.Error(err))
		}
	}

	processed, err := r.assets.Process(converted.HTML, p.Dir, outDir, exp.GeneratedRefs())
	if err != nil {
		return false, withPath(err, p.Source)
	}
	if _, err := r.assets.CopySource(p.Source, outDir); err != nil {
		return false, err
	}

	page := templates.PostPage{
		Site: templates.Site{
			Title:       cfg.Title,
			BaseURL:     cfg.BaseURL,
			Description: cfg.Description,
			Author:      cfg.Author,
			Language:    cfg.Language,
		},
		Title:       p.Meta.Title(),
		Description: p.Meta.Description,
		Date:        p.Meta.Date.Format(post.DateLayout),
		URL:         postURL,
		Series:      nav,
		Content:     template.HTML(processed.HTML),
		SourceURL:   postURL + assets.Dir + "/" + url.PathEscape(filepath.Base(p.Source)),
	}
	for _, tag := range p.Meta.Tags {
		page.Tags = append(page.Tags, templates.Link{Title: tag, URL: site.TagURL(cfg.BaseURL, tag)})
	}
	for _, h := range converted.Headings {
		page.TOC = append(page.TOC, templates.TOCEntry{Level: h.Level, ID: h.ID, Text: h.Text})
	}

	data, err := r.templates.RenderPost(page)
	if err != nil {
		return false, perrors.WrapError(err, perrors.CategoryBuild, "render post page").
			WithContext("path", p.Source).Build()
	}
	if err := fsutil.WriteFileAtomic(output, data, 0o644); err != nil {
		return false, perrors.WrapError(err, perrors.CategoryFileSystem, "write post page").
			WithContext("path", output).Build()
	}
	return true, nil
}

// staleDiagram returns the first diagram whose image is missing or older
// than its inputs. A failed render leaves the page written, so the page
// alone does not show that the image still has to be produced.
func (r *run) staleDiagram(jobs []macro.DiagramJob) (macro.DiagramJob, bool) {
	for _, job := range jobs {
		fresh, err := diagram.Fresh(job.Source, r.renderer.Stylesheet(), job.Output)
		if err != nil || !fresh {
			return job, true
		}
	}
	return macro.DiagramJob{}, false
}

// seriesNav resolves the series of p through the registry. It also returns
// the member sources, whose titles and slugs appear in the navigation.
func (r *run) seriesNav(p *post.Post) (*templates.SeriesNav, []string, error) {
	cfg := r.cfg.Site
	s, err := r.registry.Resolve(p.Meta.Series, r.contentRoot, r.meta)
	if err != nil {
		return nil, nil, err
	}
	nav := &templates.SeriesNav{
		Title: post.DisplayName(s.Name),
		URL:   site.SeriesURL(cfg.BaseURL, s.Name),
	}
	sources := make([]string, 0, len(s.Members))
	for _, m := range s.Members {
		sources = append(sources, m.Source)
		if m.Meta.Incomplete && !r.opts.Mode.IncludeDrafts() {
			continue
		}
		u, err := m.Meta.FullURL(cfg.BaseURL, cfg.SlugCutoffYear)
		if err != nil {
			return nil, nil, err
		}
		nav.Members = append(nav.Members, templates.Link{
			Title:   m.Meta.Title(),
			URL:     u,
			Current: m.Name() == p.Name(),
		})
	}
	return nav, sources, nil
}

func withPath(err error, path string) error {
	if ce, ok := perrors.AsClassified(err); ok {
		return ce.WithContext("path", path)
	}
	return err
}
