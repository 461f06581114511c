package stale

import (
	"slices"
)

// Options configures a Controller.
type Options struct {
	// Pipeline lists files every artifact depends on: the executable, the
	// config file, templates in use and the mode stamp.
	Pipeline []string
	// Registry is the series registry file.
	Registry string
	// ContentRoot is the directory holding every post directory.
	ContentRoot string
	// Force makes every decision stale.
	Force bool
}

// Controller owns the dependency sets of post pages and aggregate artifacts.
type Controller struct {
	opts Options
}

// NewController returns a controller for one build.
func NewController(opts Options) *Controller {
	opts.Pipeline = compact(opts.Pipeline)
	return &Controller{opts: opts}
}

// Pipeline returns the always-dependencies.
func (c *Controller) Pipeline() []string { return slices.Clone(c.opts.Pipeline) }

// PostDeps is the dependency set of one post page: its source, the pipeline
// files, embedded files, referenced diagram sources and assets, and the
// series registry when the post belongs to a series.
func (c *Controller) PostDeps(source string, embedded, references []string, inSeries bool) []string {
	deps := make([]string, 0, 1+len(c.opts.Pipeline)+len(embedded)+len(references)+1)
	deps = append(deps, source)
	deps = append(deps, c.opts.Pipeline...)
	deps = append(deps, embedded...)
	deps = append(deps, references...)
	if inSeries && c.opts.Registry != "" {
		deps = append(deps, c.opts.Registry)
	}
	return compact(deps)
}

// AggregateDeps is the dependency set of an aggregate artifact. The content
// root directory is included so adding or removing a post is detected.
func (c *Controller) AggregateDeps(sources []string) []string {
	deps := make([]string, 0, len(sources)+len(c.opts.Pipeline)+2)
	deps = append(deps, sources...)
	deps = append(deps, c.opts.Pipeline...)
	if c.opts.ContentRoot != "" {
		deps = append(deps, c.opts.ContentRoot)
	}
	if c.opts.Registry != "" {
		deps = append(deps, c.opts.Registry)
	}
	return compact(deps)
}

// Decide checks output against deps.
func (c *Controller) Decide(output string, deps []string) (Decision, error) {
	if c.opts.Force {
		return Decision{Output: output, Stale: true, Reason: ReasonForced}, nil
	}
	return check(output, deps)
}

// compact drops empty entries and duplicates, keeping first occurrences.
func compact(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := paths[:0:0]
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
