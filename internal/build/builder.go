package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/postbuilder/internal/assets"
	"git.home.luguber.info/inful/postbuilder/internal/config"
	"git.home.luguber.info/inful/postbuilder/internal/diagram"
	perrors "git.home.luguber.info/inful/postbuilder/internal/errors"
	"git.home.luguber.info/inful/postbuilder/internal/logfields"
	"git.home.luguber.info/inful/postbuilder/internal/markup"
	"git.home.luguber.info/inful/postbuilder/internal/metrics"
	"git.home.luguber.info/inful/postbuilder/internal/notify"
	"git.home.luguber.info/inful/postbuilder/internal/post"
	"git.home.luguber.info/inful/postbuilder/internal/site"
	"git.home.luguber.info/inful/postbuilder/internal/stale"
	"git.home.luguber.info/inful/postbuilder/internal/templates"
)

// Persistent markup cache entries unused for this long are pruned.
const markupCacheMaxAge = 30 * 24 * time.Hour

// Options selects what one Run builds.
type Options struct {
	Mode config.Mode
	// Filter restricts phase 1 to posts whose directory name contains it.
	// Aggregates are always generated from every post.
	Filter string
	// Force marks every artifact stale.
	Force bool
	// OutputDir overrides paths.output.
	OutputDir string
}

// Builder executes builds for one configuration.
type Builder struct {
	cfg        *config.Config
	logger     *slog.Logger
	recorder   metrics.Recorder
	runner     diagram.Runner
	publisher  notify.Publisher
	executable func() (string, error)
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(b *Builder) { b.logger = l } }

// WithRecorder sets the metrics recorder. Without one, a Prometheus recorder
// is used when metrics.textfile is configured.
func WithRecorder(r metrics.Recorder) Option { return func(b *Builder) { b.recorder = r } }

// WithRunner replaces the diagram tool runner.
func WithRunner(r diagram.Runner) Option { return func(b *Builder) { b.runner = r } }

// WithPublisher replaces the publisher derived from the notify config.
func WithPublisher(p notify.Publisher) Option { return func(b *Builder) { b.publisher = p } }

// New returns a Builder for cfg.
func New(cfg *config.Config, opts ...Option) *Builder {
	b := &Builder{
		cfg:        cfg,
		logger:     slog.Default(),
		executable: os.Executable,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// run holds the collaborators of one Run.
type run struct {
	cfg         *config.Config
	opts        Options
	outDir      string
	contentRoot string
	logger      *slog.Logger
	recorder    metrics.Recorder

	meta      *post.Cache
	registry  *post.Registry
	stale     *stale.Controller
	converter *markup.Converter
	renderer  *diagram.Renderer
	assets    *assets.Pipeline
	templates *templates.Set

	mu     sync.Mutex
	report *Report
}

// Run performs a two-phase build. It returns ErrPostsFailed (wrapped) when
// some posts failed, and the aggregate error when phase 2 aborted. The
// report is returned in every case.
func (b *Builder) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Mode == "" {
		opts.Mode = config.ModeProduction
	}
	report := &Report{
		BuildID:   uuid.NewString(),
		Mode:      opts.Mode,
		StartedAt: time.Now(),
	}
	logger := b.logger.With(logfields.BuildID(report.BuildID), logfields.Mode(opts.Mode.String()))

	recorder := b.recorder
	var textfile *metrics.PrometheusRecorder
	if recorder == nil {
		if b.cfg.Metrics.Textfile != "" {
			textfile = metrics.NewPrometheusRecorder(prometheus.NewRegistry())
			recorder = textfile
		} else {
			recorder = metrics.NoopRecorder{}
		}
	}

	err := b.execute(ctx, opts, report, logger, recorder)
	switch {
	case ctx.Err() != nil:
		report.Status = StatusCancelled
		if err == nil {
			err = ctx.Err()
		}
	case err != nil:
		report.Status = StatusFailed
	case len(report.Failed) > 0:
		report.Status = StatusFailed
		err = fmt.Errorf("%w: %d of %d", ErrPostsFailed, len(report.Failed),
			len(report.Failed)+len(report.Built)+len(report.Skipped))
	default:
		report.Status = StatusSuccess
	}
	report.Duration = time.Since(report.StartedAt)
	recorder.ObserveBuildDuration(report.Duration)

	b.summarize(report, logger)
	if textfile != nil {
		if werr := textfile.WriteTextfile(b.cfg.Metrics.Textfile); werr != nil {
			logger.Warn("Metrics textfile not written", logfields.Path(b.cfg.Metrics.Textfile), logfields.Error(werr))
		}
	}
	b.publish(context.WithoutCancel(ctx), report, logger)
	return report, err
}

func (b *Builder) execute(ctx context.Context, opts Options, report *Report, logger *slog.Logger, recorder metrics.Recorder) error {
	stageStart := time.Now()
	r, cleanup, err := b.prepare(ctx, opts, report, logger, recorder)
	if err != nil {
		return err
	}
	defer cleanup()
	recorder.ObserveStageDuration("prepare", time.Since(stageStart))

	stageStart = time.Now()
	posts, err := r.phase1(ctx)
	report.MetadataCacheHits = r.meta.Hits()
	if err != nil {
		return err
	}
	recorder.ObserveStageDuration("posts", time.Since(stageStart))
	if err := ctx.Err(); err != nil {
		return err
	}

	stageStart = time.Now()
	gen, err := site.NewGenerator(b.cfg.Site, r.outDir, opts.Mode, r.templates, r.stale,
		site.WithLogger(logger), site.WithRecorder(recorder))
	if err != nil {
		return err
	}
	res, err := gen.Generate(ctx, posts)
	if res != nil {
		report.Aggregates = res.Written
		report.AggregatesSkipped = len(res.Skipped)
	}
	if err != nil {
		logger.Error("Aggregate generation aborted", logfields.Error(err))
		return err
	}
	recorder.ObserveStageDuration("aggregates", time.Since(stageStart))
	return nil
}

// prepare stamps the mode and constructs the per-run collaborators.
func (b *Builder) prepare(ctx context.Context, opts Options, report *Report, logger *slog.Logger, recorder metrics.Recorder) (*run, func(), error) {
	outDir := opts.OutputDir
	if outDir == "" {
		outDir = b.cfg.Paths.Output
	}
	contentRoot := b.cfg.Paths.Content
	if st, err := os.Stat(contentRoot); err != nil || !st.IsDir() {
		return nil, nil, perrors.NewError(perrors.CategoryConfig, "content directory not found").
			UserAction().WithContext("path", contentRoot).Build()
	}

	stamp, changed, err := stale.StampMode(outDir, opts.Mode)
	if err != nil {
		return nil, nil, perrors.WrapError(err, perrors.CategoryFileSystem, "write mode stamp").
			WithContext("path", outDir).Build()
	}
	if changed {
		logger.Info("Build mode changed, rebuilding everything", logfields.Path(stamp))
	}

	tpl, err := templates.Load(b.cfg.Paths.Templates)
	if err != nil {
		return nil, nil, err
	}
	registry, err := post.LoadRegistry(b.cfg.Paths.SeriesRegistry)
	if err != nil {
		return nil, nil, err
	}
	checkRegistry(registry, contentRoot, logger)

	cache, closeCache, err := b.markupCache(ctx, logger)
	if err != nil {
		return nil, nil, err
	}

	rendererOpts := []diagram.Option{diagram.WithLogger(logger), diagram.WithRecorder(recorder)}
	if b.runner != nil {
		rendererOpts = append(rendererOpts, diagram.WithRunner(b.runner))
	}

	r := &run{
		cfg:         b.cfg,
		opts:        opts,
		outDir:      outDir,
		contentRoot: contentRoot,
		logger:      logger,
		recorder:    recorder,
		meta:        post.NewCache(),
		registry:    registry,
		stale: stale.NewController(stale.Options{
			Pipeline:    b.pipelineFiles(stamp, tpl, logger),
			Registry:    b.cfg.Paths.SeriesRegistry,
			ContentRoot: contentRoot,
			Force:       opts.Force,
		}),
		converter: markup.NewConverter(markup.WithCache(cache)),
		renderer:  diagram.NewRenderer(b.cfg.Diagram, rendererOpts...),
		assets:    assets.New(assets.WithLogger(logger)),
		templates: tpl,
		report:    report,
	}
	return r, closeCache, nil
}

// pipelineFiles lists what every artifact depends on.
func (b *Builder) pipelineFiles(stamp string, tpl *templates.Set, logger *slog.Logger) []string {
	var files []string
	if b.cfg.Build.TrackExecutable {
		exe, err := b.executable()
		if err != nil {
			logger.Warn("Executable not tracked", logfields.Error(err))
		} else {
			files = append(files, exe)
		}
	}
	files = append(files, b.cfg.SourcePath)
	files = append(files, tpl.Overrides...)
	files = append(files, stamp)
	files = append(files, b.cfg.Build.ExtraDependencies...)
	return files
}

func (b *Builder) markupCache(ctx context.Context, logger *slog.Logger) (markup.Cache, func(), error) {
	if b.cfg.Cache.Path == "" {
		return markup.NewMemoryCache(), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(b.cfg.Cache.Path), 0o755); err != nil {
		return nil, nil, perrors.WrapError(err, perrors.CategoryFileSystem, "create cache directory").
			WithContext("path", b.cfg.Cache.Path).Build()
	}
	c, err := markup.NewSQLiteCache(b.cfg.Cache.Path, logger)
	if err != nil {
		return nil, nil, perrors.WrapError(err, perrors.CategoryFileSystem, "open markup cache").
			WithContext("path", b.cfg.Cache.Path).Build()
	}
	if n, err := c.Prune(ctx, markupCacheMaxAge); err != nil {
		logger.Warn("Markup cache prune failed", logfields.Error(err))
	} else if n > 0 {
		logger.Debug("Pruned markup cache", slog.Int64("entries", n))
	}
	return c, func() {
		if err := c.Close(); err != nil {
			logger.Warn("Markup cache close failed", logfields.Error(err))
		}
	}, nil
}

// phase1 loads every post and builds the selected ones. It returns every
// post that loaded, for the aggregate phase.
func (r *run) phase1(ctx context.Context) ([]*post.Post, error) {
	dirs, err := post.Discover(r.contentRoot)
	if err != nil {
		return nil, err
	}

	workers := r.cfg.Build.Workers
	if workers < 1 {
		workers = 1
	}
	loaded := make([]*post.Post, len(dirs))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, dir := range dirs {
		name := filepath.Base(dir)
		selected := r.opts.Filter == "" || strings.Contains(name, r.opts.Filter)
		g.Go(func() error {
			p, err := post.Load(dir, r.meta)
			if err != nil {
				if selected {
					r.fail(name, err)
				} else {
					r.logger.Warn("Post not loaded", logfields.Post(name), logfields.Error(err))
				}
				return nil
			}
			loaded[i] = p
			if selected {
				r.buildPost(ctx, p)
			}
			return nil
		})
	}
	_ = g.Wait()

	posts := make([]*post.Post, 0, len(loaded))
	for _, p := range loaded {
		if p != nil {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

func (r *run) buildPost(ctx context.Context, p *post.Post) {
	if err := ctx.Err(); err != nil {
		r.fail(p.Name(), err)
		return
	}
	if p.Meta.Incomplete && !r.opts.Mode.IncludeDrafts() {
		r.logger.Debug("Skipping draft", logfields.Post(p.Name()))
		r.skip(p.Name())
		return
	}

	started := time.Now()
	built, err := r.renderPost(ctx, p)
	r.recorder.ObserveStageDuration("post", time.Since(started))
	switch {
	case err != nil:
		r.fail(p.Name(), err)
	case built:
		r.mu.Lock()
		r.report.Built = append(r.report.Built, p.Name())
		r.mu.Unlock()
		r.recorder.IncPostResult(metrics.PostBuilt)
		r.logger.Info("Built post", logfields.Post(p.Name()), logfields.Since(started))
	default:
		r.skip(p.Name())
	}
}

func (r *run) skip(name string) {
	r.mu.Lock()
	r.report.Skipped = append(r.report.Skipped, name)
	r.mu.Unlock()
	r.recorder.IncPostResult(metrics.PostSkipped)
}

func (r *run) fail(name string, err error) {
	r.mu.Lock()
	r.report.Failed = append(r.report.Failed, PostFailure{Post: name, Err: err})
	r.mu.Unlock()
	r.recorder.IncPostResult(metrics.PostFailed)

	attrs := []any{logfields.Post(name), logfields.Error(err)}
	if ce, ok := perrors.AsClassified(err); ok {
		for _, a := range ce.LogAttrs() {
			attrs = append(attrs, a)
		}
	}
	if errors.Is(err, context.Canceled) {
		r.logger.Debug("Post cancelled", attrs...)
		return
	}
	r.logger.Error("Post failed", attrs...)
}

// checkRegistry warns about registry members that have no directory under
// contentRoot. Posts of such a series fail when they are built.
func checkRegistry(registry *post.Registry, contentRoot string, logger *slog.Logger) {
	for _, name := range registry.Names() {
		for _, member := range registry.Members(name) {
			st, err := os.Stat(filepath.Join(contentRoot, member))
			if err == nil && st.IsDir() {
				continue
			}
			logger.Warn("Series member not found",
				logfields.Series(name), logfields.Post(member), logfields.Path(registry.Path))
		}
	}
}
