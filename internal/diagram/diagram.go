// Package diagram renders Mermaid sources to SVG through an external tool and
// keeps the rendered file as a cache entry next to the post output.
package diagram

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/postbuilder/internal/config"
	perrors "git.home.luguber.info/inful/postbuilder/internal/errors"
	"git.home.luguber.info/inful/postbuilder/internal/logfields"
	"git.home.luguber.info/inful/postbuilder/internal/metrics"
	"git.home.luguber.info/inful/postbuilder/internal/retry"
	"git.home.luguber.info/inful/postbuilder/internal/svg"
)

// ErrRenderToolFailure is returned when the diagram tool fails on every attempt.
var ErrRenderToolFailure = errors.New("diagram tool failed")

// Renderer turns diagram sources into styled SVG files.
type Renderer struct {
	runner     Runner
	command    string
	extraArgs  []string
	stylesheet string
	background string
	timeout    time.Duration
	policy     retry.Policy
	logger     *slog.Logger
	recorder   metrics.Recorder
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithRunner replaces the subprocess runner.
func WithRunner(r Runner) Option { return func(d *Renderer) { d.runner = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(d *Renderer) { d.logger = l } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option { return func(d *Renderer) { d.recorder = r } }

// WithPolicy overrides the retry policy taken from the configuration.
func WithPolicy(p retry.Policy) Option { return func(d *Renderer) { d.policy = p } }

// NewRenderer builds a Renderer from the diagram configuration.
func NewRenderer(cfg config.DiagramConfig, opts ...Option) *Renderer {
	r := &Renderer{
		runner:     ExecRunner{},
		command:    cfg.Command,
		extraArgs:  cfg.Args,
		stylesheet: cfg.Stylesheet,
		background: cfg.Background,
		timeout:    cfg.Timeout,
		policy:     retry.FromConfig(cfg.Retry),
		logger:     slog.Default(),
		recorder:   metrics.NoopRecorder{},
	}
	if r.background == "" {
		r.background = "transparent"
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stylesheet is the renderer stylesheet; empty when none is configured.
func (r *Renderer) Stylesheet() string { return r.stylesheet }

// Fresh reports whether output is newer than both source and the stylesheet.
func Fresh(source, stylesheet, output string) (bool, error) {
	out, err := os.Stat(output)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	for _, dep := range []string{source, stylesheet} {
		if dep == "" {
			continue
		}
		st, err := os.Stat(dep)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return false, err
		}
		if !out.ModTime().After(st.ModTime()) {
			return false, nil
		}
	}
	return true, nil
}

// Render produces output from source unless the cached output is fresh.
// A failure leaves any previous output in place.
func (r *Renderer) Render(ctx context.Context, source, output string) error {
	fresh, err := Fresh(source, r.stylesheet, output)
	if err != nil {
		return perrors.WrapError(err, perrors.CategoryFileSystem, "check diagram cache").
			WithContext("path", output).Build()
	}
	if fresh {
		r.recorder.IncDiagramResult(metrics.DiagramCached)
		r.logger.Debug("Diagram cache hit", logfields.Path(source), logfields.Output(output))
		return nil
	}
	if _, err := os.Stat(source); err != nil {
		r.recorder.IncDiagramResult(metrics.DiagramFailed)
		return r.failure(source, output, err, 0)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return perrors.WrapError(err, perrors.CategoryFileSystem, "create diagram directory").
			WithContext("path", output).Build()
	}

	// Render next to the output and rename on success, so a failed attempt
	// never clobbers the previous image.
	tmp := filepath.Join(filepath.Dir(output), "."+strings.TrimSuffix(filepath.Base(output), ".svg")+".render.svg")
	defer func() { _ = os.Remove(tmp) }()

	started := time.Now()
	attempts := 0
	err = r.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		attempts = attempt
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		out, runErr := r.runner.Run(attemptCtx, r.command, r.args(source, tmp)...)
		if runErr != nil {
			r.logger.Warn("Diagram tool attempt failed",
				logfields.Path(source),
				logfields.Attempt(attempt),
				logfields.Reason(strings.TrimSpace(string(out))),
				logfields.Error(runErr))
			return runErr
		}
		if _, statErr := os.Stat(tmp); statErr != nil {
			return fmt.Errorf("tool exited 0 but wrote no file: %w", statErr)
		}
		return nil
	})
	r.recorder.ObserveStageDuration("diagram", time.Since(started))
	if err != nil {
		r.recorder.IncDiagramResult(metrics.DiagramFailed)
		return r.failure(source, output, err, attempts)
	}

	if err := svg.InjectFile(tmp, svg.Mermaid); err != nil {
		r.recorder.IncDiagramResult(metrics.DiagramFailed)
		return r.failure(source, output, err, attempts)
	}
	if err := os.Rename(tmp, output); err != nil {
		return perrors.WrapError(err, perrors.CategoryFileSystem, "replace diagram").
			WithContext("path", output).Build()
	}

	r.recorder.IncDiagramResult(metrics.DiagramRendered)
	r.logger.Info("Rendered diagram",
		logfields.Path(source),
		logfields.Output(output),
		logfields.Since(started))
	return nil
}

func (r *Renderer) args(source, output string) []string {
	args := []string{"-i", source, "-o", output, "-b", r.background}
	if r.stylesheet != "" {
		args = append(args, "--cssFile", r.stylesheet)
	}
	return append(args, r.extraArgs...)
}

func (r *Renderer) failure(source, output string, cause error, attempts int) error {
	return perrors.WrapError(fmt.Errorf("%w: %w", ErrRenderToolFailure, cause), perrors.CategoryRender, "render diagram").
		Warning().
		WithContext("path", source).
		WithContext("output", output).
		WithContext("attempts", attempts).
		Build()
}
