// Package watch rebuilds a single post whenever its directory changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	perrors "git.home.luguber.info/inful/postbuilder/internal/errors"
	"git.home.luguber.info/inful/postbuilder/internal/fsutil"
	"git.home.luguber.info/inful/postbuilder/internal/logfields"
)

// DefaultDebounce is the quiet period after the last change before a rebuild.
const DefaultDebounce = 300 * time.Millisecond

// BuildFunc runs one build.
type BuildFunc func(ctx context.Context) error

// Watcher watches one post directory recursively plus individual files.
type Watcher struct {
	dir      string
	files    map[string]bool
	build    BuildFunc
	debounce time.Duration
	logger   *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(w *Watcher) { w.logger = l } }

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option { return func(w *Watcher) { w.debounce = d } }

// WithFiles also watches the given files, typically the config file.
func WithFiles(paths ...string) Option {
	return func(w *Watcher) {
		for _, p := range paths {
			if p == "" {
				continue
			}
			if abs, err := filepath.Abs(p); err == nil {
				w.files[abs] = true
			}
		}
	}
}

// New returns a watcher for the post directory dir.
func New(dir string, build BuildFunc, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	st, err := os.Stat(abs)
	if err != nil || !st.IsDir() {
		return nil, perrors.NewError(perrors.CategoryConfig, "post directory does not exist or is not a directory").
			UserAction().WithContext("path", dir).Build()
	}
	w := &Watcher{
		dir:      abs,
		files:    map[string]bool{},
		build:    build,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run builds once, then rebuilds after each debounced change until ctx is
// cancelled. On shutdown the post's Markdown files are touched so that the
// next production build picks the post up again.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() { _ = fw.Close() }()

	w.addDirsRecursive(fw, w.dir)
	for dir := range w.fileDirs() {
		if err := fw.Add(dir); err != nil {
			w.logger.Warn("Watch add failed", logfields.Path(dir), logfields.Error(err))
		}
	}

	rebuildReq := make(chan struct{}, 1)
	rebuildReq <- struct{}{}
	trigger, stop := debouncer(w.debounce, rebuildReq)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.rebuildWorker(ctx, rebuildReq)
	}()

	w.logger.Info("Watching post", logfields.Path(w.dir))
	for {
		select {
		case <-ctx.Done():
			stop()
			wg.Wait()
			w.shutdown()
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fw, ev, trigger)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) rebuildWorker(ctx context.Context, rebuildReq <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-rebuildReq:
			started := time.Now()
			if err := w.build(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				w.logger.Warn("Rebuild failed", logfields.Error(err))
				continue
			}
			w.logger.Info("Rebuilt", logfields.Since(started))
		}
	}
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event, trigger func()) {
	if ev.Op == fsnotify.Chmod || !w.relevant(ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			w.addDirsRecursive(fw, ev.Name)
		}
	}
	w.logger.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	trigger()
}

// relevant reports whether a change to path should cause a rebuild.
func (w *Watcher) relevant(path string) bool {
	if ShouldIgnore(path) {
		return false
	}
	path = filepath.Clean(path)
	if w.files[path] {
		return true
	}
	return path == w.dir || strings.HasPrefix(path, w.dir+string(filepath.Separator))
}

func (w *Watcher) fileDirs() map[string]bool {
	dirs := map[string]bool{}
	for f := range w.files {
		dirs[filepath.Dir(f)] = true
	}
	return dirs
}

func (w *Watcher) addDirsRecursive(fw *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if err := fw.Add(path); err != nil {
				w.logger.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
			}
		}
		return nil
	})
}

func (w *Watcher) shutdown() {
	w.logger.Info("Updating timestamps so the next production build processes this post")
	n, err := TouchMarkdown(w.dir)
	if err != nil {
		w.logger.Warn("Timestamp update incomplete", logfields.Path(w.dir), logfields.Error(err))
		return
	}
	w.logger.Debug("Touched markdown files", slog.Int("count", n))
}

// debouncer returns a trigger that signals out once changes stop for d, and
// a stop function that cancels any pending signal.
func debouncer(d time.Duration, out chan<- struct{}) (trigger, stop func()) {
	var mu sync.Mutex
	var timer *time.Timer
	stopped := false

	trigger = func() {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(d, func() {
			select {
			case out <- struct{}{}:
			default:
			}
		})
	}
	stop = func() {
		mu.Lock()
		defer mu.Unlock()
		stopped = true
		if timer != nil {
			timer.Stop()
		}
	}
	return trigger, stop
}

// TouchMarkdown sets the mtime of every *.md file below dir to now and
// returns how many were touched.
func TouchMarkdown(dir string) (int, error) {
	var n int
	var errs []error
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		if err := fsutil.Touch(path); err != nil {
			errs = append(errs, err)
			return nil
		}
		n++
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	return n, errors.Join(errs...)
}

// ShouldIgnore reports whether path is a hidden, editor swap or OS metadata
// file whose changes never trigger a rebuild.
func ShouldIgnore(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	case base == "Thumbs.db", base == "4913": // 4913 is the vim write probe
		return true
	}
	return false
}
