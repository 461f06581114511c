package commands

import (
	"context"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/postbuilder/internal/build"
	"git.home.luguber.info/inful/postbuilder/internal/config"
	"git.home.luguber.info/inful/postbuilder/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	PostDir  string        `arg:"" name:"post-dir" help:"Post directory to watch" type:"existingdir"`
	Debounce time.Duration `help:"Quiet period before a rebuild" default:"300ms"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := LoadConfig(root.Config)
	if err != nil {
		return err
	}

	builder := build.New(cfg, build.WithLogger(g.Logger))
	opts := build.Options{
		Mode:   config.ModeDevelopment,
		Filter: filepath.Base(filepath.Clean(w.PostDir)),
	}
	rebuild := func(ctx context.Context) error {
		_, err := builder.Run(ctx, opts)
		return err
	}

	watcher, err := watch.New(w.PostDir, rebuild,
		watch.WithLogger(g.Logger),
		watch.WithDebounce(w.Debounce),
		watch.WithFiles(cfg.SourcePath, cfg.Paths.SeriesRegistry))
	if err != nil {
		return err
	}
	return watcher.Run(g.Ctx)
}
