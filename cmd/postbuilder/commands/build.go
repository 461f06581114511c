package commands

import (
	"fmt"

	"git.home.luguber.info/inful/postbuilder/internal/build"
	"git.home.luguber.info/inful/postbuilder/internal/config"
	"git.home.luguber.info/inful/postbuilder/internal/logfields"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Mode   string `short:"m" help:"Build mode: development (drafts visible) or production" default:"production" enum:"development,production,dev,prod"`
	Filter string `short:"f" help:"Only render posts whose directory name contains this substring"`
	Force  bool   `help:"Treat every output as stale"`
	Output string `short:"o" help:"Output directory (overrides paths.output)" type:"path"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	mode, err := config.ParseMode(b.Mode)
	if err != nil {
		return fmt.Errorf("parse mode: %w", err)
	}
	cfg, err := LoadConfig(root.Config)
	if err != nil {
		return err
	}

	g.Logger.Info("Starting build",
		logfields.Mode(mode.String()),
		logfields.Path(cfg.Paths.Content))
	_, err = build.New(cfg, build.WithLogger(g.Logger)).Run(g.Ctx, build.Options{
		Mode:      mode,
		Filter:    b.Filter,
		Force:     b.Force,
		OutputDir: b.Output,
	})
	return err
}
