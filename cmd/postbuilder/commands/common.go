// Package commands holds the postbuilder CLI commands.
package commands

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/postbuilder/internal/config"
)

// DefaultConfigFile is loaded when --config is not given and the file exists.
const DefaultConfigFile = "postbuilder.yaml"

// Global carries process-wide state into the commands.
type Global struct {
	Ctx    context.Context
	Logger *slog.Logger
}

// CLI is the root command with the global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (default: postbuilder.yaml when present)" env:"POSTBUILDER_CONFIG" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build BuildCmd `cmd:"" help:"Build the site"`
	Watch WatchCmd `cmd:"" help:"Rebuild one post in development mode whenever it changes"`
}

// AfterApply runs after flag parsing and installs the default logger.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := ParseLogLevel(c.Verbose)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// ParseLogLevel maps --verbose and POSTBUILDER_LOG_LEVEL to a slog level.
// The flag wins over the environment.
func ParseLogLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("POSTBUILDER_LOG_LEVEL"))) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadConfig loads path, falling back to DefaultConfigFile when path is
// empty and to the built-in defaults when neither exists.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return config.Load(path)
}
