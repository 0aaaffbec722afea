package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/gaps-closure/vscle/internal/cache"
	"github.com/gaps-closure/vscle/internal/output"
	"github.com/gaps-closure/vscle/pkg/config"
)

// loadConfig loads the settings named by --config, or searches the standard
// locations, then applies command-line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var opts []config.LoadOption
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	result, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, err
	}

	cfg := result.Config
	if dirs := c.StringSlice("source-dir"); len(dirs) > 0 {
		cfg.SourceDirs = dirs
	}
	if c.Bool("no-cache") {
		cfg.Cache.Enabled = false
	}
	return cfg, cfg.Validate()
}

// newLogger logs to stderr; stdout carries command output.
func newLogger(c *cli.Context) *slog.Logger {
	level := slog.LevelWarn
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	format := c.String("format")
	if !c.IsSet("format") && cfg.Output.Format != "" {
		format = cfg.Output.Format
	}
	colored := cfg.Output.Color && !c.Bool("no-color")
	return output.NewFormatter(output.ParseFormat(format), c.String("output"), colored)
}

// openCache returns the parse cache, or nil when it cannot be created.
func openCache(cfg *config.Config, logger *slog.Logger) *cache.Cache {
	if !cfg.Cache.Enabled {
		return nil
	}
	c, err := cache.FromConfig(cfg)
	if err != nil {
		logger.Warn("parse cache disabled", "dir", cfg.Cache.Dir, "error", err)
		return nil
	}
	return c
}

// parsePosition reads "FILE LINE" or "FILE:LINE" from the front of args and
// returns the zero-based line and the remaining arguments.
func parsePosition(args []string) (path string, line int, rest []string, err error) {
	if len(args) == 0 {
		return "", 0, nil, fmt.Errorf("expected FILE LINE or FILE:LINE")
	}

	var lineArg string
	if i := strings.LastIndexByte(args[0], ':'); i > 0 {
		if _, convErr := strconv.Atoi(args[0][i+1:]); convErr == nil {
			path, lineArg, rest = args[0][:i], args[0][i+1:], args[1:]
		}
	}
	if path == "" {
		if len(args) < 2 {
			return "", 0, nil, fmt.Errorf("expected FILE LINE or FILE:LINE")
		}
		path, lineArg, rest = args[0], args[1], args[2:]
	}

	n, convErr := strconv.Atoi(lineArg)
	if convErr != nil || n < 1 {
		return "", 0, nil, fmt.Errorf("invalid line %q: lines are one-based", lineArg)
	}
	return path, n - 1, rest, nil
}
