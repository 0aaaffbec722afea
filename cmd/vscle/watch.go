package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/gaps-closure/vscle/internal/scanner"
	"github.com/gaps-closure/vscle/internal/workspace"
	"github.com/gaps-closure/vscle/pkg/watch"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Re-run the analyzer whenever a source file changes",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "debounce",
				Value: watch.DefaultDebounce,
				Usage: "Quiet period before a change triggers analysis",
			},
			&cli.BoolFlag{
				Name:  "initial",
				Value: true,
				Usage: "Analyze once before waiting for changes",
			},
		},
		Action: runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := newLogger(c)
	state := workspace.New(cfg, workspace.WithLogger(logger))
	scan := scanner.NewScanner(cfg, scanner.WithLogger(logger))

	analyze := func(ctx context.Context, reason string) {
		files := scan.SourceSet()
		if len(files) == 0 {
			color.Yellow("No source files found")
			return
		}
		fmt.Fprintf(os.Stderr, "%s: analyzing %d file(s)\n", reason, len(files))

		out, err := runSession(ctx, cfg, files, logger)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				color.Red("Analysis failed: %v", err)
			}
			return
		}
		state.Apply(out)
		if out.Succeeded() {
			color.Green("Success: %d function(s), %d global(s) assigned",
				len(out.Topology.Functions), len(out.Topology.GlobalScopedVars))
			return
		}
		if kept, err := state.Topology(); err == nil {
			color.Yellow("Conflict: %d site(s); keeping the topology with %d function(s)",
				len(out.Diagnostics), len(kept.Functions))
		} else {
			color.Yellow("Conflict: %d site(s); no topology yet", len(out.Diagnostics))
		}
		for _, d := range out.Diagnostics {
			fmt.Printf("  %s %s: %s\n", d.File, d.Code, d.Message)
		}
	}

	watcher, err := watch.NewWatcher(cfg, c.Duration("debounce"), logger)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Stop()

	watcher.SetCallback(func(ctx context.Context, changed []string) {
		reason := changed[0]
		if len(changed) > 1 {
			reason = fmt.Sprintf("%s and %d more", changed[0], len(changed)-1)
		}
		analyze(ctx, reason)
	})

	// Handle Ctrl+C
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.Bool("initial") {
		analyze(ctx, "startup")
	}

	color.Cyan("Watching %v (Ctrl+C to stop)", cfg.SourceDirs)
	err = watcher.Start(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "\nStopping watch...")
		return nil
	}
	return err
}
