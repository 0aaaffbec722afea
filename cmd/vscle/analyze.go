package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/gaps-closure/vscle/internal/output"
	"github.com/gaps-closure/vscle/internal/progress"
	"github.com/gaps-closure/vscle/internal/scanner"
	"github.com/gaps-closure/vscle/internal/session"
	"github.com/gaps-closure/vscle/pkg/config"
)

// exitConflicts is the exit status when the analyzer reports conflicts.
const exitConflicts = 2

func analyzeCmd() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Run the conflict analyzer and report the topology or conflicts",
		ArgsUsage: "[file...]",
		Description: `Runs the optional prebuild command once per file, then starts the
analyzer and waits for its single result message.

Without arguments every C/C++ file under the source directories is analyzed.
On success the topology is written to <output_path>/topology.json. Conflicts
are listed with their remedies and the command exits with status 2.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-persist",
				Usage: "Do not write topology.json",
			},
		},
		Action: runAnalyzeCmd,
	}
}

func runAnalyzeCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.Bool("no-persist") {
		cfg.Analyzer.Persist = false
	}
	logger := newLogger(c)

	files := c.Args().Slice()
	if len(files) == 0 {
		files = scanner.NewScanner(cfg, scanner.WithLogger(logger)).SourceSet()
	}
	if len(files) == 0 {
		color.Yellow("No source files found")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := runSession(ctx, cfg, files, logger)
	if err != nil {
		return err
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if out.Succeeded() {
		if err := formatter.Output(output.TopologyView{Topology: out.Topology}); err != nil {
			return err
		}
		if cfg.Analyzer.Persist {
			formatter.Success("Topology written to %s", cfg.TopologyPath())
		}
		return nil
	}

	if err := formatter.Output(output.DiagnosticsView(out.Diagnostics)); err != nil {
		return err
	}
	if cfg.Analyzer.Persist {
		formatter.Warning("%s left unchanged", cfg.TopologyPath())
	}
	return cli.Exit(fmt.Sprintf("analysis reported %d conflict site(s)", len(out.Diagnostics)), exitConflicts)
}

// runSession runs one analysis with progress on stderr: a bar across the
// prebuild step, then a spinner while the analyzer works.
func runSession(ctx context.Context, cfg *config.Config, files []string, logger *slog.Logger) (*session.Outcome, error) {
	var (
		wg   sync.WaitGroup
		done = make(chan struct{})
	)
	startSpinner := func() {
		spinner := progress.NewSpinner("Waiting for analyzer...")
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					spinner.FinishSuccess()
					return
				case <-ticker.C:
					spinner.Tick()
				}
			}
		}()
	}

	opts := []session.Option{session.WithLogger(logger)}
	var (
		prebuild *progress.Tracker
		built    int
	)
	if cfg.Prebuild != "" {
		prebuild = progress.NewTracker("Prebuilding...", len(files))
		opts = append(opts, session.WithPrebuildProgress(func(file string) {
			prebuild.Step(file)
			if built++; built == len(files) {
				prebuild.FinishSuccess()
				startSpinner()
			}
		}))
	} else {
		startSpinner()
	}

	out, err := session.New(cfg, opts...).Run(ctx, files)
	close(done)
	wg.Wait()
	if prebuild != nil && built < len(files) {
		prebuild.FinishError(err)
	}
	return out, err
}
