package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/gaps-closure/vscle/internal/highlight"
	"github.com/gaps-closure/vscle/internal/output"
	"github.com/gaps-closure/vscle/internal/workspace"
	"github.com/gaps-closure/vscle/pkg/config"
	"github.com/gaps-closure/vscle/pkg/models"
)

func highlightCmd() *cli.Command {
	return &cli.Command{
		Name:      "highlight",
		Usage:     "Color the functions of a file by their enclave level",
		ArgsUsage: "<file>",
		Description: `Projects the last topology onto the function definitions of a file.
The topology comes from <output_path>/topology.json, written by analyze.
The file must sit directly inside a configured source directory.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "globals",
				Usage: "Also highlight global variables (overrides highlight.include_globals)",
			},
		},
		Action: runHighlightCmd,
	}
}

func lensCmd() *cli.Command {
	return &cli.Command{
		Name:      "lens",
		Usage:     "List the enclave level above each function of a file",
		ArgsUsage: "<file>",
		Action:    runLensCmd,
	}
}

// projectorFor builds a projector and the topology it projects.
func projectorFor(c *cli.Context) (*config.Config, *highlight.Projector, *models.Topology, error) {
	if c.Args().Len() != 1 {
		return nil, nil, nil, fmt.Errorf("expected exactly one file")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, nil, err
	}
	if c.Bool("globals") {
		cfg.Highlight.IncludeGlobals = true
	}
	logger := newLogger(c)

	state := workspace.New(cfg, workspace.WithLogger(logger))
	state.SetActiveDocument(c.Args().First())
	top, err := state.Topology()
	if err != nil {
		return nil, nil, nil, err
	}

	opts := []highlight.Option{highlight.WithLogger(logger)}
	if pc := openCache(cfg, logger); pc != nil {
		opts = append(opts, highlight.WithCache(pc))
	}
	return cfg, highlight.New(cfg, opts...), top, nil
}

func runHighlightCmd(c *cli.Context) error {
	cfg, proj, top, err := projectorFor(c)
	if err != nil {
		return err
	}
	path := c.Args().First()

	cmds, ok, err := proj.ProjectFile(c.Context, top, path)
	if err != nil {
		return err
	}
	if !ok {
		color.Yellow("%s is not directly inside a source directory; nothing to highlight", path)
		return nil
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()
	return formatter.Output(output.HighlightsView(path, cmds))
}

func runLensCmd(c *cli.Context) error {
	cfg, proj, top, err := projectorFor(c)
	if err != nil {
		return err
	}
	path := c.Args().First()

	lenses, err := proj.LensesFile(c.Context, top, path)
	if err != nil {
		return err
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()
	return formatter.Output(output.LensesView(path, lenses))
}
