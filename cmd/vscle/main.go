package main

import (
	"errors"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/gaps-closure/vscle/internal/session"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

func newApp() *cli.App {
	return &cli.App{
		Name:    "vscle",
		Usage:   "CLE label tooling for C/C++ cross-domain partitioning",
		Version: version,
		Description: `vscle runs the CLE conflict analyzer over annotated C/C++ sources,
projects the resulting enclave topology onto function definitions, and
navigates #pragma cle labels: definition, references, rename and hover.
It also lists the defined labels and wraps function definitions in a
begin/end label pair.

Line numbers on the command line are one-based.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"VSCLE_CONFIG"},
			},
			&cli.StringSliceFlag{
				Name:    "source-dir",
				Aliases: []string{"s"},
				Usage:   "Source directory, overriding source_dirs (repeatable)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "text",
				Usage:   "Output format: text, json, markdown, yaml, toon",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable the parse cache",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		// main reports errors and picks the exit code.
		ExitErrHandler: func(*cli.Context, error) {},
		Before: func(c *cli.Context) error {
			if c.Bool("no-color") {
				color.NoColor = true
			}
			return nil
		},
		Commands: []*cli.Command{
			analyzeCmd(),
			highlightCmd(),
			lensCmd(),
			definitionCmd(),
			referencesCmd(),
			renameCmd(),
			hoverCmd(),
			labelsCmd(),
			wrapCmd(),
			sourcesCmd(),
			watchCmd(),
			mcpCmd(),
			configCmd(),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			if msg := exitErr.Error(); msg != "" {
				color.Red("%s", msg)
			}
			os.Exit(exitErr.ExitCode())
		}
		if session.IsSessionError(err) {
			color.Red("Analysis failed: %v", err)
		} else {
			color.Red("Error: %v", err)
		}
		os.Exit(1)
	}
}
