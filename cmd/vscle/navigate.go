package main

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"go.lsp.dev/protocol"

	"github.com/gaps-closure/vscle/internal/output"
	"github.com/gaps-closure/vscle/internal/resolver"
	"github.com/gaps-closure/vscle/internal/scanner"
	"github.com/gaps-closure/vscle/pkg/config"
	"github.com/gaps-closure/vscle/pkg/models"
)

func definitionCmd() *cli.Command {
	return &cli.Command{
		Name:      "definition",
		Aliases:   []string{"def"},
		Usage:     "Show the #pragma cle def for the label used on a line",
		ArgsUsage: "<file> <line> | <file:line>",
		Action:    runDefinitionCmd,
	}
}

func referencesCmd() *cli.Command {
	return &cli.Command{
		Name:      "references",
		Aliases:   []string{"refs"},
		Usage:     "List every use of a label",
		ArgsUsage: "<file> <line> | <file:line> | --label NAME",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "label",
				Aliases: []string{"l"},
				Usage:   "Label to search for instead of a position",
			},
		},
		Action: runReferencesCmd,
	}
}

func renameCmd() *cli.Command {
	return &cli.Command{
		Name:      "rename",
		Usage:     "Compute the edits renaming the label used on a line",
		ArgsUsage: "<file> <line> <new-name> | <file:line> <new-name>",
		Description: `Prints the edits replacing the label at its definition and at every
use. The files are not modified.`,
		Action: runRenameCmd,
	}
}

func hoverCmd() *cli.Command {
	return &cli.Command{
		Name:      "hover",
		Usage:     "Print the full definition of the label used on a line",
		ArgsUsage: "<file> <line> | <file:line>",
		Action:    runHoverCmd,
	}
}

func labelsCmd() *cli.Command {
	return &cli.Command{
		Name:   "labels",
		Usage:  "List every #pragma cle def in the source set",
		Action: runLabelsCmd,
	}
}

func wrapCmd() *cli.Command {
	return &cli.Command{
		Name:      "wrap",
		Usage:     "Wrap a function definition in a begin/end label pair",
		ArgsUsage: "<file> <start-line> [end-line] | <file:start-line> [end-line]",
		Description: `Selects whole lines from start-line through end-line (default: start-line)
and prints the wrapped text. The action is only offered when start-line
is the first line of a function definition. The file is not modified.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "label",
				Aliases: []string{"l"},
				Usage:   "Label to use; LABEL is left as a placeholder when empty",
			},
		},
		Action: runWrapCmd,
	}
}

func sourcesCmd() *cli.Command {
	return &cli.Command{
		Name:   "sources",
		Usage:  "List the C/C++ files under the source directories",
		Action: runSourcesCmd,
	}
}

func newResolver(c *cli.Context) (*config.Config, *resolver.Resolver, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	return cfg, resolver.New(cfg, resolver.WithLogger(newLogger(c))), nil
}

// notFound reports a lookup with no answer. It is not an error.
func notFound(err error) (bool, error) {
	if errors.Is(err, resolver.ErrNotFound) {
		color.Yellow("No CLE label found")
		return true, nil
	}
	return false, err
}

func writeOutput(c *cli.Context, cfg *config.Config, data output.Renderable) error {
	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()
	return formatter.Output(data)
}

func runDefinitionCmd(c *cli.Context) error {
	path, line, rest, err := parsePosition(c.Args().Slice())
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return fmt.Errorf("unexpected arguments: %v", rest)
	}
	cfg, r, err := newResolver(c)
	if err != nil {
		return err
	}

	def, err := r.Definition(c.Context, path, line)
	if done, err := notFound(err); done || err != nil {
		return err
	}
	return writeOutput(c, cfg, output.LocationsView("Definition", []models.CLEInfo{*def}))
}

func runReferencesCmd(c *cli.Context) error {
	name := c.String("label")
	var (
		path string
		line int
	)
	if name == "" {
		var err error
		if path, line, _, err = parsePosition(c.Args().Slice()); err != nil {
			return err
		}
	}
	cfg, r, err := newResolver(c)
	if err != nil {
		return err
	}

	if name == "" {
		def, err := r.Definition(c.Context, path, line)
		if done, err := notFound(err); done || err != nil {
			return err
		}
		name = def.Label
	}

	occs, err := r.Occurrences(c.Context, name)
	if done, err := notFound(err); done || err != nil {
		return err
	}
	return writeOutput(c, cfg, output.LocationsView("References: "+name, occs))
}

func runRenameCmd(c *cli.Context) error {
	path, line, rest, err := parsePosition(c.Args().Slice())
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("expected the new label name")
	}
	cfg, r, err := newResolver(c)
	if err != nil {
		return err
	}

	edit, err := r.RenameAt(c.Context, path, line, rest[0])
	if done, err := notFound(err); done || err != nil {
		return err
	}
	return writeOutput(c, cfg, output.EditsView(*edit))
}

func runHoverCmd(c *cli.Context) error {
	path, line, _, err := parsePosition(c.Args().Slice())
	if err != nil {
		return err
	}
	cfg, r, err := newResolver(c)
	if err != nil {
		return err
	}

	h, err := r.Hover(c.Context, path, line)
	if done, err := notFound(err); done || err != nil {
		return err
	}
	return writeOutput(c, cfg, output.HoverView{Hover: h})
}

func runLabelsCmd(c *cli.Context) error {
	cfg, r, err := newResolver(c)
	if err != nil {
		return err
	}
	defs, err := r.Definitions(c.Context)
	if done, err := notFound(err); done || err != nil {
		return err
	}
	return writeOutput(c, cfg, output.LocationsView("Labels", defs))
}

func runWrapCmd(c *cli.Context) error {
	path, start, rest, err := parsePosition(c.Args().Slice())
	if err != nil {
		return err
	}
	end := start
	switch len(rest) {
	case 0:
	case 1:
		n, convErr := strconv.Atoi(rest[0])
		if convErr != nil || n-1 < start {
			return fmt.Errorf("invalid end line %q: must be at least the start line", rest[0])
		}
		end = n - 1
	default:
		return fmt.Errorf("unexpected arguments: %v", rest[1:])
	}
	cfg, r, err := newResolver(c)
	if err != nil {
		return err
	}

	// Whole lines: the resolver clamps the end column to the line length.
	sel := protocol.Range{
		Start: protocol.Position{Line: uint32(start)},
		End:   protocol.Position{Line: uint32(end), Character: math.MaxUint32},
	}
	action, err := r.Wrap(c.Context, path, sel, c.String("label"))
	if errors.Is(err, resolver.ErrNoAction) {
		color.Yellow("No function definition starts on line %d", start+1)
		return nil
	}
	if err != nil {
		return err
	}
	return writeOutput(c, cfg, output.WrapView{Action: action})
}

func runSourcesCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	files := scanner.NewScanner(cfg, scanner.WithLogger(newLogger(c))).SourceSet()

	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{f})
	}
	footer := []string{fmt.Sprintf("%d file(s)", len(files))}
	return writeOutput(c, cfg, output.NewTable("Source set", []string{"File"}, rows, footer, files))
}
