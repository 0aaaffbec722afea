// Package highlight projects an analyzer topology onto the function
// definitions of a source file as colored ranges.
package highlight

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"go.lsp.dev/protocol"

	"github.com/gaps-closure/vscle/internal/cache"
	"github.com/gaps-closure/vscle/internal/label"
	"github.com/gaps-closure/vscle/pkg/config"
	"github.com/gaps-closure/vscle/pkg/models"
	"github.com/gaps-closure/vscle/pkg/parser"
	"github.com/gaps-closure/vscle/pkg/source"
)

const (
	saturation = 0.5
	lightness  = 0.65
)

// Projector turns topologies into highlight commands.
type Projector struct {
	cfg    *config.Config
	cache  *cache.Cache
	src    source.ContentSource
	logger *slog.Logger
}

// Option configures a Projector.
type Option func(*Projector)

// WithCache parses files through c. Without a cache every file is parsed.
func WithCache(c *cache.Cache) Option {
	return func(p *Projector) {
		p.cache = c
	}
}

// WithSource reads files through src instead of the filesystem.
func WithSource(src source.ContentSource) Option {
	return func(p *Projector) {
		if src != nil {
			p.src = src
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Projector) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Projector.
func New(cfg *config.Config, opts ...Option) *Projector {
	p := &Projector{
		cfg:    cfg,
		src:    source.NewFilesystem(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// InSourceDir reports whether the directory containing path is exactly one
// of the configured source directories. Subdirectories do not match.
func (p *Projector) InSourceDir(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	dir := filepath.Dir(abs)
	for _, sd := range p.cfg.SourceDirs {
		sdAbs, err := filepath.Abs(sd)
		if err != nil {
			continue
		}
		if filepath.Clean(sdAbs) == dir {
			return true
		}
	}
	return false
}

// Palette assigns each level an evenly spaced hue. Colors are lowercase hex
// with alpha appended.
func Palette(levels []string, alpha string) map[string]string {
	colors := make(map[string]string, len(levels))
	n := float64(len(levels))
	for i, level := range levels {
		hue := float64(i) * 360 / n
		colors[level] = colorful.Hsl(hue, saturation, lightness).Hex() + strings.ToLower(alpha)
	}
	return colors
}

// Project returns a ClearAll command followed by one highlight per
// assignment that names a definition in defs. It returns false, and no
// commands, when activeDocPath is outside the configured source directories.
func (p *Projector) Project(top *models.Topology, defs []parser.FunctionNode, activeDocPath string) ([]models.HighlightCommand, bool) {
	if !p.InSourceDir(activeDocPath) {
		return nil, false
	}
	cmds := []models.HighlightCommand{models.ClearAll()}
	if top == nil {
		return cmds, true
	}

	includeGlobals := p.cfg.Highlight.IncludeGlobals
	colors := Palette(top.ReferencedLevels(includeGlobals), p.cfg.Highlight.Alpha)
	byName := indexDefinitions(defs)

	for _, a := range top.Assignments(includeGlobals) {
		def, ok := byName[strings.TrimSpace(a.Name)]
		if !ok {
			continue
		}
		rng := definitionRange(def)
		cmds = append(cmds, models.HighlightCommand{
			Kind:  models.CommandHighlight,
			Range: &rng,
			Color: colors[a.Level],
			Level: a.Level,
			Name:  def.Name,
		})
	}
	return cmds, true
}

// Lenses annotates each assigned function definition with its level.
func (p *Projector) Lenses(top *models.Topology, defs []parser.FunctionNode) []models.Lens {
	if top == nil {
		return nil
	}
	byName := indexDefinitions(defs)
	var lenses []models.Lens
	for _, a := range top.Assignments(p.cfg.Highlight.IncludeGlobals) {
		def, ok := byName[strings.TrimSpace(a.Name)]
		if !ok {
			continue
		}
		start := protocol.Position{Line: def.Start.Row, Character: def.Start.Column}
		lenses = append(lenses, models.Lens{
			Range: protocol.Range{Start: start, End: start},
			Title: a.Level,
		})
	}
	return lenses
}

// Definitions returns the highlightable definitions in path: its functions,
// plus its file-scope variables when globals are included. Columns are
// UTF-16 code units.
func (p *Projector) Definitions(ctx context.Context, path string) ([]parser.FunctionNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := p.src.Read(path)
	if err != nil {
		return nil, err
	}

	if !p.cfg.Highlight.IncludeGlobals && p.cache != nil {
		defs, err := p.cache.Functions(path, content)
		if err != nil {
			return nil, err
		}
		return utf16Columns(defs, content), nil
	}

	psr := parser.New()
	defer psr.Close()
	result, err := psr.Parse(content, parser.DetectLanguage(path), path)
	if err != nil {
		return nil, err
	}
	defs := parser.GetFunctions(result)
	if p.cfg.Highlight.IncludeGlobals {
		defs = append(defs, parser.GetGlobalDeclarations(result)...)
	}
	return utf16Columns(defs, content), nil
}

// utf16Columns rewrites tree-sitter byte columns as UTF-16 columns, the
// unit navigation ranges use.
func utf16Columns(defs []parser.FunctionNode, content []byte) []parser.FunctionNode {
	out := make([]parser.FunctionNode, len(defs))
	for i, d := range defs {
		d.Start.Column = uint32(label.UTF16Column(content, int(d.Start.Row), int(d.Start.Column)))
		d.End.Column = uint32(label.UTF16Column(content, int(d.End.Row), int(d.End.Column)))
		out[i] = d
	}
	return out
}

// ProjectFile parses path and projects top onto it.
func (p *Projector) ProjectFile(ctx context.Context, top *models.Topology, path string) ([]models.HighlightCommand, bool, error) {
	if !p.InSourceDir(path) {
		p.logger.Debug("document outside source directories", "path", path)
		return nil, false, nil
	}
	defs, err := p.Definitions(ctx, path)
	if err != nil {
		return nil, false, err
	}
	cmds, ok := p.Project(top, defs, path)
	return cmds, ok, nil
}

// LensesFile parses path and returns its level lenses.
func (p *Projector) LensesFile(ctx context.Context, top *models.Topology, path string) ([]models.Lens, error) {
	defs, err := p.Definitions(ctx, path)
	if err != nil {
		return nil, err
	}
	return p.Lenses(top, defs), nil
}

// indexDefinitions maps names to their first definition.
func indexDefinitions(defs []parser.FunctionNode) map[string]parser.FunctionNode {
	byName := make(map[string]parser.FunctionNode, len(defs))
	for _, d := range defs {
		name := strings.TrimSpace(d.Name)
		if _, ok := byName[name]; !ok {
			byName[name] = d
		}
	}
	return byName
}

// definitionRange covers the definition. A definition with no known end
// collapses to its start.
func definitionRange(def parser.FunctionNode) protocol.Range {
	start := protocol.Position{Line: def.Start.Row, Character: def.Start.Column}
	end := protocol.Position{Line: def.End.Row, Character: def.End.Column}
	if def.End == (parser.Point{}) || def.End.Row < def.Start.Row {
		end = start
	}
	return protocol.Range{Start: start, End: end}
}
