// Package resolver answers cross-reference queries about CLE labels across
// the configured source tree: where a label is defined, where it is used,
// and what edits rename it.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gaps-closure/vscle/internal/fileproc"
	"github.com/gaps-closure/vscle/internal/label"
	"github.com/gaps-closure/vscle/internal/scanner"
	"github.com/gaps-closure/vscle/pkg/config"
	"github.com/gaps-closure/vscle/pkg/models"
	"github.com/gaps-closure/vscle/pkg/source"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

// ErrNotFound is returned when a query has no answer. It is a normal
// navigation outcome, not a failure.
var ErrNotFound = errors.New("cle label not found")

// InvalidNameError reports a rename target that is not a valid label.
type InvalidNameError struct {
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid label name %q", e.Name)
}

// Resolver resolves CLE labels against the source set.
type Resolver struct {
	scanner *scanner.Scanner
	src     source.ContentSource
	logger  *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for unreadable-file warnings.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithSource reads file content through src instead of the filesystem,
// e.g. an overlay holding unsaved editor buffers.
func WithSource(src source.ContentSource) Option {
	return func(r *Resolver) {
		r.src = src
	}
}

// New creates a Resolver over the source directories in cfg.
func New(cfg *config.Config, opts ...Option) *Resolver {
	r := &Resolver{
		src:    source.NewFilesystem(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.scanner = scanner.NewScanner(cfg, scanner.WithLogger(r.logger))
	return r
}

// readAll reads the source set as one concurrent batch. Files keep walk
// order; unreadable files are logged and dropped.
func (r *Resolver) readAll(ctx context.Context) ([]fileproc.File, int) {
	paths := r.scanner.SourceSet()
	files := fileproc.ReadFiles(ctx, paths, r.src, func(path string, err error) {
		r.logger.Warn("skipping unreadable file", "path", path, "error", err)
	})
	return files, len(paths)
}

// Definition returns the definition of the label referenced on the given
// zero-based line of path. The first definition in walk order wins.
func (r *Resolver) Definition(ctx context.Context, path string, line int) (*models.CLEInfo, error) {
	content, err := r.src.Read(path)
	if err != nil {
		r.logger.Warn("cannot read document", "path", path, "error", err)
		return nil, ErrNotFound
	}
	ref, ok := label.ReferenceAt(content, line)
	if !ok {
		return nil, ErrNotFound
	}
	return r.DefinitionOf(ctx, ref.Label)
}

// DefinitionOf returns the first definition of name in walk order.
func (r *Resolver) DefinitionOf(ctx context.Context, name string) (*models.CLEInfo, error) {
	files, _ := r.readAll(ctx)
	for _, f := range files {
		def, ok := label.FindDefinition(f.Content, name)
		if !ok {
			continue
		}
		return &models.CLEInfo{
			Range: protocol.Range{Start: toProtocol(def.Start), End: toProtocol(def.End)},
			Text:  def.Text,
			Path:  f.Path,
			Label: def.Label,
		}, nil
	}
	return nil, ErrNotFound
}

// Definitions lists every label definition in the source set, in walk
// order then file order. A label defined twice is listed twice.
func (r *Resolver) Definitions(ctx context.Context) ([]models.CLEInfo, error) {
	files, total := r.readAll(ctx)
	if total == 0 {
		return nil, ErrNotFound
	}
	defs := []models.CLEInfo{}
	for _, f := range files {
		for _, def := range label.FindDefinitions(f.Content) {
			defs = append(defs, models.CLEInfo{
				Range: protocol.Range{Start: toProtocol(def.Start), End: toProtocol(def.End)},
				Text:  def.Text,
				Path:  f.Path,
				Label: def.Label,
			})
		}
	}
	return defs, nil
}

// Occurrences returns every reference site of name. The result is empty,
// not an error, for a label that is never referenced; ErrNotFound means
// no source directory produced any file.
func (r *Resolver) Occurrences(ctx context.Context, name string) ([]models.CLEInfo, error) {
	files, total := r.readAll(ctx)
	if total == 0 {
		return nil, ErrNotFound
	}

	occs := []models.CLEInfo{}
	for _, f := range files {
		for _, ref := range label.ScanLabel(f.Content, name) {
			occs = append(occs, models.CLEInfo{
				Range: protocol.Range{Start: toProtocol(ref.Start), End: toProtocol(ref.End)},
				Text:  ref.Text,
				Path:  f.Path,
				Label: ref.Label,
			})
		}
	}
	return occs, nil
}

// Rename builds the edits replacing the label in def and in every
// occurrence with newName, grouped by file. Files without edits are absent.
func Rename(def *models.CLEInfo, occurrences []models.CLEInfo, newName string) protocol.WorkspaceEdit {
	changes := make(map[protocol.DocumentURI][]protocol.TextEdit)
	add := func(info models.CLEInfo) {
		rng, ok := LabelRange(info)
		if !ok {
			return
		}
		key := DocumentURI(info.Path)
		changes[key] = append(changes[key], protocol.TextEdit{Range: rng, NewText: newName})
	}

	if def != nil {
		add(*def)
	}
	for _, occ := range occurrences {
		add(occ)
	}
	return protocol.WorkspaceEdit{Changes: changes}
}

// RenameAt renames the label referenced on the given line of path.
func (r *Resolver) RenameAt(ctx context.Context, path string, line int, newName string) (*protocol.WorkspaceEdit, error) {
	if !label.IsIdentifier(newName) {
		return nil, &InvalidNameError{Name: newName}
	}
	def, err := r.Definition(ctx, path, line)
	if err != nil {
		return nil, err
	}
	occs, err := r.Occurrences(ctx, def.Label)
	if err != nil {
		return nil, err
	}
	edit := Rename(def, occs, newName)
	return &edit, nil
}

// Hover renders the definition of the label referenced on the given line
// as a fenced C block.
func (r *Resolver) Hover(ctx context.Context, path string, line int) (*protocol.Hover, error) {
	def, err := r.Definition(ctx, path, line)
	if err != nil {
		return nil, err
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: strings.Join([]string{"```c", def.Text, "```"}, "\n"),
		},
	}, nil
}

// LabelRange is the range of the label token itself within info.
func LabelRange(info models.CLEInfo) (protocol.Range, bool) {
	start, end, ok := label.Span(info.Text, info.Label)
	if !ok {
		return protocol.Range{}, false
	}
	line := info.Range.Start.Line
	col := info.Range.Start.Character
	return protocol.Range{
		Start: protocol.Position{Line: line, Character: col + uint32(start)},
		End:   protocol.Position{Line: line, Character: col + uint32(end)},
	}, true
}

// DocumentURI returns the file URI for path, made absolute.
func DocumentURI(path string) protocol.DocumentURI {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return uri.File(path)
}

func toProtocol(p label.Position) protocol.Position {
	return protocol.Position{Line: uint32(p.Line), Character: uint32(p.Character)}
}
