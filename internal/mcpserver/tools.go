package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.lsp.dev/protocol"

	"github.com/gaps-closure/vscle/internal/output"
	"github.com/gaps-closure/vscle/internal/resolver"
	"github.com/gaps-closure/vscle/pkg/models"
)

// Common input structures for tools

// FormatInput selects the rendering of a tool result.
type FormatInput struct {
	Format string `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
}

// AnalyzeInput selects the files handed to the conflict analyzer.
type AnalyzeInput struct {
	FormatInput
	Files []string `json:"files,omitempty" jsonschema:"Source files to analyze. Defaults to every C/C++ file under the configured source directories."`
}

// DocumentInput names one source document.
type DocumentInput struct {
	FormatInput
	Path string `json:"path" jsonschema:"Path of the C/C++ source file."`
}

// PositionInput names a line of a source document.
type PositionInput struct {
	DocumentInput
	Line int `json:"line" jsonschema:"Zero-based line holding the CLE pragma or label annotation."`
}

// ReferencesInput names a label.
type ReferencesInput struct {
	FormatInput
	Label string `json:"label,omitempty" jsonschema:"Label to search for. Either label or path and line must be given."`
	Path  string `json:"path,omitempty" jsonschema:"Path of a file referencing the label."`
	Line  int    `json:"line,omitempty" jsonschema:"Zero-based line of the reference in path."`
}

// RenameInput adds the replacement label.
type RenameInput struct {
	PositionInput
	NewName string `json:"new_name" jsonschema:"Replacement label. Must be a C identifier."`
}

// WrapInput selects the text to wrap in a label pair.
type WrapInput struct {
	DocumentInput
	StartLine      int    `json:"start_line" jsonschema:"Zero-based first line of the selection. Must be the first line of a function definition."`
	StartCharacter int    `json:"start_character,omitempty" jsonschema:"Zero-based UTF-16 column where the selection starts."`
	EndLine        int    `json:"end_line" jsonschema:"Zero-based last line of the selection."`
	EndCharacter   int    `json:"end_character,omitempty" jsonschema:"Zero-based UTF-16 column where the selection ends. Columns past the line end are clamped."`
	Label          string `json:"label,omitempty" jsonschema:"Label for the begin/end pair. Left as a LABEL placeholder when empty."`
}

// OpenDocumentInput carries the unsaved content of a document.
type OpenDocumentInput struct {
	Path    string `json:"path" jsonschema:"Path of the C/C++ source file."`
	Content string `json:"content" jsonschema:"Full document text. Replaces what earlier calls provided."`
}

// CloseDocumentInput names a document to fall back to disk.
type CloseDocumentInput struct {
	Path string `json:"path" jsonschema:"Path given to open_document."`
}

// Results

type analyzeResult struct {
	Result    string              `json:"result"`
	Files     int                 `json:"files"`
	Topology  *models.Topology    `json:"topology,omitempty"`
	Conflicts []models.Diagnostic `json:"conflicts,omitempty"`
}

type highlightResult struct {
	Path       string                    `json:"path"`
	Highlights []models.HighlightCommand `json:"highlights"`
}

type lensResult struct {
	Path   string        `json:"path"`
	Lenses []models.Lens `json:"lenses"`
}

type locationsResult struct {
	Label     string           `json:"label"`
	Found     bool             `json:"found"`
	Locations []models.CLEInfo `json:"locations,omitempty"`
}

type renameEdit struct {
	Path  string         `json:"path"`
	Range protocol.Range `json:"range"`
	Text  string         `json:"new_text"`
}

type renameResult struct {
	Label string       `json:"label"`
	Edits []renameEdit `json:"edits"`
}

type hoverResult struct {
	Found      bool   `json:"found"`
	Definition string `json:"definition,omitempty"`
}

type wrapResult struct {
	Offered bool                 `json:"offered"`
	Action  *resolver.WrapAction `json:"action,omitempty"`
}

type documentResult struct {
	Path  string `json:"path"`
	Open  bool   `json:"open"`
	Bytes int    `json:"bytes,omitempty"`
}

type sourceSetResult struct {
	SourceDirs []string `json:"source_dirs"`
	Files      []string `json:"files"`
}

// Helper functions

func getFormat(input FormatInput) output.Format {
	switch input.Format {
	case "json":
		return output.FormatJSON
	case "markdown", "md":
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

func formatOutput(data any, format output.Format) (string, error) {
	switch format {
	case output.FormatJSON:
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", err
		}
		return string(out), nil
	case output.FormatMarkdown:
		out, err := output.MarshalTOON(data)
		if err != nil {
			return "", err
		}
		return "```\n" + out + "\n```", nil
	default:
		return output.MarshalTOON(data)
	}
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

func checkPosition(input PositionInput) error {
	if input.Path == "" {
		return errors.New("path is required")
	}
	if input.Line < 0 {
		return fmt.Errorf("line must be zero or greater, got %d", input.Line)
	}
	return nil
}

// Tool handlers

func (s *Server) handleAnalyze(ctx context.Context, req *mcp.CallToolRequest, input AnalyzeInput) (*mcp.CallToolResult, any, error) {
	format := getFormat(input.FormatInput)

	files := input.Files
	if len(files) == 0 {
		files = s.scanner.SourceSet()
	}
	if len(files) == 0 {
		return toolError("no source files found")
	}

	out, err := s.session.Run(ctx, files)
	if err != nil {
		return toolError(err.Error())
	}
	s.state.Apply(out)

	if out.Succeeded() {
		return toolResult(analyzeResult{Result: "Success", Files: len(files), Topology: out.Topology}, format)
	}
	return toolResult(analyzeResult{Result: "Conflict", Files: len(files), Conflicts: out.Diagnostics}, format)
}

func (s *Server) handleHighlight(ctx context.Context, req *mcp.CallToolRequest, input DocumentInput) (*mcp.CallToolResult, any, error) {
	format := getFormat(input.FormatInput)
	if input.Path == "" {
		return toolError("path is required")
	}

	top, err := s.state.Topology()
	if err != nil {
		return toolError(err.Error())
	}
	s.state.SetActiveDocument(input.Path)

	cmds, ok, err := s.projector.ProjectFile(ctx, top, input.Path)
	if err != nil {
		return toolError(err.Error())
	}
	if !ok {
		return toolError(input.Path + " is not directly inside a configured source directory")
	}
	return toolResult(highlightResult{Path: input.Path, Highlights: cmds}, format)
}

func (s *Server) handleLens(ctx context.Context, req *mcp.CallToolRequest, input DocumentInput) (*mcp.CallToolResult, any, error) {
	format := getFormat(input.FormatInput)
	if input.Path == "" {
		return toolError("path is required")
	}

	top, err := s.state.Topology()
	if err != nil {
		return toolError(err.Error())
	}
	lenses, err := s.projector.LensesFile(ctx, top, input.Path)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(lensResult{Path: input.Path, Lenses: lenses}, format)
}

func (s *Server) handleDefinition(ctx context.Context, req *mcp.CallToolRequest, input PositionInput) (*mcp.CallToolResult, any, error) {
	format := getFormat(input.FormatInput)
	if err := checkPosition(input); err != nil {
		return toolError(err.Error())
	}

	def, err := s.resolver.Definition(ctx, input.Path, input.Line)
	if errors.Is(err, resolver.ErrNotFound) {
		return toolResult(locationsResult{Found: false}, format)
	}
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(locationsResult{Label: def.Label, Found: true, Locations: []models.CLEInfo{*def}}, format)
}

func (s *Server) handleReferences(ctx context.Context, req *mcp.CallToolRequest, input ReferencesInput) (*mcp.CallToolResult, any, error) {
	format := getFormat(input.FormatInput)

	name := input.Label
	if name == "" {
		if input.Path == "" {
			return toolError("either label or path is required")
		}
		def, err := s.resolver.Definition(ctx, input.Path, input.Line)
		if errors.Is(err, resolver.ErrNotFound) {
			return toolResult(locationsResult{Found: false}, format)
		}
		if err != nil {
			return toolError(err.Error())
		}
		name = def.Label
	}

	occs, err := s.resolver.Occurrences(ctx, name)
	if errors.Is(err, resolver.ErrNotFound) {
		return toolResult(locationsResult{Label: name, Found: false}, format)
	}
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(locationsResult{Label: name, Found: len(occs) > 0, Locations: occs}, format)
}

func (s *Server) handleRename(ctx context.Context, req *mcp.CallToolRequest, input RenameInput) (*mcp.CallToolResult, any, error) {
	format := getFormat(input.FormatInput)
	if err := checkPosition(input.PositionInput); err != nil {
		return toolError(err.Error())
	}

	edit, err := s.resolver.RenameAt(ctx, input.Path, input.Line, input.NewName)
	if errors.Is(err, resolver.ErrNotFound) {
		return toolError("no label defined for the reference on that line")
	}
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(renameResult{Label: input.NewName, Edits: flattenEdits(*edit)}, format)
}

func (s *Server) handleHover(ctx context.Context, req *mcp.CallToolRequest, input PositionInput) (*mcp.CallToolResult, any, error) {
	format := getFormat(input.FormatInput)
	if err := checkPosition(input); err != nil {
		return toolError(err.Error())
	}

	h, err := s.resolver.Hover(ctx, input.Path, input.Line)
	if errors.Is(err, resolver.ErrNotFound) {
		return toolResult(hoverResult{Found: false}, format)
	}
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(hoverResult{Found: true, Definition: h.Contents.Value}, format)
}

func (s *Server) handleLabels(ctx context.Context, req *mcp.CallToolRequest, input FormatInput) (*mcp.CallToolResult, any, error) {
	format := getFormat(input)
	defs, err := s.resolver.Definitions(ctx)
	if errors.Is(err, resolver.ErrNotFound) {
		return toolResult(locationsResult{Found: false}, format)
	}
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(locationsResult{Found: len(defs) > 0, Locations: defs}, format)
}

func (s *Server) handleWrap(ctx context.Context, req *mcp.CallToolRequest, input WrapInput) (*mcp.CallToolResult, any, error) {
	format := getFormat(input.FormatInput)
	if input.Path == "" {
		return toolError("path is required")
	}
	for _, n := range []int{input.StartLine, input.StartCharacter, input.EndLine, input.EndCharacter} {
		if n < 0 {
			return toolError(fmt.Sprintf("selection positions must be zero or greater, got %d", n))
		}
	}

	sel := protocol.Range{
		Start: protocol.Position{Line: uint32(input.StartLine), Character: uint32(input.StartCharacter)},
		End:   protocol.Position{Line: uint32(input.EndLine), Character: uint32(input.EndCharacter)},
	}
	action, err := s.resolver.Wrap(ctx, input.Path, sel, input.Label)
	if errors.Is(err, resolver.ErrNoAction) {
		return toolResult(wrapResult{Offered: false}, format)
	}
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(wrapResult{Offered: true, Action: action}, format)
}

func (s *Server) handleOpenDocument(ctx context.Context, req *mcp.CallToolRequest, input OpenDocumentInput) (*mcp.CallToolResult, any, error) {
	if input.Path == "" {
		return toolError("path is required")
	}
	s.docs.Set(input.Path, []byte(input.Content))
	s.state.SetActiveDocument(input.Path)
	return toolResult(documentResult{Path: input.Path, Open: true, Bytes: len(input.Content)}, output.FormatJSON)
}

func (s *Server) handleCloseDocument(ctx context.Context, req *mcp.CallToolRequest, input CloseDocumentInput) (*mcp.CallToolResult, any, error) {
	if input.Path == "" {
		return toolError("path is required")
	}
	s.docs.Remove(input.Path)
	return toolResult(documentResult{Path: input.Path, Open: false}, output.FormatJSON)
}

func (s *Server) handleSourceSet(ctx context.Context, req *mcp.CallToolRequest, input FormatInput) (*mcp.CallToolResult, any, error) {
	return toolResult(sourceSetResult{
		SourceDirs: s.state.Config().SourceDirs,
		Files:      s.scanner.SourceSet(),
	}, getFormat(input))
}

// flattenEdits lists a workspace edit by file, in file order.
func flattenEdits(edit protocol.WorkspaceEdit) []renameEdit {
	var edits []renameEdit
	for _, uri := range sortedURIs(edit) {
		for _, e := range edit.Changes[uri] {
			edits = append(edits, renameEdit{Path: uri.Filename(), Range: e.Range, Text: e.NewText})
		}
	}
	return edits
}

func sortedURIs(edit protocol.WorkspaceEdit) []protocol.DocumentURI {
	uris := make([]protocol.DocumentURI, 0, len(edit.Changes))
	for u := range edit.Changes {
		uris = append(uris, u)
	}
	slices.Sort(uris)
	return uris
}
