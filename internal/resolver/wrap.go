package resolver

import (
	"context"
	"errors"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/gaps-closure/vscle/internal/label"
	"github.com/gaps-closure/vscle/pkg/parser"
)

// ErrNoAction is returned when a selection does not qualify for wrapping.
var ErrNoAction = errors.New("no cle code action for the selection")

const (
	WrapTitle = "Wrap in CLE Label"
	WrapKind  = protocol.CodeActionKind("refactor.inline")
)

// WrapAction wraps a selection that starts on a function definition in a
// begin/end pragma pair.
type WrapAction struct {
	Title    string                  `json:"title"`
	Kind     protocol.CodeActionKind `json:"kind"`
	Path     string                  `json:"path"`
	Function string                  `json:"function"`
	Range    protocol.Range          `json:"range"`
	// Snippet is the editor template; Edit is the same wrap with the
	// selection and label filled in.
	Snippet string            `json:"snippet"`
	Edit    protocol.TextEdit `json:"edit"`
}

// Wrap offers the wrap action for sel in path. The selection must be
// non-empty and start on the first line of a function definition;
// anything else yields ErrNoAction. An empty name leaves a LABEL
// placeholder.
func (r *Resolver) Wrap(ctx context.Context, path string, sel protocol.Range, name string) (*WrapAction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name != "" && !label.IsIdentifier(name) {
		return nil, &InvalidNameError{Name: name}
	}
	if !validSelection(sel) {
		return nil, ErrNoAction
	}
	lang := parser.DetectLanguage(path)
	if lang == parser.LangUnknown {
		return nil, ErrNoAction
	}

	content, err := r.src.Read(path)
	if err != nil {
		return nil, err
	}
	psr := parser.New()
	defer psr.Close()
	result, err := psr.Parse(content, lang, path)
	if err != nil {
		return nil, err
	}

	var fn *parser.FunctionNode
	for _, f := range parser.GetFunctions(result) {
		if f.Start.Row == sel.Start.Line {
			fn = &f
			break
		}
	}
	if fn == nil {
		return nil, ErrNoAction
	}

	start := label.PositionOffset(content, fromProtocol(sel.Start))
	end := label.PositionOffset(content, fromProtocol(sel.End))
	rng := protocol.Range{
		Start: toProtocol(label.OffsetToPosition(content, start)),
		End:   toProtocol(label.OffsetToPosition(content, end)),
	}
	return &WrapAction{
		Title:    WrapTitle,
		Kind:     WrapKind,
		Path:     path,
		Function: fn.Name,
		Range:    rng,
		Snippet:  WrapSnippet(name),
		Edit:     protocol.TextEdit{Range: rng, NewText: wrapText(string(content[start:end]), name)},
	}, nil
}

// validSelection is true for a selection spanning at least one character.
func validSelection(sel protocol.Range) bool {
	if sel.Start.Line == sel.End.Line {
		return sel.End.Character > sel.Start.Character
	}
	return sel.End.Line > sel.Start.Line
}

// WrapSnippet returns the editor snippet that wraps the selection in a
// begin/end pair. An empty name leaves a LABEL placeholder.
func WrapSnippet(name string) string {
	if name == "" {
		name = "LABEL"
	}
	return strings.Join([]string{
		"#pragma cle begin ${1:" + name + "}",
		"$TM_SELECTED_TEXT",
		"#pragma cle end ${1:" + name + "}",
		"",
	}, "\n")
}

// wrapText surrounds selected with the pragma pair. A selection ending in
// a newline keeps one after the end pragma.
func wrapText(selected, name string) string {
	if name == "" {
		name = "LABEL"
	}
	body := strings.TrimSuffix(selected, "\n")
	text := "#pragma cle begin " + name + "\n" + body + "\n#pragma cle end " + name
	if body != selected {
		text += "\n"
	}
	return text
}

func fromProtocol(p protocol.Position) label.Position {
	return label.Position{Line: int(p.Line), Character: int(p.Character)}
}
