package models

import (
	"go.lsp.dev/protocol"
)

// CLEInfo is a located CLE pragma token (definition or reference) in a file.
type CLEInfo struct {
	Range protocol.Range `json:"range"`
	Text  string         `json:"text"`
	Path  string         `json:"path"`
	Label string         `json:"label"`
}

// Diagnostic is a protocol diagnostic with the file it belongs to.
// File is empty when the analyzer gave no source site.
type Diagnostic struct {
	File string `json:"file,omitempty"`
	protocol.Diagnostic
}

// CommandKind distinguishes highlight commands.
type CommandKind string

const (
	CommandClearAll  CommandKind = "clear"
	CommandHighlight CommandKind = "highlight"
)

// HighlightCommand instructs the editor to clear all decorations or to
// color a range.
type HighlightCommand struct {
	Kind  CommandKind     `json:"kind"`
	Range *protocol.Range `json:"range,omitempty"`
	Color string          `json:"color,omitempty"`
	Level string          `json:"level,omitempty"`
	Name  string          `json:"name,omitempty"`
}

// ClearAll returns the command that removes every prior highlight.
func ClearAll() HighlightCommand {
	return HighlightCommand{Kind: CommandClearAll}
}

// Lens annotates a function definition with its assigned level.
type Lens struct {
	Range protocol.Range `json:"range"`
	Title string         `json:"title"`
}
