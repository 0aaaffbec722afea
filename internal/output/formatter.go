package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	toon "github.com/toon-format/toon-go"
	"go.lsp.dev/protocol"
	"gopkg.in/yaml.v3"
)

// Format selects how command results are written.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatYAML     Format = "yaml"
	FormatTOON     Format = "toon"
)

// ParseFormat converts a --format value to Format, defaulting to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "markdown", "md":
		return FormatMarkdown
	case "yaml", "yml":
		return FormatYAML
	case "toon":
		return FormatTOON
	default:
		return FormatText
	}
}

// Renderable is a command result: a human view for text and markdown, and
// the protocol data behind it for the structured formats.
type Renderable interface {
	RenderText(w io.Writer, colored bool) error
	RenderMarkdown(w io.Writer) error
	RenderData() any
}

// Formatter writes command results to stdout or a file.
type Formatter struct {
	format  Format
	writer  io.Writer
	file    *os.File
	colored bool
}

// NewFormatter writes to output, or stdout when output is empty. Files
// never get color.
func NewFormatter(format Format, output string, colored bool) (*Formatter, error) {
	f := &Formatter{format: format, writer: os.Stdout, colored: colored}
	if output != "" {
		file, err := os.Create(output)
		if err != nil {
			return nil, err
		}
		f.writer, f.file, f.colored = file, file, false
	}
	return f, nil
}

// NewFormatterTo creates a formatter writing to w.
func NewFormatterTo(w io.Writer, format Format, colored bool) *Formatter {
	return &Formatter{format: format, writer: w, colored: colored}
}

// Close closes the output file, if any.
func (f *Formatter) Close() error {
	if f.file != nil {
		return f.file.Close()
	}
	return nil
}

// Output writes r in the configured format.
func (f *Formatter) Output(r Renderable) error {
	switch f.format {
	case FormatJSON:
		enc := json.NewEncoder(f.writer)
		enc.SetIndent("", "  ")
		return enc.Encode(r.RenderData())
	case FormatYAML:
		return f.outputYAML(r.RenderData())
	case FormatTOON:
		out, err := MarshalTOON(r.RenderData())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(f.writer, out)
		return err
	case FormatMarkdown:
		return r.RenderMarkdown(f.writer)
	default:
		return r.RenderText(f.writer, f.colored)
	}
}

// outputYAML goes through JSON first so that json tags and the protocol
// types' own marshalers decide the keys. Ranges stay {line, character}.
func (f *Formatter) outputYAML(data any) error {
	generic, err := toGeneric(data)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(f.writer)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

// MarshalTOON renders data as TOON, going through JSON so json tags apply.
func MarshalTOON(data any) (string, error) {
	generic, err := toGeneric(data)
	if err != nil {
		return "", err
	}
	out, err := toon.Marshal(generic, toon.WithIndent(2))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func toGeneric(data any) (any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var generic any
	err = json.Unmarshal(raw, &generic)
	return generic, err
}

// Table lists locations, edits or assignments one row each. Data is what
// the structured formats emit in place of the rows.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Footer  []string
	Data    any
	// Styles colors cells of the given column in colored text output.
	Styles map[int]func(string) string
}

// NewTable creates a table that wraps structured data for serialization.
func NewTable(title string, headers []string, rows [][]string, footer []string, data any) *Table {
	return &Table{
		Title:   title,
		Headers: headers,
		Rows:    rows,
		Footer:  footer,
		Data:    data,
	}
}

func (t *Table) RenderData() any {
	if t.Data != nil {
		return t.Data
	}
	result := make([]map[string]string, len(t.Rows))
	for i, row := range t.Rows {
		m := make(map[string]string)
		for j, h := range t.Headers {
			if j < len(row) {
				m[h] = row[j]
			}
		}
		result[i] = m
	}
	return result
}

func (t *Table) RenderText(w io.Writer, colored bool) error {
	writeTitle(w, t.Title, colored)

	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
			},
			Row:    tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignLeft}},
			Footer: tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignLeft}},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders:  tw.Border{Left: tw.Off, Right: tw.Off, Top: tw.Off, Bottom: tw.Off},
			Settings: tw.Settings{Separators: tw.Separators{BetweenColumns: tw.Off}},
		}),
	)

	table.Header(t.Headers)
	for _, row := range t.Rows {
		table.Append(t.styled(row, colored))
	}
	if len(t.Footer) > 0 {
		footer := make([]any, len(t.Footer))
		for i, f := range t.Footer {
			footer[i] = f
		}
		table.Footer(footer...)
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}

func (t *Table) styled(row []string, colored bool) []string {
	if !colored || len(t.Styles) == 0 {
		return row
	}
	out := make([]string, len(row))
	for i, cell := range row {
		if style, ok := t.Styles[i]; ok {
			cell = style(cell)
		}
		out[i] = cell
	}
	return out
}

func (t *Table) RenderMarkdown(w io.Writer) error {
	if t.Title != "" {
		fmt.Fprintf(w, "## %s\n\n", t.Title)
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(t.Headers, " | "))
	fmt.Fprintf(w, "|%s\n", strings.Repeat(" --- |", len(t.Headers)))
	for _, row := range t.Rows {
		fmt.Fprintf(w, "| %s |\n", strings.Join(escapeCells(row), " | "))
	}
	if len(t.Footer) > 0 {
		fmt.Fprintf(w, "| %s |\n", strings.Join(t.Footer, " | "))
	}
	_, err := fmt.Fprintln(w)
	return err
}

// escapeCells keeps pragma text such as `{"a"|"b"}` from splitting a row.
func escapeCells(row []string) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = strings.ReplaceAll(cell, "|", `\|`)
	}
	return out
}

func writeTitle(w io.Writer, title string, colored bool) {
	if title == "" {
		return
	}
	if colored {
		color.New(color.Bold).Fprintln(w, title)
	} else {
		fmt.Fprintln(w, title)
	}
	fmt.Fprintln(w, strings.Repeat("=", len(title)))
	fmt.Fprintln(w)
}

// messages reports whether status lines may be mixed into the output.
// Structured formats carry only their data.
func (f *Formatter) messages() bool {
	return f.format == FormatText || f.format == FormatMarkdown
}

// Success reports a completed step, such as a written topology artifact.
func (f *Formatter) Success(format string, args ...any) {
	if !f.messages() {
		return
	}
	if f.colored {
		color.New(color.FgGreen).Fprintf(f.writer, format+"\n", args...)
		return
	}
	fmt.Fprintf(f.writer, format+"\n", args...)
}

// Warning reports an outcome that needs the user's attention, such as
// conflicts that kept the previous topology.
func (f *Formatter) Warning(format string, args ...any) {
	if !f.messages() {
		return
	}
	if f.colored {
		color.New(color.FgYellow).Fprintf(f.writer, format+"\n", args...)
		return
	}
	fmt.Fprintf(f.writer, "WARNING: "+format+"\n", args...)
}

// SeverityColor colors text by diagnostic severity. Conflicts are errors;
// the other levels are rendered for analyzers that report them.
func SeverityColor(severity protocol.DiagnosticSeverity, text string) string {
	switch severity {
	case protocol.DiagnosticSeverityError:
		return color.RedString(text)
	case protocol.DiagnosticSeverityWarning:
		return color.YellowString(text)
	case protocol.DiagnosticSeverityInformation, protocol.DiagnosticSeverityHint:
		return color.CyanString(text)
	default:
		return text
	}
}
