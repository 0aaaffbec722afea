package output

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/fatih/color"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/gaps-closure/vscle/internal/resolver"
	"github.com/gaps-closure/vscle/pkg/models"
)

// FormatRange renders a zero-based range as one-based line:col pairs.
func FormatRange(r protocol.Range) string {
	start := fmt.Sprintf("%d:%d", r.Start.Line+1, r.Start.Character+1)
	if r.End == r.Start {
		return start
	}
	return fmt.Sprintf("%s-%d:%d", start, r.End.Line+1, r.End.Character+1)
}

// DiagnosticsView renders conflict diagnostics, one row per conflict site.
func DiagnosticsView(diags []models.Diagnostic) Renderable {
	rows := make([][]string, 0, len(diags))
	for _, d := range diags {
		file := d.File
		if file == "" {
			file = "-"
		}
		rows = append(rows, []string{
			severityName(d.Severity),
			file,
			FormatRange(d.Range),
			fmt.Sprint(d.Code),
			d.Message,
			strings.Join(remedies(d), "; "),
		})
	}
	footer := []string{fmt.Sprintf("%d conflict site(s)", len(diags)), "", "", "", "", ""}
	t := NewTable("Conflicts", []string{"Severity", "File", "Position", "Conflict", "Message", "Remedies"}, rows, footer, diags)
	t.Styles = map[int]func(string) string{
		0: func(cell string) string { return SeverityColor(severityFromName(cell), cell) },
	}
	return t
}

var severityNames = map[protocol.DiagnosticSeverity]string{
	protocol.DiagnosticSeverityError:       "error",
	protocol.DiagnosticSeverityWarning:     "warning",
	protocol.DiagnosticSeverityInformation: "info",
	protocol.DiagnosticSeverityHint:        "hint",
}

func severityName(s protocol.DiagnosticSeverity) string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "error"
}

func severityFromName(name string) protocol.DiagnosticSeverity {
	for s, n := range severityNames {
		if n == name {
			return s
		}
	}
	return protocol.DiagnosticSeverityError
}

func remedies(d models.Diagnostic) []string {
	switch v := d.Data.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, r := range v {
			out = append(out, fmt.Sprint(r))
		}
		return out
	}
	return nil
}

// TopologyView renders a level assignment table: the levels, then the
// function and global variable assignments.
type TopologyView struct {
	Topology *models.Topology
}

func (v TopologyView) RenderData() any {
	return v.Topology
}

func (v TopologyView) levels() string {
	levels := slices.Clone(v.Topology.Levels)
	if len(levels) == 0 {
		levels = v.Topology.ReferencedLevels(true)
	}
	return strings.Join(levels, ", ")
}

func (v TopologyView) tables() []*Table {
	headers := []string{"Name", "Level", "Line"}
	rows := func(as []models.EnclaveAssignment) [][]string {
		out := make([][]string, 0, len(as))
		for _, a := range as {
			out = append(out, []string{strings.TrimSpace(a.Name), a.Level, a.Line})
		}
		return out
	}
	return []*Table{
		NewTable("Functions", headers, rows(v.Topology.Functions), nil, nil),
		NewTable("Global variables", headers, rows(v.Topology.GlobalScopedVars), nil, nil),
	}
}

func (v TopologyView) RenderText(w io.Writer, colored bool) error {
	writeTitle(w, "Topology", colored)
	fmt.Fprintf(w, "Levels: %s\n\n", v.levels())
	for _, t := range v.tables() {
		if err := t.RenderText(w, colored); err != nil {
			return err
		}
	}
	return nil
}

func (v TopologyView) RenderMarkdown(w io.Writer) error {
	fmt.Fprintf(w, "# Topology\n\nLevels: %s\n\n", v.levels())
	for _, t := range v.tables() {
		if err := t.RenderMarkdown(w); err != nil {
			return err
		}
	}
	return nil
}

// HighlightsView renders highlight commands. The leading ClearAll is
// implied and not listed.
func HighlightsView(path string, cmds []models.HighlightCommand) Renderable {
	rows := make([][]string, 0, len(cmds))
	for _, c := range cmds {
		if c.Kind != models.CommandHighlight || c.Range == nil {
			continue
		}
		rows = append(rows, []string{c.Name, c.Level, FormatRange(*c.Range), c.Color})
	}
	return NewTable("Highlights: "+path, []string{"Function", "Level", "Range", "Color"}, rows, nil, cmds)
}

// LensesView renders level lenses.
func LensesView(path string, lenses []models.Lens) Renderable {
	rows := make([][]string, 0, len(lenses))
	for _, l := range lenses {
		rows = append(rows, []string{fmt.Sprint(l.Range.Start.Line + 1), l.Title})
	}
	return NewTable("Lenses: "+path, []string{"Line", "Level"}, rows, nil, lenses)
}

// LocationsView renders label definitions or occurrences.
func LocationsView(title string, infos []models.CLEInfo) Renderable {
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{
			info.Path,
			FormatRange(protocol.Range{Start: info.Range.Start, End: info.Range.Start}),
			info.Label,
			firstLine(info.Text),
		})
	}
	footer := []string{fmt.Sprintf("%d location(s)", len(infos)), "", "", ""}
	return NewTable(title, []string{"File", "Position", "Label", "Text"}, rows, footer, infos)
}

// EditsView renders a workspace edit grouped by file, in file order.
func EditsView(edit protocol.WorkspaceEdit) Renderable {
	files := make([]string, 0, len(edit.Changes))
	for u := range edit.Changes {
		files = append(files, string(u))
	}
	slices.Sort(files)

	var rows [][]string
	for _, f := range files {
		path := uri.URI(f).Filename()
		for _, e := range edit.Changes[protocol.DocumentURI(f)] {
			rows = append(rows, []string{path, FormatRange(e.Range), e.NewText})
		}
	}
	return NewTable("Rename", []string{"File", "Range", "New text"}, rows, nil, edit)
}

// WrapView renders an offered wrap action: where it applies and the text
// that replaces the selection.
type WrapView struct {
	Action *resolver.WrapAction
}

func (v WrapView) RenderData() any {
	return v.Action
}

func (v WrapView) RenderText(w io.Writer, colored bool) error {
	a := v.Action
	writeTitle(w, a.Title, colored)
	fmt.Fprintf(w, "%s %s (%s)\n\n", a.Path, FormatRange(a.Range), a.Function)
	if colored {
		color.New(color.FgCyan).Fprint(w, a.Edit.NewText)
	} else {
		fmt.Fprint(w, a.Edit.NewText)
	}
	if !strings.HasSuffix(a.Edit.NewText, "\n") {
		fmt.Fprintln(w)
	}
	return nil
}

func (v WrapView) RenderMarkdown(w io.Writer) error {
	a := v.Action
	_, err := fmt.Fprintf(w, "## %s\n\n`%s` %s, function `%s`\n\n```c\n%s\n```\n",
		a.Title, a.Path, FormatRange(a.Range), a.Function, strings.TrimSuffix(a.Edit.NewText, "\n"))
	return err
}

// HoverView renders hover content.
type HoverView struct {
	Hover *protocol.Hover
}

func (h HoverView) RenderData() any {
	return h.Hover
}

func (h HoverView) RenderText(w io.Writer, colored bool) error {
	text := stripFence(h.Hover.Contents.Value)
	if colored {
		color.New(color.FgCyan).Fprintln(w, text)
		return nil
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

func (h HoverView) RenderMarkdown(w io.Writer) error {
	_, err := fmt.Fprintln(w, h.Hover.Contents.Value)
	return err
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if after, ok := strings.CutPrefix(s, "```"); ok {
		if nl := strings.IndexByte(after, '\n'); nl >= 0 {
			after = after[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(after), "```")
	}
	return strings.TrimSpace(s)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
