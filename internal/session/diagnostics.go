package session

import (
	"go.lsp.dev/protocol"

	"github.com/gaps-closure/vscle/pkg/models"
)

// DiagnosticSource names the producer of conflict diagnostics.
const DiagnosticSource = "cle"

// ConflictDiagnostics converts analyzer conflicts into one diagnostic per
// conflict source site. A conflict without sources yields a single
// diagnostic at the start of the document with no file.
func ConflictDiagnostics(conflicts []models.Conflict) []models.Diagnostic {
	var out []models.Diagnostic
	for _, c := range conflicts {
		base := protocol.Diagnostic{
			Severity: protocol.DiagnosticSeverityError,
			Code:     string(c.Name),
			Source:   DiagnosticSource,
			Message:  c.Description,
		}
		if len(c.Remedies) > 0 {
			base.Data = c.Remedies
		}

		if len(c.Sources) == 0 {
			out = append(out, models.Diagnostic{Diagnostic: base})
			continue
		}
		for _, src := range c.Sources {
			d := base
			d.Range = src.Range
			out = append(out, models.Diagnostic{File: src.File, Diagnostic: d})
		}
	}
	return out
}
