package credo

import (
	"strings"
	"unicode/utf16"

	"github.com/sourcegraph/go-lsp"
)

// Diagnostic converts an issue into an LSP diagnostic.
// lines is the content of the file the issue refers to, if we have it; it is only consulted
// when Credo didn't report a column, in which case the trigger text is located on the
// reported line instead. Without it (or if the trigger isn't there) the diagnostic sits at
// the start of the line.
func Diagnostic(issue *Issue, lines []string) lsp.Diagnostic {
	line := issue.LineNo - 1 // Credo is 1-indexed, LSP is 0-indexed.
	if line < 0 {
		line = 0
	}
	start, end := 0, 0
	if issue.HasColumn() {
		start = *issue.Column - 1
		end = start
		if issue.HasColumnEnd() && *issue.ColumnEnd-1 > start {
			end = *issue.ColumnEnd - 1
		}
	} else if issue.Trigger != "" && line < len(lines) {
		if idx := strings.Index(lines[line], issue.Trigger); idx != -1 {
			start = utf16Len(lines[line][:idx])
			end = start + utf16Len(issue.Trigger)
		}
	}
	return lsp.Diagnostic{
		Range: lsp.Range{
			Start: lsp.Position{Line: line, Character: start},
			End:   lsp.Position{Line: line, Character: end},
		},
		Severity: lsp.Warning,
		Code:     issue.Check,
		Source:   Source,
		Message:  issue.Message,
	}
}

// utf16Len returns the length of s in UTF-16 code units, which is what LSP positions count in.
func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}
