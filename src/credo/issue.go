// Package credo implements the contract with the Credo static analyser: how we invoke it,
// what it prints and how its findings map onto LSP diagnostics.
package credo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyOutput is returned when Credo printed nothing at all on stdout.
var ErrEmptyOutput = errors.New("credo produced no output on stdout")

// An Issue is a single finding as reported by `mix credo --format=json`.
type Issue struct {
	// Filename is relative to the directory Credo was run in.
	Filename string `json:"filename"`
	// LineNo is 1-based.
	LineNo int `json:"line_no"`
	// Column and ColumnEnd are 1-based; Credo omits them (or sends null) for many checks.
	Column    *int   `json:"column"`
	ColumnEnd *int   `json:"column_end"`
	Trigger   string `json:"trigger"`
	Message   string `json:"message"`
	Category  string `json:"category"`
	Check     string `json:"check"`
	Priority  int    `json:"priority"`
}

// HasColumn returns true if Credo told us which column the issue starts at.
func (issue *Issue) HasColumn() bool {
	return issue.Column != nil && *issue.Column > 0
}

// HasColumnEnd returns true if Credo told us which column the issue ends at.
func (issue *Issue) HasColumnEnd() bool {
	return issue.ColumnEnd != nil && *issue.ColumnEnd > 0
}

type output struct {
	Issues []Issue `json:"issues"`
}

// ParseOutput parses the JSON document Credo writes to stdout.
// Mix sometimes prints compilation chatter ahead of it, so anything before the first
// line that opens a JSON object is ignored.
func ParseOutput(stdout []byte) ([]Issue, error) {
	stdout = bytes.TrimSpace(stdout)
	if len(stdout) == 0 {
		return nil, ErrEmptyOutput
	}
	if idx := jsonStart(stdout); idx > 0 {
		stdout = stdout[idx:]
	}
	out := output{}
	if err := json.Unmarshal(stdout, &out); err != nil {
		return nil, fmt.Errorf("failed to parse credo output: %w", err)
	} else if out.Issues == nil {
		return nil, fmt.Errorf("credo output has no issues field")
	}
	return out.Issues, nil
}

// jsonStart returns the offset of the first line beginning with '{'.
func jsonStart(b []byte) int {
	if b[0] == '{' {
		return 0
	}
	if idx := bytes.Index(b, []byte("\n{")); idx != -1 {
		return idx + 1
	}
	return 0
}
