package flow

import (
	"fmt"

	"donorkit/internal/table"
)

// Trace is the per-session ordered diagnostic log. Each engine owns its own
// trace; nothing is shared across sessions. The trace is shown to the
// operator as a meta table on the consent form before anything is donated.
type Trace struct {
	entries []TraceEntry
}

// TraceEntry is one diagnostic line.
type TraceEntry struct {
	Kind    string
	Message string
}

// Log appends a debug entry.
func (t *Trace) Log(format string, args ...any) {
	t.entries = append(t.entries, TraceEntry{Kind: "debug", Message: fmt.Sprintf(format, args...)})
}

// Entries returns the entries appended so far, oldest first.
func (t *Trace) Entries() []TraceEntry {
	return t.entries
}

// Table renders the trace as a two-column diagnostic table.
func (t *Trace) Table() *table.Table {
	tbl := table.New("type", "message")
	for _, e := range t.entries {
		tbl.AppendRow(e.Kind, e.Message)
	}
	return tbl
}
