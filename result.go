package insights

import (
	"encoding/json"

	"github.com/adlytics/insights-client/tabular"
)

// Page holds the rows of one report page, in the order the API returned them.
type Page struct {
	Rows []json.RawMessage
}

// Result is the outcome of RequestInsights.
//
// Single-target calls fill Pages (and Table when Simplify was requested).
// Multi-target synchronous calls fill Groups, one entry per batch group of
// at most 50 targets, in input order.
type Result struct {
	Pages  []Page
	Table  *tabular.Table
	Groups []GroupResult
}

// Rows returns all rows of all pages, concatenated in page order.
func (r *Result) Rows() []json.RawMessage {
	var n int
	for _, p := range r.Pages {
		n += len(p.Rows)
	}
	rows := make([]json.RawMessage, 0, n)
	for _, p := range r.Pages {
		rows = append(rows, p.Rows...)
	}
	return rows
}

// GroupResult is the outcome of one batch group. A group-level failure sets
// Err and leaves sibling groups untouched.
type GroupResult struct {
	Targets []string
	Reports []TargetReport
	Err     error
}

// TargetReport is the per-target portion of a batched response.
type TargetReport struct {
	Target string
	Rows   []json.RawMessage
	Table  *tabular.Table // set when Simplify was requested
	Err    error          // set when the sub-response itself failed
}
