package harness

import "github.com/roach88/brickbook/internal/ir"

// TraceEvent records one executed step.
type TraceEvent struct {
	Step     int    `json:"step"`
	Action   string `json:"action"`
	Building int64  `json:"building"`
	User     int    `json:"user"`

	// Outcome and Revision are set for sequential steps. Revision is the
	// record's revision after a successful step.
	Outcome  string `json:"outcome,omitempty"`
	Revision int64  `json:"revision,omitempty"`

	// Parallel and Counts are set for parallel steps, whose individual
	// outcomes have no stable order.
	Parallel int            `json:"parallel,omitempty"`
	Counts   map[string]int `json:"counts,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step outcome and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in step order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// History holds the final revision log of every asserted building.
	History map[int64][]ir.LogEntry `json:"history,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		History: make(map[int64][]ir.LogEntry),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step event to the trace.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}
