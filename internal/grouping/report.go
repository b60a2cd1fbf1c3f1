package grouping

import "fmt"

// Mutation phases.
const (
	PhaseMerge  = "merge"
	PhaseCreate = "create"
)

// MutationError is one group's failed browser update. It is recorded in the
// report and never aborts the run.
type MutationError struct {
	Group string
	Phase string
	Cause error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s group %q: %v", e.Phase, e.Group, e.Cause)
}

func (e *MutationError) Unwrap() error { return e.Cause }

// GroupOutcome describes what happened to one classification entry.
type GroupOutcome struct {
	Name    string `json:"name"`
	Phase   string `json:"phase"`
	GroupID int    `json:"group_id,omitempty"`
	TabIDs  []int  `json:"tab_ids,omitempty"`
	Color   string `json:"color,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`

	Err *MutationError `json:"-"`
}

// Report summarises a run.
type Report struct {
	RunID     string `json:"run_id"`
	Skipped   bool   `json:"skipped"`
	Ungrouped int    `json:"ungrouped"`

	Merged        []GroupOutcome `json:"merged,omitempty"`
	Created       []GroupOutcome `json:"created,omitempty"`
	SkippedGroups []GroupOutcome `json:"skipped_groups,omitempty"`
	Failed        []GroupOutcome `json:"failed,omitempty"`
}

// Errors returns the mutation errors of failed groups in order.
func (r Report) Errors() []error {
	out := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		if f.Err != nil {
			out = append(out, f.Err)
		}
	}
	return out
}
