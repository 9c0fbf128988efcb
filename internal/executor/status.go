package executor

import (
	"fmt"
	"io"
	"strings"

	"github.com/specialistvlad/habitatgrid/internal/dag"
)

// Status is a progress snapshot of a run.
type Status struct {
	RunID  string         `json:"run_id"`
	Total  int            `json:"total"`
	Counts map[string]int `json:"counts"`
	Steps  []StepRecord   `json:"steps"`
}

// Status reports the progress of the run. It is safe to call while Execute
// is running.
func (e *Executor) Status() Status {
	st := Status{
		RunID:  e.env.RunID,
		Total:  len(e.plan.Order),
		Counts: make(map[string]int),
		Steps:  e.Steps(),
	}
	for _, rec := range st.Steps {
		st.Counts[rec.Status]++
	}
	return st
}

// PrintPlan writes the numbered plan without running anything.
func PrintPlan(w io.Writer, plan *dag.Plan) error {
	for _, s := range plan.Order {
		var from []string
		for _, in := range s.Inputs {
			from = append(from, "input."+in)
		}
		for _, dep := range s.Deps {
			from = append(from, "layer."+dep)
		}
		line := fmt.Sprintf("%03d  %-22s %s", s.Seq, s.Op, s.Layer)
		if len(from) > 0 {
			line += " <- " + strings.Join(from, ", ")
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	for _, out := range plan.Recipe.Outputs {
		if _, err := fmt.Fprintf(w, "output %s = %s\n", out.Name, out.Layer); err != nil {
			return err
		}
	}
	return nil
}
