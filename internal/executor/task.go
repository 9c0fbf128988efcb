package executor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/habitatgrid/internal/dag"
)

// State represents the execution state of a step.
type State int32

const (
	// Pending indicates the step is waiting for its dependencies to complete.
	Pending State = iota
	// Running indicates the step is currently being executed by a worker.
	Running
	// Done indicates the step has completed successfully.
	Done
	// Failed indicates the engine call behind the step returned an error.
	Failed
	// Skipped indicates the step never ran because the run was aborted.
	Skipped
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

// task is the runtime state of one plan step.
type task struct {
	step *dag.Step

	// depCount is an atomic counter for unmet dependencies.
	depCount atomic.Int32
	state    atomic.Int32
	// skipOnce ensures a task is marked as skipped exactly once.
	skipOnce sync.Once

	// err and duration are written by the goroutine that finishes the task
	// and read after the run completes.
	mu       sync.Mutex
	err      error
	duration time.Duration
}

func newTask(s *dag.Step) *task {
	t := &task{step: s}
	t.depCount.Store(int32(len(s.Deps)))
	return t
}

func (t *task) setState(s State) { t.state.Store(int32(s)) }

func (t *task) getState() State { return State(t.state.Load()) }

// decrementDepCount returns the number of dependencies still unmet.
func (t *task) decrementDepCount() int32 { return t.depCount.Add(-1) }

func (t *task) finish(s State, err error, d time.Duration) {
	t.mu.Lock()
	t.err = err
	t.duration = d
	t.mu.Unlock()
	t.setState(s)
}

func (t *task) result() (time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.duration, t.err
}

// skip marks a task as skipped, returning true if it was the first time.
func (t *task) skip(err error) bool {
	var wasSkipped bool
	t.skipOnce.Do(func() {
		if t.getState() != Pending {
			return
		}
		t.finish(Skipped, err, 0)
		wasSkipped = true
	})
	return wasSkipped
}
