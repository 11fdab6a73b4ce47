package tasks

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// ErrPanic is wrapped by the failure of a task that panicked.
var ErrPanic = errors.New("tasks: task panicked")

// State is a task's position in its lifecycle.
type State int32

const (
	Pending State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Task is one unit of spawned work.
type Task struct {
	ID    uuid.UUID
	Owner string
	Name  string

	state atomic.Int32
}

func newTask(owner, name string) *Task {
	return &Task{ID: uuid.New(), Owner: owner, Name: name}
}

// State returns the task's current state.
func (t *Task) State() State { return State(t.state.Load()) }

func (t *Task) set(s State) { t.state.Store(int32(s)) }

// Error is the recorded failure of one task.
type Error struct {
	TaskID uuid.UUID
	Owner  string
	Name   string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tasks: %s/%s (%s): %v", e.Owner, e.Name, e.TaskID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Stats counts an owner's tasks by state. Completed and Failed are
// cumulative for the tracker's lifetime.
type Stats struct {
	Pending   int
	Running   int
	Completed int
	Failed    int
}

// Live returns the number of tasks that have not finished.
func (s Stats) Live() int { return s.Pending + s.Running }
