package models

import "time"

// TaskState represents the lifecycle state of a task.
type TaskState string

const (
	// TaskStatePending indicates the task is waiting to be assigned.
	TaskStatePending TaskState = "pending"
	// TaskStateAssigned indicates the task has been handed to a worker.
	TaskStateAssigned TaskState = "assigned"
	// TaskStateInProgress indicates the worker has started the task.
	TaskStateInProgress TaskState = "in_progress"
	// TaskStateCompleted indicates the task finished successfully.
	TaskStateCompleted TaskState = "completed"
	// TaskStateFailed indicates the task failed.
	TaskStateFailed TaskState = "failed"
)

// Valid returns true if the state is a known value.
func (s TaskState) Valid() bool {
	switch s {
	case TaskStatePending, TaskStateAssigned, TaskStateInProgress,
		TaskStateCompleted, TaskStateFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transitions leave this state.
// Failed is not terminal: a failed task may be retried back to pending.
func (s TaskState) Terminal() bool {
	return s == TaskStateCompleted
}

// Priority represents the scheduling priority of a task.
type Priority string

const (
	// PriorityLow is the lowest scheduling priority.
	PriorityLow Priority = "low"
	// PriorityNormal is the default scheduling priority.
	PriorityNormal Priority = "normal"
	// PriorityHigh is scheduled before normal and low work.
	PriorityHigh Priority = "high"
	// PriorityCritical is scheduled before everything else.
	PriorityCritical Priority = "critical"
)

// Valid returns true if the priority is a known value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// Rank returns the numeric rank of the priority. Higher ranks are
// scheduled first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	default:
		return 0
	}
}

// PrioritiesDescending lists all priorities from highest to lowest rank.
var PrioritiesDescending = []Priority{
	PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow,
}

// StateChange records one lifecycle transition of a task.
type StateChange struct {
	// State is the state the task entered.
	State TaskState `json:"state"`
	// Timestamp is when the transition happened.
	Timestamp time.Time `json:"timestamp"`
}

// Task represents a unit of work in the system.
type Task struct {
	// ID is the unique identifier for this task. IDs are never reused.
	ID string `json:"id"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty"`
	// Priority is the scheduling priority of the task.
	Priority Priority `json:"priority"`
	// RequiredCapabilities lists the capabilities a worker must declare
	// to be considered for this task.
	RequiredCapabilities []string `json:"required_capabilities,omitempty"`
	// DependsOn lists task IDs that must complete before this task.
	DependsOn []string `json:"depends_on,omitempty"`
	// Prefers lists task IDs that should ideally run first. Advisory
	// only: a preference never blocks scheduling.
	Prefers []string `json:"prefers,omitempty"`
	// ConflictsWith lists task IDs this task should not overlap with.
	// Advisory only: conflict resolution happens outside the engine.
	ConflictsWith []string `json:"conflicts_with,omitempty"`
	// Status is the current lifecycle state of the task.
	Status TaskState `json:"status"`
	// AssignedTo is the ID of the worker the task is assigned to.
	// Set only while the task is assigned or in progress.
	AssignedTo string `json:"assigned_to,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// History is the append-only record of lifecycle transitions.
	History []StateChange `json:"history,omitempty"`
	// Attempts is the number of times this task has entered pending,
	// counting retries after failure.
	Attempts int `json:"attempts,omitempty"`
}

// Clone returns a deep copy of the task. Slices are copied so the
// caller can mutate the clone without affecting the original.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.RequiredCapabilities = append([]string(nil), t.RequiredCapabilities...)
	c.DependsOn = append([]string(nil), t.DependsOn...)
	c.Prefers = append([]string(nil), t.Prefers...)
	c.ConflictsWith = append([]string(nil), t.ConflictsWith...)
	c.History = append([]StateChange(nil), t.History...)
	return &c
}
