package orchestrator

import (
	"time"

	"github.com/dispatchd/dispatch/pkg/models"
)

// EventType represents the type of engine event.
type EventType string

const (
	// EventTaskAdded indicates a task was registered with the engine.
	EventTaskAdded EventType = "task.added"
	// EventTaskReady indicates a task's dependencies are all complete.
	EventTaskReady EventType = "task.ready"
	// EventTaskAssigned indicates a task was handed to a worker.
	EventTaskAssigned EventType = "task.assigned"
	// EventTaskCompleted indicates a task finished successfully.
	EventTaskCompleted EventType = "task.completed"
	// EventTaskFailed indicates a task failed.
	EventTaskFailed EventType = "task.failed"
	// EventStateChanged indicates a lifecycle transition happened.
	EventStateChanged EventType = "task.stateChanged"
)

// Event represents an event published by the engine.
// Ordering is guaranteed only as published order.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the ID of the related task.
	TaskID string
	// WorkerID is the ID of the related worker, for assignment events.
	WorkerID string
	// OldState is the previous lifecycle state, for state change events.
	OldState models.TaskState
	// NewState is the entered lifecycle state, for state change events.
	NewState models.TaskState
	// Reason carries failure details, for failure events.
	Reason string
	// Task is a snapshot of the task, for task.added events.
	Task *models.Task
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
