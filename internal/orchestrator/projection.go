package orchestrator

import (
	"sync"

	"github.com/dispatchd/dispatch/pkg/models"
)

// DisplayStatus is a UI-facing derived status. It is recomputed from
// the event stream as a pure downstream view and is never written back
// into core state.
type DisplayStatus string

const (
	// DisplayReady means the task is pending with all dependencies met
	// and no advisory conflict.
	DisplayReady DisplayStatus = "ready"
	// DisplayBlocked means the task is pending with unmet dependencies.
	DisplayBlocked DisplayStatus = "blocked"
	// DisplayConflicted means the task is otherwise ready but overlaps
	// an active task it declares a conflict with.
	DisplayConflicted DisplayStatus = "conflicted"
	// DisplayAssigned mirrors the assigned lifecycle state.
	DisplayAssigned DisplayStatus = "assigned"
	// DisplayInProgress mirrors the in_progress lifecycle state.
	DisplayInProgress DisplayStatus = "in_progress"
	// DisplayCompleted mirrors the completed lifecycle state.
	DisplayCompleted DisplayStatus = "completed"
	// DisplayFailed mirrors the failed lifecycle state.
	DisplayFailed DisplayStatus = "failed"
)

// StatusProjection folds the engine's event stream into per-task
// display statuses. Feed it events via Apply, or run Consume against a
// ChannelNotifier's Events channel.
type StatusProjection struct {
	mu sync.RWMutex
	// tasks holds the task snapshots received in task.added events.
	tasks map[string]*models.Task
	// states holds the latest lifecycle state per task.
	states map[string]models.TaskState
	// completed tracks completion for dependency evaluation.
	completed map[string]bool
}

// NewStatusProjection creates an empty projection.
func NewStatusProjection() *StatusProjection {
	return &StatusProjection{
		tasks:     make(map[string]*models.Task),
		states:    make(map[string]models.TaskState),
		completed: make(map[string]bool),
	}
}

// Apply folds one event into the projection.
func (p *StatusProjection) Apply(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Type {
	case EventTaskAdded:
		if ev.Task != nil {
			p.tasks[ev.TaskID] = ev.Task.Clone()
			p.states[ev.TaskID] = models.TaskStatePending
		}
	case EventStateChanged:
		p.states[ev.TaskID] = ev.NewState
	case EventTaskCompleted:
		p.completed[ev.TaskID] = true
	}
}

// Consume applies every event from the channel until it is closed.
// Intended to be run in its own goroutine.
func (p *StatusProjection) Consume(events <-chan Event) {
	for ev := range events {
		p.Apply(ev)
	}
}

// Status returns the display status for a task, and false if the task
// is unknown to the projection.
func (p *StatusProjection) Status(id string) (DisplayStatus, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	task, exists := p.tasks[id]
	if !exists {
		return "", false
	}

	switch p.states[id] {
	case models.TaskStateAssigned:
		return DisplayAssigned, true
	case models.TaskStateInProgress:
		return DisplayInProgress, true
	case models.TaskStateCompleted:
		return DisplayCompleted, true
	case models.TaskStateFailed:
		return DisplayFailed, true
	}

	// Pending: derive blocked/conflicted/ready from the graph shape.
	for _, depID := range task.DependsOn {
		if !p.completed[depID] {
			return DisplayBlocked, true
		}
	}
	for _, conflictID := range task.ConflictsWith {
		state, tracked := p.states[conflictID]
		if tracked && (state == models.TaskStateAssigned || state == models.TaskStateInProgress) {
			return DisplayConflicted, true
		}
	}
	return DisplayReady, true
}

// Counts returns the number of tasks per display status.
func (p *StatusProjection) Counts() map[DisplayStatus]int {
	p.mu.RLock()
	ids := make([]string, 0, len(p.tasks))
	for id := range p.tasks {
		ids = append(ids, id)
	}
	p.mu.RUnlock()

	counts := make(map[DisplayStatus]int)
	for _, id := range ids {
		if status, ok := p.Status(id); ok {
			counts[status]++
		}
	}
	return counts
}
