package orchestrator

import (
	"fmt"
	"sync"

	"github.com/dispatchd/dispatch/pkg/models"
)

// transitions is the lifecycle edge table. A task may only move along
// these edges; everything else is rejected with ErrInvalidTransition.
// failed -> pending is the explicit retry edge. completed is terminal.
var transitions = map[models.TaskState][]models.TaskState{
	models.TaskStatePending:    {models.TaskStateAssigned},
	models.TaskStateAssigned:   {models.TaskStateInProgress, models.TaskStateFailed},
	models.TaskStateInProgress: {models.TaskStateCompleted, models.TaskStateFailed},
	models.TaskStateFailed:     {models.TaskStatePending},
	models.TaskStateCompleted:  {},
}

// StateMachine enforces valid lifecycle transitions and retains an
// auditable, append-only history per task.
type StateMachine struct {
	mu sync.RWMutex
	// states maps task ID to its current lifecycle state.
	states map[string]models.TaskState
	// history maps task ID to its append-only transition record.
	history map[string][]models.StateChange
	// clock is the timestamp source for history entries.
	clock Clock
	// notifier receives state change notifications. Never nil.
	notifier Notifier
}

// NewStateMachine creates a StateMachine using the given clock and
// notifier. A nil notifier is replaced with NopNotifier.
func NewStateMachine(clock Clock, notifier Notifier) *StateMachine {
	if clock == nil {
		clock = SystemClock()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &StateMachine{
		states:   make(map[string]models.TaskState),
		history:  make(map[string][]models.StateChange),
		clock:    clock,
		notifier: notifier,
	}
}

// CanTransition reports whether the from -> to edge is legal.
func CanTransition(from, to models.TaskState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AddTask registers a task at the pending state and records the initial
// history entry. Returns ErrDuplicateTask if the ID is already tracked.
func (m *StateMachine) AddTask(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.states[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, id)
	}

	m.states[id] = models.TaskStatePending
	m.history[id] = []models.StateChange{
		{State: models.TaskStatePending, Timestamp: m.clock.Now()},
	}
	return nil
}

// Transition moves a task along the current -> target edge. On success
// it records the new state, appends a history entry, publishes a
// task.stateChanged event, and returns the appended entry. On an
// invalid edge it returns ErrInvalidTransition and leaves everything
// untouched.
func (m *StateMachine) Transition(id string, target models.TaskState) (models.StateChange, error) {
	m.mu.Lock()

	current, exists := m.states[id]
	if !exists {
		m.mu.Unlock()
		return models.StateChange{}, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}

	if !CanTransition(current, target) {
		m.mu.Unlock()
		return models.StateChange{}, fmt.Errorf("%w: %s -> %s for task %s",
			ErrInvalidTransition, current, target, id)
	}

	change := models.StateChange{State: target, Timestamp: m.clock.Now()}
	m.states[id] = target
	m.history[id] = append(m.history[id], change)
	m.mu.Unlock()

	// Fire-and-forget: publication happens after the mutation is
	// committed and must never block or fail the transition.
	m.notifier.Publish(Event{
		Type:      EventStateChanged,
		TaskID:    id,
		OldState:  current,
		NewState:  target,
		Timestamp: change.Timestamp,
	})

	return change, nil
}

// GetState returns the current state of a task.
// Returns ErrUnknownTask if the ID is untracked.
func (m *StateMachine) GetState(id string) (models.TaskState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, exists := m.states[id]
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return state, nil
}

// GetHistory returns a copy of the task's transition history.
// Returns ErrUnknownTask if the ID is untracked.
func (m *StateMachine) GetHistory(id string) ([]models.StateChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, exists := m.history[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return append([]models.StateChange(nil), entries...), nil
}

// Remove drops a task from the state machine. No-op if untracked.
func (m *StateMachine) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
	delete(m.history, id)
}
