package models

import (
	"testing"
	"time"
)

func TestTaskStateValid(t *testing.T) {
	valid := []TaskState{
		TaskStatePending, TaskStateAssigned, TaskStateInProgress,
		TaskStateCompleted, TaskStateFailed,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}

	invalid := []TaskState{"", "cancelled", "done", "PENDING"}
	for _, s := range invalid {
		if s.Valid() {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestTaskStateTerminal(t *testing.T) {
	if !TaskStateCompleted.Terminal() {
		t.Error("completed should be terminal")
	}
	// Failed tasks can be retried back to pending.
	if TaskStateFailed.Terminal() {
		t.Error("failed should not be terminal")
	}
	if TaskStatePending.Terminal() {
		t.Error("pending should not be terminal")
	}
}

func TestPriorityRankOrdering(t *testing.T) {
	if PriorityCritical.Rank() <= PriorityHigh.Rank() {
		t.Error("critical should outrank high")
	}
	if PriorityHigh.Rank() <= PriorityNormal.Rank() {
		t.Error("high should outrank normal")
	}
	if PriorityNormal.Rank() <= PriorityLow.Rank() {
		t.Error("normal should outrank low")
	}
}

func TestPriorityValid(t *testing.T) {
	for _, p := range PrioritiesDescending {
		if !p.Valid() {
			t.Errorf("expected %q to be valid", p)
		}
	}
	if Priority("urgent").Valid() {
		t.Error("expected unknown priority to be invalid")
	}
}

func TestTaskClone(t *testing.T) {
	orig := &Task{
		ID:                   "task-1",
		Title:                "Original",
		Priority:             PriorityNormal,
		RequiredCapabilities: []string{"go"},
		DependsOn:            []string{"task-0"},
		Status:               TaskStatePending,
		CreatedAt:            time.Now(),
		History:              []StateChange{{State: TaskStatePending, Timestamp: time.Now()}},
	}

	clone := orig.Clone()
	clone.Title = "Changed"
	clone.DependsOn[0] = "task-9"
	clone.History = append(clone.History, StateChange{State: TaskStateAssigned})

	if orig.Title != "Original" {
		t.Error("clone mutation leaked into original title")
	}
	if orig.DependsOn[0] != "task-0" {
		t.Error("clone mutation leaked into original dependencies")
	}
	if len(orig.History) != 1 {
		t.Error("clone mutation leaked into original history")
	}
}

func TestTaskCloneNil(t *testing.T) {
	var task *Task
	if task.Clone() != nil {
		t.Error("expected nil clone of nil task")
	}
}
