package orchestrator

import (
	"errors"
	"reflect"
	"testing"
)

func TestGraphAddAndDependencies(t *testing.T) {
	g := NewDependencyGraph()

	if err := g.AddTask("a", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.AddTask("b", []string{"a"}, []string{"a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deps, err := g.GetDependencies("b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(deps, []string{"a"}) {
		t.Errorf("expected [a], got %v", deps)
	}

	if err := g.AddTask("a", nil, nil); !errors.Is(err, ErrDuplicateTask) {
		t.Errorf("expected ErrDuplicateTask, got %v", err)
	}
	if _, err := g.GetDependencies("ghost"); !errors.Is(err, ErrUnknownTask) {
		t.Errorf("expected ErrUnknownTask, got %v", err)
	}
}

func TestGraphReadyChain(t *testing.T) {
	// A (no deps), B (depends on A), C (depends on B).
	g := NewDependencyGraph()
	g.AddTask("A", nil, nil)
	g.AddTask("B", []string{"A"}, nil)
	g.AddTask("C", []string{"B"}, nil)

	if got := g.GetReadyTasks(); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("expected [A], got %v", got)
	}

	g.MarkTaskComplete("A")
	if got := g.GetReadyTasks(); !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("expected [B], got %v", got)
	}

	g.MarkTaskComplete("B")
	if got := g.GetReadyTasks(); !reflect.DeepEqual(got, []string{"C"}) {
		t.Errorf("expected [C], got %v", got)
	}
}

func TestGraphTaskNeverReadyBeforeAllDepsComplete(t *testing.T) {
	g := NewDependencyGraph()
	g.AddTask("a", nil, nil)
	g.AddTask("b", nil, nil)
	g.AddTask("join", []string{"a", "b"}, nil)

	contains := func(ids []string, id string) bool {
		for _, candidate := range ids {
			if candidate == id {
				return true
			}
		}
		return false
	}

	if contains(g.GetReadyTasks(), "join") {
		t.Error("join ready with zero deps complete")
	}
	g.MarkTaskComplete("a")
	if contains(g.GetReadyTasks(), "join") {
		t.Error("join ready with one of two deps complete")
	}
	g.MarkTaskComplete("b")
	if !contains(g.GetReadyTasks(), "join") {
		t.Error("join not ready with all deps complete")
	}
}

func TestGraphPrefersNeverBlocks(t *testing.T) {
	g := NewDependencyGraph()
	g.AddTask("a", nil, nil)
	g.AddTask("b", nil, []string{"a"})

	ready := g.GetReadyTasks()
	if !reflect.DeepEqual(ready, []string{"a", "b"}) {
		t.Errorf("prefers edge affected readiness: got %v", ready)
	}
}

func TestGraphMarkCompleteIdempotent(t *testing.T) {
	g := NewDependencyGraph()
	g.AddTask("a", nil, nil)
	g.AddTask("b", []string{"a"}, nil)

	var readyFired []string
	g.SetReadyHook(func(id string) { readyFired = append(readyFired, id) })

	g.MarkTaskComplete("a")
	g.MarkTaskComplete("a")

	if got := g.GetReadyTasks(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("expected [b], got %v", got)
	}
	// The second mark is a no-op: exactly one ready notification.
	if !reflect.DeepEqual(readyFired, []string{"b"}) {
		t.Errorf("expected one ready hook for b, got %v", readyFired)
	}
}

func TestGraphReadyHookPerUnblockedDependent(t *testing.T) {
	g := NewDependencyGraph()
	g.AddTask("root", nil, nil)
	g.AddTask("x", []string{"root"}, nil)
	g.AddTask("y", []string{"root"}, nil)
	g.AddTask("z", []string{"root", "x"}, nil)

	var readyFired []string
	g.SetReadyHook(func(id string) { readyFired = append(readyFired, id) })

	g.MarkTaskComplete("root")
	// x and y are unblocked; z still waits on x.
	if !reflect.DeepEqual(readyFired, []string{"x", "y"}) {
		t.Errorf("expected ready hooks [x y], got %v", readyFired)
	}

	g.MarkTaskComplete("x")
	if !reflect.DeepEqual(readyFired, []string{"x", "y", "z"}) {
		t.Errorf("expected ready hooks [x y z], got %v", readyFired)
	}
}

func TestGraphSelfLoopCycle(t *testing.T) {
	g := NewDependencyGraph()
	g.AddTask("a", []string{"a"}, nil)

	if !g.HasCircularDependency("a") {
		t.Error("self-loop not detected")
	}
}

func TestGraphRingCycle(t *testing.T) {
	// a -> b -> c -> a, ring of length 3.
	g := NewDependencyGraph()
	g.AddTask("a", []string{"b"}, nil)
	g.AddTask("b", []string{"c"}, nil)
	g.AddTask("c", []string{"a"}, nil)

	for _, id := range []string{"a", "b", "c"} {
		if !g.HasCircularDependency(id) {
			t.Errorf("ring cycle not detected from %s", id)
		}
	}
}

func TestGraphDiamondIsNotCycle(t *testing.T) {
	// top depends on left and right, both depend on bottom.
	g := NewDependencyGraph()
	g.AddTask("bottom", nil, nil)
	g.AddTask("left", []string{"bottom"}, nil)
	g.AddTask("right", []string{"bottom"}, nil)
	g.AddTask("top", []string{"left", "right"}, nil)

	for _, id := range []string{"bottom", "left", "right", "top"} {
		if g.HasCircularDependency(id) {
			t.Errorf("diamond shape falsely flagged as cycle from %s", id)
		}
	}
}

func TestGraphCycleDetectionTerminates(t *testing.T) {
	// A cycle not involving the queried task must not loop forever and
	// must not flag the outsider.
	g := NewDependencyGraph()
	g.AddTask("x", []string{"a"}, nil)
	g.AddTask("a", []string{"b"}, nil)
	g.AddTask("b", []string{"a"}, nil)

	if g.HasCircularDependency("x") {
		t.Error("x is not on a cycle but was flagged")
	}
	if !g.HasCircularDependency("a") {
		t.Error("a is on a cycle but was not flagged")
	}
}

func TestGraphUnknownIDNotCyclic(t *testing.T) {
	g := NewDependencyGraph()
	if g.HasCircularDependency("ghost") {
		t.Error("untracked id flagged as cyclic")
	}
}

func TestGraphRemoveTaskAutoSatisfiesDependents(t *testing.T) {
	g := NewDependencyGraph()
	g.AddTask("gone", nil, nil)
	g.AddTask("dependent", []string{"gone"}, nil)

	var readyFired []string
	g.SetReadyHook(func(id string) { readyFired = append(readyFired, id) })

	if err := g.RemoveTask("gone"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The dependent is treated as satisfied, not blocked forever.
	if got := g.GetReadyTasks(); !reflect.DeepEqual(got, []string{"dependent"}) {
		t.Errorf("expected [dependent], got %v", got)
	}
	if !reflect.DeepEqual(readyFired, []string{"dependent"}) {
		t.Errorf("expected ready hook for dependent, got %v", readyFired)
	}

	if err := g.RemoveTask("gone"); !errors.Is(err, ErrUnknownTask) {
		t.Errorf("expected ErrUnknownTask on second removal, got %v", err)
	}
}

func TestGraphCompletedTasksNotReady(t *testing.T) {
	g := NewDependencyGraph()
	g.AddTask("a", nil, nil)
	g.MarkTaskComplete("a")

	if got := g.GetReadyTasks(); len(got) != 0 {
		t.Errorf("completed task still in ready set: %v", got)
	}
}

func TestGraphDiscardLeavesNoTrace(t *testing.T) {
	g := NewDependencyGraph()
	g.AddTask("rolled-back", nil, nil)
	g.AddTask("dependent", []string{"rolled-back"}, nil)

	var readyFired []string
	g.SetReadyHook(func(id string) { readyFired = append(readyFired, id) })

	g.discard("rolled-back")

	// Unlike RemoveTask, discard does not satisfy dependents.
	if g.IsComplete("rolled-back") {
		t.Error("discarded task marked complete")
	}
	if len(readyFired) != 0 {
		t.Errorf("discard fired ready hooks: %v", readyFired)
	}
	if got := g.GetReadyTasks(); len(got) != 0 {
		t.Errorf("dependent should stay blocked, got %v", got)
	}

	// The ID is reusable and starts fresh.
	if err := g.AddTask("rolled-back", nil, nil); err != nil {
		t.Fatalf("re-add after discard: %v", err)
	}
	if got := g.GetReadyTasks(); !reflect.DeepEqual(got, []string{"rolled-back"}) {
		t.Errorf("expected only the re-added task ready, got %v", got)
	}
}
