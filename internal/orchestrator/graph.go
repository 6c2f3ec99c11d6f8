package orchestrator

import (
	"fmt"
	"sync"
)

// DependencyGraph tracks hard dependency edges between tasks and
// computes the frontier of currently executable work. Soft (prefers)
// edges are recorded for introspection but never affect readiness.
//
// Cycles are accepted at insertion time; detection is lazy via
// HasCircularDependency.
type DependencyGraph struct {
	mu sync.RWMutex
	// order holds task IDs in insertion order so the ready frontier is
	// deterministic.
	order []string
	// edges maps task ID to IDs of tasks it depends on (is blocked by).
	edges map[string][]string
	// soft maps task ID to its advisory prefers edges.
	soft map[string][]string
	// completed tracks which task IDs have been marked complete.
	// Entries survive task removal so dependents of a removed task are
	// treated as satisfied rather than permanently blocked.
	completed map[string]bool
	// onReady is invoked once per dependent that becomes unblocked by a
	// completion. Set by the orchestrator to publish task.ready events.
	onReady func(taskID string)
}

// NewDependencyGraph creates a new empty dependency graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		edges:     make(map[string][]string),
		soft:      make(map[string][]string),
		completed: make(map[string]bool),
		onReady:   func(string) {},
	}
}

// SetReadyHook sets the function invoked when a task becomes unblocked.
func (g *DependencyGraph) SetReadyHook(fn func(taskID string)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if fn != nil {
		g.onReady = fn
	}
}

// AddTask registers a task's hard and soft dependency edges.
// Edges that would form a cycle are not rejected here; callers opt in
// to detection via HasCircularDependency.
func (g *DependencyGraph) AddTask(id string, dependsOn, prefers []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.edges[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, id)
	}

	g.order = append(g.order, id)
	g.edges[id] = append([]string(nil), dependsOn...)
	g.soft[id] = append([]string(nil), prefers...)

	debugLog("[graph.AddTask] id=%s depends_on=%v prefers=%v", id, dependsOn, prefers)
	return nil
}

// GetDependencies returns a copy of the task's hard dependency list.
// Returns ErrUnknownTask if the ID is untracked.
func (g *DependencyGraph) GetDependencies(id string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	deps, exists := g.edges[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return append([]string(nil), deps...), nil
}

// GetSoftDependencies returns a copy of the task's prefers list.
// Returns ErrUnknownTask if the ID is untracked.
func (g *DependencyGraph) GetSoftDependencies(id string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	prefs, exists := g.soft[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return append([]string(nil), prefs...), nil
}

// GetDependents returns the IDs of tracked tasks that depend on the
// given task, in insertion order.
func (g *DependencyGraph) GetDependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dependentsLocked(id)
}

func (g *DependencyGraph) dependentsLocked(id string) []string {
	var dependents []string
	for _, candidate := range g.order {
		for _, depID := range g.edges[candidate] {
			if depID == id {
				dependents = append(dependents, candidate)
				break
			}
		}
	}
	return dependents
}

// GetReadyTasks returns every tracked, not-yet-complete task whose
// entire hard dependency list is complete, in insertion order.
// Prefers edges never affect the result.
func (g *DependencyGraph) GetReadyTasks() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []string
	for _, id := range g.order {
		if g.completed[id] {
			continue
		}
		if g.depsCompleteLocked(id) {
			ready = append(ready, id)
		}
	}
	return ready
}

func (g *DependencyGraph) depsCompleteLocked(id string) bool {
	for _, depID := range g.edges[id] {
		if !g.completed[depID] {
			return false
		}
	}
	return true
}

// MarkTaskComplete marks a task as complete and fires the ready hook
// once for each dependent that the completion unblocks. Re-marking an
// already-complete task is a no-op.
func (g *DependencyGraph) MarkTaskComplete(id string) {
	g.mu.Lock()

	if g.completed[id] {
		g.mu.Unlock()
		debugLog("[graph.MarkTaskComplete] id=%s already complete, no-op", id)
		return
	}

	g.completed[id] = true
	debugLog("[graph.MarkTaskComplete] id=%s marked complete", id)

	// A dependent is newly unblocked iff it is incomplete and this
	// completion satisfied its last outstanding dependency.
	var unblocked []string
	for _, depID := range g.dependentsLocked(id) {
		if !g.completed[depID] && g.depsCompleteLocked(depID) {
			unblocked = append(unblocked, depID)
		}
	}
	hook := g.onReady
	g.mu.Unlock()

	for _, depID := range unblocked {
		debugLog("[graph.MarkTaskComplete] dependent %s now ready", depID)
		hook(depID)
	}
}

// IsComplete reports whether a task has been marked complete.
func (g *DependencyGraph) IsComplete(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.completed[id]
}

// HasCircularDependency reports whether the given task is reachable
// from itself over hard dependency edges. The traversal keeps a
// visited set so it terminates even on cyclic graphs.
func (g *DependencyGraph) HasCircularDependency(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, exists := g.edges[id]; !exists {
		return false
	}

	visited := make(map[string]bool)
	var visit func(current string) bool
	visit = func(current string) bool {
		for _, depID := range g.edges[current] {
			if depID == id {
				return true
			}
			if visited[depID] {
				continue
			}
			visited[depID] = true
			if visit(depID) {
				return true
			}
		}
		return false
	}

	return visit(id)
}

// RemoveTask drops a task and its edges from the graph. The removed ID
// is marked complete first so dependents are treated as satisfied
// instead of blocking forever on a task that no longer exists; any
// dependents unblocked by the removal fire the ready hook.
func (g *DependencyGraph) RemoveTask(id string) error {
	g.mu.Lock()
	if _, exists := g.edges[id]; !exists {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	g.mu.Unlock()

	// Reuse the completion path so unblocked dependents get notified.
	g.MarkTaskComplete(id)

	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.edges, id)
	delete(g.soft, id)
	for i, ordered := range g.order {
		if ordered == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	debugLog("[graph.RemoveTask] id=%s removed (completion marker retained)", id)
	return nil
}

// discard drops a task without marking it complete or notifying
// dependents, leaving no trace in the completion set. Used to roll
// back a partially registered task; a later AddTask with the same ID
// starts fresh.
func (g *DependencyGraph) discard(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.edges, id)
	delete(g.soft, id)
	delete(g.completed, id)
	for i, ordered := range g.order {
		if ordered == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}

// Size returns the number of tracked tasks.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}
