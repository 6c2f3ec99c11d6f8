package orchestrator

import (
	"fmt"
	"sync"

	"github.com/dispatchd/dispatch/pkg/models"
)

// PriorityScheduler decides which eligible task is handed out next.
// Tasks are held in one FIFO bucket per priority; scheduling order is
// critical > high > normal > low, strict insertion order within a
// bucket.
type PriorityScheduler struct {
	mu sync.Mutex
	// buckets maps each priority to its FIFO queue of task IDs.
	buckets map[models.Priority][]string
	// priorities maps task ID to its current bucket.
	priorities map[string]models.Priority
}

// NewPriorityScheduler creates an empty scheduler.
func NewPriorityScheduler() *PriorityScheduler {
	return &PriorityScheduler{
		buckets:    make(map[models.Priority][]string),
		priorities: make(map[string]models.Priority),
	}
}

// AddTask appends a task to the tail of its priority bucket.
// Returns ErrDuplicateTask if the ID is already queued.
func (s *PriorityScheduler) AddTask(id string, priority models.Priority) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.priorities[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, id)
	}
	if !priority.Valid() {
		return fmt.Errorf("invalid priority %q for task %s", priority, id)
	}

	s.buckets[priority] = append(s.buckets[priority], id)
	s.priorities[id] = priority
	debugLog("[scheduler.AddTask] id=%s priority=%s", id, priority)
	return nil
}

// GetNextTask returns, without removing, the head of the highest
// non-empty priority bucket. The second return value is false when the
// scheduler is empty.
func (s *PriorityScheduler) GetNextTask() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range models.PrioritiesDescending {
		if bucket := s.buckets[p]; len(bucket) > 0 {
			return bucket[0], true
		}
	}
	return "", false
}

// InOrder returns all queued task IDs in scheduling order: descending
// priority, FIFO within each bucket.
func (s *PriorityScheduler) InOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.priorities))
	for _, p := range models.PrioritiesDescending {
		ids = append(ids, s.buckets[p]...)
	}
	return ids
}

// RemoveTask removes a task from its bucket. No-op if absent.
func (s *PriorityScheduler) RemoveTask(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	priority, exists := s.priorities[id]
	if !exists {
		return
	}
	s.buckets[priority] = remove(s.buckets[priority], id)
	delete(s.priorities, id)
	debugLog("[scheduler.RemoveTask] id=%s priority=%s", id, priority)
}

// UpdateTaskPriority moves a task to the tail of the new priority
// bucket. The original insertion position is not preserved across a
// priority change: the task re-enters FIFO order at the new priority.
// Returns ErrUnknownTask if the ID is not queued.
func (s *PriorityScheduler) UpdateTaskPriority(id string, newPriority models.Priority) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.priorities[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	if !newPriority.Valid() {
		return fmt.Errorf("invalid priority %q for task %s", newPriority, id)
	}

	s.buckets[current] = remove(s.buckets[current], id)
	s.buckets[newPriority] = append(s.buckets[newPriority], id)
	s.priorities[id] = newPriority
	debugLog("[scheduler.UpdateTaskPriority] id=%s %s -> %s", id, current, newPriority)
	return nil
}

// Requeue moves a task to the tail of its current bucket. Used when a
// failed task re-enters pending so it queues behind newer work.
// No-op if the task is not queued.
func (s *PriorityScheduler) Requeue(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	priority, exists := s.priorities[id]
	if !exists {
		return
	}
	s.buckets[priority] = append(remove(s.buckets[priority], id), id)
	debugLog("[scheduler.Requeue] id=%s priority=%s", id, priority)
}

// Len returns the total number of queued tasks.
func (s *PriorityScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.priorities)
}

// Pending returns the number of queued tasks at the given priority.
func (s *PriorityScheduler) Pending(priority models.Priority) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets[priority])
}

func remove(bucket []string, id string) []string {
	for i, queued := range bucket {
		if queued == id {
			return append(bucket[:i], bucket[i+1:]...)
		}
	}
	return bucket
}
