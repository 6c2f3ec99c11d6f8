package orchestrator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dispatchd/dispatch/pkg/models"
)

// Assignment records the outcome of a successful AssignNext call.
type Assignment struct {
	// TaskID is the assigned task.
	TaskID string
	// WorkerID is the worker the task was handed to.
	WorkerID string
	// Score is the capability match score of the pairing.
	Score float64
}

// Orchestrator is the externally visible surface of the engine.
// It owns the task table and composes the state machine, dependency
// graph, priority scheduler, and capability matcher. It is the only
// component that talks to the external WorkerPool and Notifier.
type Orchestrator struct {
	machine   *StateMachine
	graph     *DependencyGraph
	scheduler *PriorityScheduler
	matcher   *CapabilityMatcher
	pool      WorkerPool
	notifier  Notifier
	clock     Clock
	retry     RetryPolicy

	// tasks is the single owned store of task records, keyed by ID.
	tasks map[string]*models.Task
	// order holds task IDs in insertion order for deterministic reads.
	order []string
	// mu protects tasks and order, and serializes every public
	// operation so each call fully completes, including cascading
	// readiness recomputation, before another can interleave.
	mu sync.RWMutex
}

// New creates an Orchestrator talking to the given worker pool.
func New(pool WorkerPool, opts ...Option) *Orchestrator {
	options := &orchestratorOptions{
		clock:       SystemClock(),
		notifier:    NopNotifier{},
		matchPolicy: DefaultMatchPolicy(),
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.logger != nil {
		setPackageLogger(options.logger)
	}

	o := &Orchestrator{
		machine:   NewStateMachine(options.clock, options.notifier),
		graph:     NewDependencyGraph(),
		scheduler: NewPriorityScheduler(),
		matcher:   NewCapabilityMatcher(options.matchPolicy),
		pool:      pool,
		notifier:  options.notifier,
		clock:     options.clock,
		retry:     options.retry,
		tasks:     make(map[string]*models.Task),
	}

	o.graph.SetReadyHook(func(taskID string) {
		o.notifier.Publish(Event{
			Type:      EventTaskReady,
			TaskID:    taskID,
			Timestamp: o.clock.Now(),
		})
	})

	return o
}

// AddTask validates and registers a task with all three substructures,
// leaving it pending. A blank ID is replaced with a generated one.
// Validation happens before any registration, so a rejected task
// leaves no partial state behind.
func (o *Orchestrator) AddTask(task *models.Task) error {
	if task == nil {
		return fmt.Errorf("nil task")
	}
	if task.Title == "" {
		return fmt.Errorf("task title is required")
	}
	if task.ID == "" {
		task.ID = uuid.New().String()[:8]
	}
	if task.Priority == "" {
		task.Priority = models.PriorityNormal
	}
	if !task.Priority.Valid() {
		return fmt.Errorf("invalid priority %q for task %s", task.Priority, task.ID)
	}
	for _, depID := range task.DependsOn {
		if depID == task.ID {
			return fmt.Errorf("task %s depends on itself", task.ID)
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.tasks[task.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, task.ID)
	}

	record := task.Clone()
	record.Status = models.TaskStatePending
	record.AssignedTo = ""
	record.Attempts = 1
	if record.CreatedAt.IsZero() {
		record.CreatedAt = o.clock.Now()
	}
	record.History = []models.StateChange{
		{State: models.TaskStatePending, Timestamp: record.CreatedAt},
	}

	if err := o.machine.AddTask(record.ID); err != nil {
		return err
	}
	if err := o.graph.AddTask(record.ID, record.DependsOn, record.Prefers); err != nil {
		o.machine.Remove(record.ID)
		return err
	}
	if err := o.scheduler.AddTask(record.ID, record.Priority); err != nil {
		o.graph.discard(record.ID)
		o.machine.Remove(record.ID)
		return err
	}

	o.tasks[record.ID] = record
	o.order = append(o.order, record.ID)

	debugLog("[orchestrator.AddTask] id=%s title=%q priority=%s deps=%v",
		record.ID, record.Title, record.Priority, record.DependsOn)

	o.notifier.Publish(Event{
		Type:      EventTaskAdded,
		TaskID:    record.ID,
		Task:      record.Clone(),
		Timestamp: o.clock.Now(),
	})
	return nil
}

// AssignNext picks the single highest-priority, ready, still-pending
// task and hands it to the best-fit idle worker.
//
// Returns (nil, nil) when no task is eligible. Returns
// (nil, ErrNoViableWorker) when an eligible task exists but no idle
// worker has any capability overlap with it; the task stays pending
// and is retried on the next call.
func (o *Orchestrator) AssignNext() (*Assignment, error) {
	// Pick the candidate without holding the write lock so an
	// asynchronous pool query cannot block unrelated AddTask calls.
	o.mu.RLock()
	candidateID := o.nextEligibleLocked()
	o.mu.RUnlock()

	if candidateID == "" {
		return nil, nil
	}

	idle := o.pool.GetIdleWorkers()

	o.mu.Lock()
	defer o.mu.Unlock()

	// Revalidate: the candidate may have been removed or reprioritized
	// while the pool was queried.
	if o.nextEligibleLocked() != candidateID {
		return nil, nil
	}
	task := o.tasks[candidateID]

	if len(idle) == 0 {
		debugLog("[orchestrator.AssignNext] task %s ready but no idle workers", candidateID)
		return nil, fmt.Errorf("%w: task %s", ErrNoViableWorker, candidateID)
	}

	worker := o.matcher.FindBestMatch(task.RequiredCapabilities, idle)
	if worker == nil {
		debugLog("[orchestrator.AssignNext] task %s: zero capability overlap across %d idle workers",
			candidateID, len(idle))
		return nil, fmt.Errorf("%w: task %s", ErrNoViableWorker, candidateID)
	}

	change, err := o.machine.Transition(task.ID, models.TaskStateAssigned)
	if err != nil {
		return nil, err
	}
	task.Status = models.TaskStateAssigned
	task.AssignedTo = worker.ID
	task.History = append(task.History, change)

	score := o.matcher.MatchScore(task.RequiredCapabilities, worker.Capabilities)
	debugLog("[orchestrator.AssignNext] task %s -> worker %s (score=%.2f)",
		task.ID, worker.ID, score)

	o.notifier.Publish(Event{
		Type:      EventTaskAssigned,
		TaskID:    task.ID,
		WorkerID:  worker.ID,
		Timestamp: change.Timestamp,
	})

	return &Assignment{TaskID: task.ID, WorkerID: worker.ID, Score: score}, nil
}

// nextEligibleLocked returns the first task in scheduler order that is
// both pending and dependency-ready, or "" if none. Caller holds o.mu.
func (o *Orchestrator) nextEligibleLocked() string {
	ready := make(map[string]bool)
	for _, id := range o.graph.GetReadyTasks() {
		ready[id] = true
	}

	for _, id := range o.scheduler.InOrder() {
		task, exists := o.tasks[id]
		if !exists {
			continue
		}
		if task.Status == models.TaskStatePending && ready[id] {
			return id
		}
	}
	return ""
}

// OnTaskStarted records that the assigned worker began executing.
func (o *Orchestrator) OnTaskStarted(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	task, exists := o.tasks[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}

	change, err := o.machine.Transition(id, models.TaskStateInProgress)
	if err != nil {
		return err
	}
	task.Status = models.TaskStateInProgress
	task.History = append(task.History, change)
	return nil
}

// OnTaskCompleted records successful completion: the task transitions
// to completed, its completion unblocks dependents (publishing one
// task.ready per newly eligible dependent), and it leaves the
// scheduler for good.
func (o *Orchestrator) OnTaskCompleted(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	task, exists := o.tasks[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}

	change, err := o.machine.Transition(id, models.TaskStateCompleted)
	if err != nil {
		return err
	}
	task.Status = models.TaskStateCompleted
	task.AssignedTo = ""
	task.History = append(task.History, change)

	o.graph.MarkTaskComplete(id)
	o.scheduler.RemoveTask(id)

	debugLog("[orchestrator.OnTaskCompleted] id=%s", id)

	o.notifier.Publish(Event{
		Type:      EventTaskCompleted,
		TaskID:    id,
		Timestamp: change.Timestamp,
	})
	return nil
}

// OnTaskFailed records a failure. Dependents stay blocked: a failed
// task is never marked complete in the dependency graph. When the
// retry policy allows, the task immediately re-enters pending and
// queues at the tail of its priority bucket.
func (o *Orchestrator) OnTaskFailed(id, reason string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	task, exists := o.tasks[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}

	change, err := o.machine.Transition(id, models.TaskStateFailed)
	if err != nil {
		return err
	}
	task.Status = models.TaskStateFailed
	task.AssignedTo = ""
	task.History = append(task.History, change)

	debugLog("[orchestrator.OnTaskFailed] id=%s reason=%q attempts=%d", id, reason, task.Attempts)

	o.notifier.Publish(Event{
		Type:      EventTaskFailed,
		TaskID:    id,
		Reason:    reason,
		Timestamp: change.Timestamp,
	})

	if o.retry.Enabled && task.Attempts < o.retry.MaxAttempts {
		retryChange, err := o.machine.Transition(id, models.TaskStatePending)
		if err != nil {
			return err
		}
		task.Status = models.TaskStatePending
		task.Attempts++
		task.History = append(task.History, retryChange)
		o.scheduler.Requeue(id)
		debugLog("[orchestrator.OnTaskFailed] id=%s retrying, attempt %d/%d",
			id, task.Attempts, o.retry.MaxAttempts)
	}
	return nil
}

// Retry moves a failed task back to pending regardless of the retry
// policy, queueing it at the tail of its priority bucket.
func (o *Orchestrator) Retry(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	task, exists := o.tasks[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}

	change, err := o.machine.Transition(id, models.TaskStatePending)
	if err != nil {
		return err
	}
	task.Status = models.TaskStatePending
	task.Attempts++
	task.History = append(task.History, change)
	o.scheduler.Requeue(id)
	return nil
}

// RemoveTask removes a task from all three substructures and the task
// table. Dependents of the removed task are treated as satisfied, not
// cascaded: they may become ready as a result, never blocked forever.
func (o *Orchestrator) RemoveTask(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.tasks[id]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}

	if err := o.graph.RemoveTask(id); err != nil {
		return err
	}
	o.scheduler.RemoveTask(id)
	o.machine.Remove(id)

	delete(o.tasks, id)
	for i, ordered := range o.order {
		if ordered == id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	debugLog("[orchestrator.RemoveTask] id=%s", id)
	return nil
}

// UpdateTaskPriority moves a task to the tail of the new priority
// bucket.
func (o *Orchestrator) UpdateTaskPriority(id string, priority models.Priority) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	task, exists := o.tasks[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	if err := o.scheduler.UpdateTaskPriority(id, priority); err != nil {
		return err
	}
	task.Priority = priority
	return nil
}

// GetTask returns a snapshot of a task.
func (o *Orchestrator) GetTask(id string) (*models.Task, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	task, exists := o.tasks[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return task.Clone(), nil
}

// GetTasks returns snapshots of all tracked tasks in insertion order.
func (o *Orchestrator) GetTasks() []*models.Task {
	o.mu.RLock()
	defer o.mu.RUnlock()

	tasks := make([]*models.Task, 0, len(o.order))
	for _, id := range o.order {
		tasks = append(tasks, o.tasks[id].Clone())
	}
	return tasks
}

// GetReadyTasks returns snapshots of the dependency-ready, not-yet-
// complete tasks in insertion order.
func (o *Orchestrator) GetReadyTasks() []*models.Task {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var ready []*models.Task
	for _, id := range o.graph.GetReadyTasks() {
		if task, exists := o.tasks[id]; exists {
			ready = append(ready, task.Clone())
		}
	}
	return ready
}

// GetDependencies returns the hard dependency list of a task.
func (o *Orchestrator) GetDependencies(id string) ([]string, error) {
	return o.graph.GetDependencies(id)
}

// HasCircularDependency reports whether the task participates in a
// dependency cycle that includes itself.
func (o *Orchestrator) HasCircularDependency(id string) bool {
	return o.graph.HasCircularDependency(id)
}

// Transition exposes the raw lifecycle edge for external supervisors,
// e.g. forcing in_progress -> failed on timeout.
func (o *Orchestrator) Transition(id string, target models.TaskState) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	task, exists := o.tasks[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}

	change, err := o.machine.Transition(id, target)
	if err != nil {
		return err
	}
	task.Status = target
	task.History = append(task.History, change)
	if target != models.TaskStateAssigned && target != models.TaskStateInProgress {
		task.AssignedTo = ""
	}
	return nil
}

// GetState returns the current lifecycle state of a task.
func (o *Orchestrator) GetState(id string) (models.TaskState, error) {
	return o.machine.GetState(id)
}

// GetHistory returns the append-only transition history of a task.
func (o *Orchestrator) GetHistory(id string) ([]models.StateChange, error) {
	return o.machine.GetHistory(id)
}

// MatchScore exposes the capability matcher's scoring function.
func (o *Orchestrator) MatchScore(required, available []string) float64 {
	return o.matcher.MatchScore(required, available)
}

// FindBestMatch exposes the capability matcher's selection function.
func (o *Orchestrator) FindBestMatch(required []string, candidates []*models.Worker) *models.Worker {
	return o.matcher.FindBestMatch(required, candidates)
}

// IsNoViableWorker reports whether err is the normal "ready work but
// no capable idle worker" scheduling outcome.
func IsNoViableWorker(err error) bool {
	return errors.Is(err, ErrNoViableWorker)
}
