package orchestrator

import "errors"

// ErrDuplicateTask indicates a task ID is already registered.
var ErrDuplicateTask = errors.New("task already exists")

// ErrUnknownTask indicates an operation referenced an untracked task ID.
var ErrUnknownTask = errors.New("unknown task")

// ErrInvalidTransition indicates an illegal lifecycle state edge.
var ErrInvalidTransition = errors.New("invalid state transition")

// ErrNoViableWorker indicates a ready task exists but no idle worker
// has any capability overlap with it. This is a normal scheduling
// outcome, not a failure: the task stays pending and is retried on the
// next AssignNext call.
var ErrNoViableWorker = errors.New("no viable worker")
