package models

// WorkerStatus represents the availability of a worker.
type WorkerStatus string

const (
	// WorkerStatusIdle indicates the worker can accept a task.
	WorkerStatusIdle WorkerStatus = "idle"
	// WorkerStatusBusy indicates the worker is executing a task.
	WorkerStatusBusy WorkerStatus = "busy"
	// WorkerStatusOffline indicates the worker is unreachable.
	WorkerStatusOffline WorkerStatus = "offline"
)

// Valid returns true if the status is a known value.
func (s WorkerStatus) Valid() bool {
	switch s {
	case WorkerStatusIdle, WorkerStatusBusy, WorkerStatusOffline:
		return true
	default:
		return false
	}
}

// Worker represents an external execution unit tasks are assigned to.
// The engine reads workers for capability matching but never manages
// their lifecycle.
type Worker struct {
	// ID is the unique identifier for this worker.
	ID string `json:"id"`
	// Capabilities lists the named skills this worker declares.
	Capabilities []string `json:"capabilities,omitempty"`
	// Status is the current availability of the worker.
	Status WorkerStatus `json:"status"`
}

// HasCapability returns true if the worker declares the given capability.
func (w *Worker) HasCapability(cap string) bool {
	for _, c := range w.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}
