package orchestrator

import (
	"fmt"
	"sync"

	"github.com/dispatchd/dispatch/pkg/models"
)

// WorkerPool is the engine's read-only view of the external worker
// fleet. The engine queries idle workers for matching but never
// mutates them.
type WorkerPool interface {
	// GetIdleWorkers returns the workers currently able to accept a
	// task, in a stable order.
	GetIdleWorkers() []*models.Worker
}

// StaticPool is an in-memory WorkerPool used by the CLI and tests.
// It provides thread-safe registration and availability updates.
type StaticPool struct {
	mu sync.RWMutex
	// order holds worker IDs in registration order so GetIdleWorkers
	// is deterministic.
	order []string
	// workers maps worker ID to the worker record.
	workers map[string]*models.Worker
}

// NewStaticPool creates an empty pool.
func NewStaticPool() *StaticPool {
	return &StaticPool{
		workers: make(map[string]*models.Worker),
	}
}

// Register adds a worker to the pool. Workers with no status default
// to idle. Returns an error if the ID is already registered.
func (p *StaticPool) Register(w *models.Worker) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.workers[w.ID]; exists {
		return fmt.Errorf("worker %s already registered", w.ID)
	}

	record := &models.Worker{
		ID:           w.ID,
		Capabilities: append([]string(nil), w.Capabilities...),
		Status:       w.Status,
	}
	if record.Status == "" {
		record.Status = models.WorkerStatusIdle
	}
	p.order = append(p.order, w.ID)
	p.workers[w.ID] = record
	return nil
}

// SetStatus updates a worker's availability.
func (p *StaticPool) SetStatus(id string, status models.WorkerStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, exists := p.workers[id]
	if !exists {
		return fmt.Errorf("worker %s not registered", id)
	}
	if !status.Valid() {
		return fmt.Errorf("invalid worker status %q", status)
	}
	w.Status = status
	return nil
}

// GetIdleWorkers returns the idle workers in registration order.
func (p *StaticPool) GetIdleWorkers() []*models.Worker {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var idle []*models.Worker
	for _, id := range p.order {
		if w := p.workers[id]; w.Status == models.WorkerStatusIdle {
			idle = append(idle, w)
		}
	}
	return idle
}

// Get returns a worker by ID, or nil if not registered.
func (p *StaticPool) Get(id string) *models.Worker {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.workers[id]
}

// Count returns the number of registered workers.
func (p *StaticPool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.workers)
}
