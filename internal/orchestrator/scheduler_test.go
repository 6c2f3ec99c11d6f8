package orchestrator

import (
	"errors"
	"reflect"
	"testing"

	"github.com/dispatchd/dispatch/pkg/models"
)

func TestSchedulerEmpty(t *testing.T) {
	s := NewPriorityScheduler()

	if id, ok := s.GetNextTask(); ok {
		t.Errorf("expected no task, got %s", id)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty scheduler, got %d", s.Len())
	}
}

func TestSchedulerPriorityOrdering(t *testing.T) {
	// Insert low:L1, critical:C1, normal:N1, high:H1; drain order must
	// be C1, H1, N1, L1.
	s := NewPriorityScheduler()
	s.AddTask("L1", models.PriorityLow)
	s.AddTask("C1", models.PriorityCritical)
	s.AddTask("N1", models.PriorityNormal)
	s.AddTask("H1", models.PriorityHigh)

	var drained []string
	for {
		id, ok := s.GetNextTask()
		if !ok {
			break
		}
		drained = append(drained, id)
		s.RemoveTask(id)
	}

	if !reflect.DeepEqual(drained, []string{"C1", "H1", "N1", "L1"}) {
		t.Errorf("expected [C1 H1 N1 L1], got %v", drained)
	}
}

func TestSchedulerFIFOWithinPriority(t *testing.T) {
	s := NewPriorityScheduler()
	s.AddTask("first", models.PriorityNormal)
	s.AddTask("second", models.PriorityNormal)
	s.AddTask("third", models.PriorityNormal)

	id, ok := s.GetNextTask()
	if !ok || id != "first" {
		t.Errorf("expected first, got %s", id)
	}

	// Peek does not remove.
	id, ok = s.GetNextTask()
	if !ok || id != "first" {
		t.Errorf("expected peek to be stable, got %s", id)
	}

	s.RemoveTask("first")
	if id, _ := s.GetNextTask(); id != "second" {
		t.Errorf("expected second, got %s", id)
	}
}

func TestSchedulerDuplicateAdd(t *testing.T) {
	s := NewPriorityScheduler()
	s.AddTask("task-1", models.PriorityNormal)

	if err := s.AddTask("task-1", models.PriorityHigh); !errors.Is(err, ErrDuplicateTask) {
		t.Errorf("expected ErrDuplicateTask, got %v", err)
	}
}

func TestSchedulerRemoveAbsentIsNoop(t *testing.T) {
	s := NewPriorityScheduler()
	s.AddTask("task-1", models.PriorityNormal)
	s.RemoveTask("ghost")

	if s.Len() != 1 {
		t.Errorf("expected 1 task, got %d", s.Len())
	}
}

func TestSchedulerUpdatePriorityPromotes(t *testing.T) {
	// N1, N2 normal; promoting N1 to critical schedules it before N2.
	s := NewPriorityScheduler()
	s.AddTask("N1", models.PriorityNormal)
	s.AddTask("N2", models.PriorityNormal)

	if err := s.UpdateTaskPriority("N1", models.PriorityCritical); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if id, _ := s.GetNextTask(); id != "N1" {
		t.Errorf("expected N1 first after promotion, got %s", id)
	}
}

func TestSchedulerUpdatePriorityMovesToTail(t *testing.T) {
	s := NewPriorityScheduler()
	s.AddTask("A", models.PriorityLow)
	s.AddTask("B", models.PriorityNormal)
	s.AddTask("C", models.PriorityNormal)

	// A joins the normal bucket at the tail, behind B and C.
	if err := s.UpdateTaskPriority("A", models.PriorityNormal); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := s.InOrder(); !reflect.DeepEqual(got, []string{"B", "C", "A"}) {
		t.Errorf("expected [B C A], got %v", got)
	}
}

func TestSchedulerUpdatePriorityUnknown(t *testing.T) {
	s := NewPriorityScheduler()
	if err := s.UpdateTaskPriority("ghost", models.PriorityHigh); !errors.Is(err, ErrUnknownTask) {
		t.Errorf("expected ErrUnknownTask, got %v", err)
	}
}

func TestSchedulerInOrder(t *testing.T) {
	s := NewPriorityScheduler()
	s.AddTask("low-1", models.PriorityLow)
	s.AddTask("crit-1", models.PriorityCritical)
	s.AddTask("norm-1", models.PriorityNormal)
	s.AddTask("crit-2", models.PriorityCritical)

	want := []string{"crit-1", "crit-2", "norm-1", "low-1"}
	if got := s.InOrder(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSchedulerRequeue(t *testing.T) {
	s := NewPriorityScheduler()
	s.AddTask("A", models.PriorityNormal)
	s.AddTask("B", models.PriorityNormal)

	s.Requeue("A")
	if got := s.InOrder(); !reflect.DeepEqual(got, []string{"B", "A"}) {
		t.Errorf("expected [B A] after requeue, got %v", got)
	}

	// Requeue of an absent task is a no-op.
	s.Requeue("ghost")
	if s.Len() != 2 {
		t.Errorf("expected 2 tasks, got %d", s.Len())
	}
}

func TestSchedulerPendingCounts(t *testing.T) {
	s := NewPriorityScheduler()
	s.AddTask("a", models.PriorityHigh)
	s.AddTask("b", models.PriorityHigh)
	s.AddTask("c", models.PriorityLow)

	if s.Pending(models.PriorityHigh) != 2 {
		t.Errorf("expected 2 high tasks, got %d", s.Pending(models.PriorityHigh))
	}
	if s.Pending(models.PriorityCritical) != 0 {
		t.Errorf("expected 0 critical tasks, got %d", s.Pending(models.PriorityCritical))
	}
}
