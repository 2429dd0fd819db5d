package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a playbook run.
type RunStatus string

const (
	StatusQueued           RunStatus = "queued"
	StatusRunning          RunStatus = "running"
	StatusAwaitingApproval RunStatus = "awaiting_approval"
	StatusCompleted        RunStatus = "completed"
	StatusSuppressed       RunStatus = "suppressed"
)

// Active reports whether the run counts against maxConcurrentRuns.
// Suppressed records are audit history and never count.
func (s RunStatus) Active() bool {
	return s == StatusRunning || s == StatusAwaitingApproval
}

// SuppressionCapacityExceeded is the resource-based suppression reason a
// run is recorded with when its playbook is at capacity. Distinct from the
// conflict reasons: no competing playbook is involved.
const SuppressionCapacityExceeded = "CapacityExceeded"

// Run is one instance of a playbook firing (or being suppressed) for a
// customer.
type Run struct {
	ID                 uuid.UUID  `json:"id"`
	PlaybookID         uuid.UUID  `json:"playbookId"`
	CustomerID         uuid.UUID  `json:"customerId"`
	StartedAt          time.Time  `json:"startedAt"`
	Status             RunStatus  `json:"status"`
	TriggeringSignalID uuid.UUID  `json:"triggeringSignalId"`
	SuppressionReason  string     `json:"suppressionReason,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
}

// RunStore persists playbook runs.
type RunStore interface {
	Create(ctx context.Context, run *Run) error
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status RunStatus, completedAt *time.Time) error
	// CountActive counts Running + AwaitingApproval runs for a playbook.
	CountActive(ctx context.Context, playbookID uuid.UUID) (int, error)
	// HasAwaitingApproval reports whether the (playbook, customer) pair
	// already has a run waiting on a human.
	HasAwaitingApproval(ctx context.Context, playbookID, customerID uuid.UUID) (bool, error)
	// CompleteRunning transitions all Running runs to Completed and returns
	// how many were affected. Used by the time simulator.
	CompleteRunning(ctx context.Context, at time.Time) (int, error)
	// Reset deletes every run in the store's scope.
	Reset(ctx context.Context) error
}

// MemoryRunStore keeps runs in memory. Each testing-lab sandbox owns one,
// so reset is a scoped wipe rather than a process-wide one.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*Run
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[uuid.UUID]*Run)}
}

func (s *MemoryRunStore) Create(_ context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *MemoryRunStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, id)
	return nil
}

func (s *MemoryRunStore) UpdateStatus(_ context.Context, id uuid.UUID, status RunStatus, completedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return &NotFoundError{Kind: "run", ID: id.String()}
	}
	run.Status = status
	run.CompletedAt = completedAt
	return nil
}

func (s *MemoryRunStore) CountActive(_ context.Context, playbookID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, run := range s.runs {
		if run.PlaybookID == playbookID && run.Status.Active() {
			count++
		}
	}
	return count, nil
}

func (s *MemoryRunStore) HasAwaitingApproval(_ context.Context, playbookID, customerID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, run := range s.runs {
		if run.PlaybookID == playbookID && run.CustomerID == customerID && run.Status == StatusAwaitingApproval {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryRunStore) CompleteRunning(_ context.Context, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	affected := 0
	for _, run := range s.runs {
		if run.Status == StatusRunning {
			t := at
			run.Status = StatusCompleted
			run.CompletedAt = &t
			affected++
		}
	}
	return affected, nil
}

func (s *MemoryRunStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = make(map[uuid.UUID]*Run)
	return nil
}

// List returns a snapshot of all runs, newest first not guaranteed.
func (s *MemoryRunStore) List() []Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, *run)
	}
	return out
}
