package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/playbook-engine/internal/playbook"
	"github.com/ignite/playbook-engine/internal/signal"
)

// recordingDispatcher captures dispatched runs for assertions.
type recordingDispatcher struct {
	dispatched []Run
}

func (d *recordingDispatcher) Dispatch(_ context.Context, run Run, _ playbook.Playbook, _ signal.Signal) error {
	d.dispatched = append(d.dispatched, run)
	return nil
}

func TestScheduleAutomaticPlaybook(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	runs := NewMemoryRunStore()
	cooldowns := NewMemoryCooldownStore()
	dispatcher := &recordingDispatcher{}
	sched := NewScheduler(runs, cooldowns, fixedClock{now}, dispatcher)

	pb := testPlaybook("Dunning Recovery", 80)
	sig := testSignal(0.9, 200)

	run, err := sched.Schedule(context.Background(), pb, sig.CustomerID, sig)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if run.Status != StatusRunning {
		t.Errorf("status = %s, want running", run.Status)
	}
	if run.TriggeringSignalID != sig.ID {
		t.Errorf("triggering signal = %s, want %s", run.TriggeringSignalID, sig.ID)
	}
	if !run.StartedAt.Equal(now) {
		t.Errorf("startedAt = %v, want %v", run.StartedAt, now)
	}

	cooling, endsAt, _ := cooldowns.IsCoolingDown(context.Background(), pb.ID, sig.CustomerID, now.Add(time.Minute))
	if !cooling {
		t.Error("cooldown must start when the run starts")
	}
	if want := now.Add(24 * time.Hour); !endsAt.Equal(want) {
		t.Errorf("cooldown ends = %v, want %v", endsAt, want)
	}

	if len(dispatcher.dispatched) != 1 || dispatcher.dispatched[0].ID != run.ID {
		t.Errorf("dispatched = %v, want the scheduled run", dispatcher.dispatched)
	}
}

func TestScheduleApprovalPlaybookDoesNotDispatch(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	runs := NewMemoryRunStore()
	cooldowns := NewMemoryCooldownStore()
	dispatcher := &recordingDispatcher{}
	sched := NewScheduler(runs, cooldowns, fixedClock{now}, dispatcher)

	pb := testPlaybook("Win-back Outreach", 40)
	pb.ExecutionMode = playbook.ModeRequiresApproval
	sig := testSignal(0.9, 0)

	run, err := sched.Schedule(context.Background(), pb, sig.CustomerID, sig)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if run.Status != StatusAwaitingApproval {
		t.Errorf("status = %s, want awaiting_approval", run.Status)
	}
	if len(dispatcher.dispatched) != 0 {
		t.Error("actions must not dispatch before approval")
	}

	// Cooldown starts on scheduling, not on approval.
	cooling, _, _ := cooldowns.IsCoolingDown(context.Background(), pb.ID, sig.CustomerID, now.Add(time.Minute))
	if !cooling {
		t.Error("cooldown must start even while awaiting approval")
	}
}

// At capacity the outcome is an audit record: a suppressed run with reason
// CapacityExceeded, no cooldown, no dispatch, no error.
func TestScheduleCapacitySuppression(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	runs := NewMemoryRunStore()
	cooldowns := NewMemoryCooldownStore()
	dispatcher := &recordingDispatcher{}
	sched := NewScheduler(runs, cooldowns, fixedClock{now}, dispatcher)

	pb := testPlaybook("Busy", 50)
	pb.MaxConcurrentRuns = 2

	// Fill capacity.
	for i := 0; i < 2; i++ {
		sig := testSignal(0.9, 100)
		run, err := sched.Schedule(context.Background(), pb, sig.CustomerID, sig)
		if err != nil {
			t.Fatalf("schedule %d: %v", i, err)
		}
		if run.Status != StatusRunning {
			t.Fatalf("schedule %d: status = %s, want running", i, run.Status)
		}
	}

	sig := testSignal(0.9, 100)
	run, err := sched.Schedule(context.Background(), pb, sig.CustomerID, sig)
	if err != nil {
		t.Fatalf("capacity hit must not error: %v", err)
	}
	if run.Status != StatusSuppressed {
		t.Errorf("status = %s, want suppressed", run.Status)
	}
	if run.SuppressionReason != SuppressionCapacityExceeded {
		t.Errorf("reason = %q, want %q", run.SuppressionReason, SuppressionCapacityExceeded)
	}
	if cooling, _, _ := cooldowns.IsCoolingDown(context.Background(), pb.ID, sig.CustomerID, now.Add(time.Minute)); cooling {
		t.Error("a suppressed run must not start a cooldown")
	}
	if len(dispatcher.dispatched) != 2 {
		t.Errorf("dispatched = %d runs, want 2", len(dispatcher.dispatched))
	}

	// The suppressed record never counts against capacity.
	active, _ := runs.CountActive(context.Background(), pb.ID)
	if active != 2 {
		t.Errorf("active = %d, want 2", active)
	}
}

// statusTrackingStore records the lifecycle a run goes through.
type statusTrackingStore struct {
	*MemoryRunStore
	created RunStatus
	updates []RunStatus
}

func (s *statusTrackingStore) Create(ctx context.Context, run *Run) error {
	s.created = run.Status
	return s.MemoryRunStore.Create(ctx, run)
}

func (s *statusTrackingStore) UpdateStatus(ctx context.Context, id uuid.UUID, status RunStatus, completedAt *time.Time) error {
	s.updates = append(s.updates, status)
	return s.MemoryRunStore.UpdateStatus(ctx, id, status, completedAt)
}

// Runs are born Queued and transition to their live status, they never
// appear as Running before the store has accepted them.
func TestScheduleMaterializesQueuedFirst(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	runs := &statusTrackingStore{MemoryRunStore: NewMemoryRunStore()}
	sched := NewScheduler(runs, NewMemoryCooldownStore(), fixedClock{now}, nil)

	sig := testSignal(0.9, 200)
	run, err := sched.Schedule(context.Background(), testPlaybook("Dunning Recovery", 80), sig.CustomerID, sig)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if runs.created != StatusQueued {
		t.Errorf("created status = %s, want queued", runs.created)
	}
	if len(runs.updates) != 1 || runs.updates[0] != StatusRunning {
		t.Errorf("updates = %v, want single transition to running", runs.updates)
	}
	if run.Status != StatusRunning {
		t.Errorf("returned status = %s, want running", run.Status)
	}

	pb := testPlaybook("Win-back Outreach", 40)
	pb.ExecutionMode = playbook.ModeRequiresApproval
	runs.updates = nil
	run, err = sched.Schedule(context.Background(), pb, sig.CustomerID, sig)
	if err != nil {
		t.Fatalf("schedule approval: %v", err)
	}
	if runs.created != StatusQueued {
		t.Errorf("created status = %s, want queued", runs.created)
	}
	if run.Status != StatusAwaitingApproval {
		t.Errorf("returned status = %s, want awaiting_approval", run.Status)
	}
}

func TestScheduleCancelledContext(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	runs := NewMemoryRunStore()
	sched := NewScheduler(runs, NewMemoryCooldownStore(), fixedClock{now}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sig := testSignal(0.9, 100)
	if _, err := sched.Schedule(ctx, testPlaybook("Any", 50), sig.CustomerID, sig); err == nil {
		t.Fatal("expected context error")
	}
	if got := len(runs.List()); got != 0 {
		t.Errorf("runs = %d, want none after cancelled scheduling", got)
	}
}
