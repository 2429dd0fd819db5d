package engine

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/ignite/playbook-engine/internal/playbook"
	"github.com/ignite/playbook-engine/internal/signal"
)

// ActionDispatcher executes a run's actions. Implementations live outside
// the engine; the scheduler only hands off the run record and playbook, it
// never performs side effects itself.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, run Run, pb playbook.Playbook, sig signal.Signal) error
}

// Scheduler enforces maxConcurrentRuns and materializes run records.
type Scheduler struct {
	runs       RunStore
	cooldowns  CooldownStore
	clock      Clock
	dispatcher ActionDispatcher
}

func NewScheduler(runs RunStore, cooldowns CooldownStore, clock Clock, dispatcher ActionDispatcher) *Scheduler {
	return &Scheduler{runs: runs, cooldowns: cooldowns, clock: clock, dispatcher: dispatcher}
}

// Schedule creates a run for a winning playbook. At capacity the run is
// recorded with status Suppressed and reason CapacityExceeded: an audit
// record, not an error, and no cooldown starts. Otherwise the run is
// created in Queued, transitions to AwaitingApproval or Running, and the
// cooldown begins.
//
// Run creation and cooldown start are all-or-nothing: a failed cooldown
// write rolls the run back so a cancelled evaluation never leaves a
// partially-started run behind.
func (s *Scheduler) Schedule(ctx context.Context, pb playbook.Playbook, customerID uuid.UUID, sig signal.Signal) (*Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.clock.Now()

	active, err := s.runs.CountActive(ctx, pb.ID)
	if err != nil {
		return nil, err
	}
	if active >= pb.MaxConcurrentRuns {
		run := &Run{
			ID:                 uuid.New(),
			PlaybookID:         pb.ID,
			CustomerID:         customerID,
			StartedAt:          now,
			Status:             StatusSuppressed,
			TriggeringSignalID: sig.ID,
			SuppressionReason:  SuppressionCapacityExceeded,
		}
		if err := s.runs.Create(ctx, run); err != nil {
			return nil, err
		}
		log.Printf("[scheduler] playbook %s at capacity (%d active), run %s recorded as suppressed",
			pb.ID, active, run.ID)
		return run, nil
	}

	status := StatusRunning
	if pb.ExecutionMode == playbook.ModeRequiresApproval {
		status = StatusAwaitingApproval
	}
	// Runs materialize in Queued and only transition to their live status
	// once created, so an observer never sees an active run that the store
	// later refused.
	run := &Run{
		ID:                 uuid.New(),
		PlaybookID:         pb.ID,
		CustomerID:         customerID,
		StartedAt:          now,
		Status:             StatusQueued,
		TriggeringSignalID: sig.ID,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, err
	}
	if err := s.runs.UpdateStatus(ctx, run.ID, status, nil); err != nil {
		if delErr := s.runs.Delete(ctx, run.ID); delErr != nil {
			log.Printf("[scheduler] rollback of run %s failed: %v", run.ID, delErr)
		}
		return nil, err
	}
	run.Status = status

	if err := s.cooldowns.StartCooldown(ctx, pb.ID, customerID, now, pb.Cooldown()); err != nil {
		if delErr := s.runs.Delete(ctx, run.ID); delErr != nil {
			log.Printf("[scheduler] rollback of run %s failed: %v", run.ID, delErr)
		}
		return nil, err
	}

	if s.dispatcher != nil && run.Status == StatusRunning {
		if err := s.dispatcher.Dispatch(ctx, *run, pb, sig); err != nil {
			// Dispatch failures do not undo scheduling; the dispatcher
			// reports back for status transitions.
			log.Printf("[scheduler] dispatch for run %s failed: %v", run.ID, err)
		}
	}
	return run, nil
}
