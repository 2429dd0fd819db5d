package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/playbook-engine/internal/customer"
	"github.com/ignite/playbook-engine/internal/pkg/distlock"
	"github.com/ignite/playbook-engine/internal/playbook"
	"github.com/ignite/playbook-engine/internal/signal"
)

// PlaybookSource supplies the playbooks applicable to a signal. The store
// behind it is tenant-scoped, so cross-tenant playbooks can never reach an
// evaluation.
type PlaybookSource interface {
	ListEnabledBySignalType(ctx context.Context, st signal.Type) ([]playbook.Playbook, error)
}

// LockFactory builds a cross-process lock for one customer's live
// evaluation. Optional: single-instance deployments and sandboxes rely on
// the in-process lock alone.
type LockFactory func(customerID uuid.UUID) distlock.DistLock

// Orchestrator is the engine's entry point: one call per inbound signal.
type Orchestrator struct {
	playbooks   PlaybookSource
	customers   customer.Provider
	resolver    *Resolver
	scheduler   *Scheduler
	clock       Clock
	locks       *customerLocks
	distLocks   LockFactory
	lockRetries int
	// gate serializes evaluation against clock advancement: evaluations
	// hold it shared, the time simulator holds it exclusively.
	gate *sync.RWMutex
}

func NewOrchestrator(playbooks PlaybookSource, customers customer.Provider, resolver *Resolver, scheduler *Scheduler, clock Clock) *Orchestrator {
	return &Orchestrator{
		playbooks:   playbooks,
		customers:   customers,
		resolver:    resolver,
		scheduler:   scheduler,
		clock:       clock,
		locks:       newCustomerLocks(),
		lockRetries: 1,
		gate:        &sync.RWMutex{},
	}
}

// SetLockFactory enables cross-process per-customer locking for live
// evaluation.
func (o *Orchestrator) SetLockFactory(f LockFactory) { o.distLocks = f }

// SetLockRetries configures how many times a contended customer lock is
// retried before the evaluation surfaces ErrConcurrencyConflict.
func (o *Orchestrator) SetLockRetries(n int) {
	if n >= 0 {
		o.lockRetries = n
	}
}

// Gate exposes the evaluation/simulation mutex so a time simulator can
// share it.
func (o *Orchestrator) Gate() *sync.RWMutex { return o.gate }

// Evaluate decides which playbooks fire for a signal. Dry runs read
// everything and mutate nothing; they are safe to call concurrently with
// live evaluation. Live evaluation is serialized per customer.
func (o *Orchestrator) Evaluate(ctx context.Context, sig signal.Signal, mode Mode) (*EvaluationReport, error) {
	if err := sig.Validate(); err != nil {
		return nil, &ValidationError{Subject: "signal", Err: err}
	}

	o.gate.RLock()
	defer o.gate.RUnlock()

	if mode == Live {
		unlock := o.locks.lock(sig.CustomerID)
		defer unlock()

		if o.distLocks != nil {
			release, err := o.acquireDistributed(ctx, sig.CustomerID)
			if err != nil {
				return nil, err
			}
			defer release()
		}
	}

	cctx, err := o.customers.Context(ctx, sig.CustomerID, sig.OccurredAt)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return nil, &NotFoundError{Kind: "customer", ID: sig.CustomerID.String()}
		}
		return nil, err
	}

	applicable, err := o.playbooks.ListEnabledBySignalType(ctx, sig.Type)
	if err != nil {
		return nil, err
	}

	var outcomes []MatchOutcome
	var candidates []MatchOutcome
	for _, pb := range applicable {
		if err := pb.Validate(); err != nil {
			// One malformed playbook never blocks the rest.
			log.Printf("[orchestrator] skipping playbook %s: %v", pb.ID, err)
			continue
		}
		outcome := Match(sig, pb, cctx)
		outcomes = append(outcomes, outcome)
		if outcome.WouldTrigger {
			candidates = append(candidates, outcome)
		}
	}

	winnerIDs, conflicts, err := o.resolver.Resolve(ctx, sig.CustomerID, candidates)
	if err != nil {
		return nil, err
	}

	report := &EvaluationReport{Signal: sig, Mode: mode, Conflicts: conflicts}

	conflictByID := make(map[uuid.UUID]*ConflictRecord, len(conflicts))
	for i := range conflicts {
		conflictByID[conflicts[i].SuppressedPlaybookID] = &conflicts[i]
	}
	nameByID := make(map[uuid.UUID]string, len(outcomes))
	for _, oc := range outcomes {
		nameByID[oc.Playbook.ID] = oc.Playbook.Name
	}

	// Every evaluated playbook gets an explanation, matched or not, so a
	// dry run explains the full configured set.
	for _, oc := range outcomes {
		result := EvaluationResult{
			PlaybookID:        oc.Playbook.ID,
			PlaybookName:      oc.Playbook.Name,
			WouldTrigger:      oc.WouldTrigger,
			MissingConditions: oc.MissingConditions,
		}
		conflict := conflictByID[oc.Playbook.ID]
		if conflict != nil {
			reason := string(conflict.Reason)
			result.SuppressionReason = &reason
		}
		winnerName := ""
		if conflict != nil && conflict.WinningPlaybookID != nil {
			winnerName = nameByID[*conflict.WinningPlaybookID]
		}
		summary := Explain(sig, oc, conflict, winnerName)
		result.DecisionSummary = &summary
		report.Evaluations = append(report.Evaluations, result)
	}

	if mode == Live {
		for _, winnerID := range winnerIDs {
			pb, ok := findPlaybook(outcomes, winnerID)
			if !ok {
				continue
			}
			run, err := o.scheduler.Schedule(ctx, pb, sig.CustomerID, sig)
			if err != nil {
				return nil, err
			}
			report.Runs = append(report.Runs, *run)
			if run.Status == StatusSuppressed {
				markSuppressed(report, winnerID, run.SuppressionReason)
			}
		}
	}

	return report, nil
}

// acquireDistributed takes the cross-process customer lock, retrying a
// configured number of times before surfacing the loss as a transient
// conflict.
func (o *Orchestrator) acquireDistributed(ctx context.Context, customerID uuid.UUID) (func(), error) {
	lock := o.distLocks(customerID)
	for attempt := 0; attempt <= o.lockRetries; attempt++ {
		ok, err := lock.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
					log.Printf("[orchestrator] releasing customer lock %s: %v", customerID, err)
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil, ErrConcurrencyConflict
}

func findPlaybook(outcomes []MatchOutcome, id uuid.UUID) (playbook.Playbook, bool) {
	for _, oc := range outcomes {
		if oc.Playbook.ID == id {
			return oc.Playbook, true
		}
	}
	return playbook.Playbook{}, false
}

func markSuppressed(report *EvaluationReport, playbookID uuid.UUID, reason string) {
	for i := range report.Evaluations {
		if report.Evaluations[i].PlaybookID == playbookID {
			r := reason
			report.Evaluations[i].SuppressionReason = &r
			return
		}
	}
}
