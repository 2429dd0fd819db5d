package engine

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/ignite/playbook-engine/internal/playbook"
)

// PendingApprovals is the narrow run-store view the resolver needs to block
// duplicate approval requests. *MemoryRunStore and *PostgresRunStore both
// satisfy it.
type PendingApprovals interface {
	HasAwaitingApproval(ctx context.Context, playbookID, customerID uuid.UUID) (bool, error)
}

// Resolver decides which matched playbooks win for one customer.
type Resolver struct {
	cooldowns CooldownStore
	approvals PendingApprovals
	clock     Clock
}

func NewResolver(cooldowns CooldownStore, approvals PendingApprovals, clock Clock) *Resolver {
	return &Resolver{cooldowns: cooldowns, approvals: approvals, clock: clock}
}

// Resolve takes the candidates that matched (wouldTrigger, before cooldown)
// and produces winners plus a conflict record per suppressed candidate.
// Deterministic under reordering of the input: candidates are sorted by
// priority descending with playbook id ascending as the tie-break before
// any contention is decided.
func (r *Resolver) Resolve(ctx context.Context, customerID uuid.UUID, candidates []MatchOutcome) ([]uuid.UUID, []ConflictRecord, error) {
	now := r.clock.Now()

	ordered := make([]MatchOutcome, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		pi, pj := ordered[i].Playbook, ordered[j].Playbook
		if pi.Priority != pj.Priority {
			return pi.Priority > pj.Priority
		}
		return pi.ID.String() < pj.ID.String()
	})

	var winners []uuid.UUID
	var conflicts []ConflictRecord
	// Exclusive action types already claimed by a winner this evaluation.
	claimed := make(map[playbook.ActionType]uuid.UUID)

	for _, cand := range ordered {
		pb := cand.Playbook

		cooling, endsAt, err := r.cooldowns.IsCoolingDown(ctx, pb.ID, customerID, now)
		if err != nil {
			return nil, nil, err
		}
		if cooling {
			ends := endsAt
			conflicts = append(conflicts, ConflictRecord{
				SuppressedPlaybookID: pb.ID,
				Reason:               ReasonCooldownActive,
				CooldownEndsAt:       &ends,
			})
			continue
		}

		if pb.ExecutionMode == playbook.ModeRequiresApproval && r.approvals != nil {
			pending, err := r.approvals.HasAwaitingApproval(ctx, pb.ID, customerID)
			if err != nil {
				return nil, nil, err
			}
			if pending {
				conflicts = append(conflicts, ConflictRecord{
					SuppressedPlaybookID: pb.ID,
					Reason:               ReasonExecutionModeBlocked,
				})
				continue
			}
		}

		if winnerID, overlap := firstClaimedOverlap(pb, claimed); overlap {
			winner := winnerID
			conflicts = append(conflicts, ConflictRecord{
				SuppressedPlaybookID: pb.ID,
				WinningPlaybookID:    &winner,
				Reason:               ReasonLowerPriority,
			})
			continue
		}

		for _, t := range pb.ExclusiveActionTypes() {
			claimed[t] = pb.ID
		}
		winners = append(winners, pb.ID)
	}

	return winners, conflicts, nil
}

func firstClaimedOverlap(pb playbook.Playbook, claimed map[playbook.ActionType]uuid.UUID) (uuid.UUID, bool) {
	for _, t := range pb.ExclusiveActionTypes() {
		if winner, ok := claimed[t]; ok {
			return winner, true
		}
	}
	return uuid.Nil, false
}
