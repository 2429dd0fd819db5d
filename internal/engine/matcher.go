package engine

import (
	"fmt"
	"strings"

	"github.com/ignite/playbook-engine/internal/customer"
	"github.com/ignite/playbook-engine/internal/playbook"
	"github.com/ignite/playbook-engine/internal/signal"
)

// Match evaluates a signal against one playbook's trigger. Pure: no side
// effects, no clock, deterministic for identical inputs.
//
// The signalType gate is the caller's selection criterion; playbooks with a
// different signal type are never handed to Match and never appear in
// reports. Every other check runs regardless of earlier failures so a dry
// run always lists the complete set of unmet conditions.
func Match(sig signal.Signal, pb playbook.Playbook, cctx *customer.Context) MatchOutcome {
	trigger := pb.Trigger
	var missing []string

	confidence := 0.0
	if sig.Confidence != nil {
		confidence = *sig.Confidence
	}

	// An absent confidence fails the gate unless the playbook accepts the
	// lowest tier.
	if sig.Confidence == nil {
		if trigger.MinConfidence > 0 {
			missing = append(missing, fmt.Sprintf("signal has no confidence value (minimum %.2f required)", trigger.MinConfidence))
		}
	} else if confidence < trigger.MinConfidence {
		missing = append(missing, fmt.Sprintf("confidence %.2f below minimum %.2f", confidence, trigger.MinConfidence))
	}

	if trigger.MinMrr != nil && cctx.MRR < *trigger.MinMrr {
		missing = append(missing, fmt.Sprintf("MRR $%.0f below minimum $%.0f", cctx.MRR, *trigger.MinMrr))
	}

	if trigger.MinAmount != nil {
		if sig.Amount == nil {
			missing = append(missing, fmt.Sprintf("signal has no amount (minimum $%.0f required)", *trigger.MinAmount))
		} else if *sig.Amount < *trigger.MinAmount {
			missing = append(missing, fmt.Sprintf("amount $%.2f below minimum $%.0f", *sig.Amount, *trigger.MinAmount))
		}
	}

	if trigger.MinDaysInactive != nil && cctx.DaysInactive < *trigger.MinDaysInactive {
		missing = append(missing, fmt.Sprintf("only %d days inactive, %d required", cctx.DaysInactive, *trigger.MinDaysInactive))
	}

	if trigger.MinDaysOverdue != nil && cctx.DaysOverdue < *trigger.MinDaysOverdue {
		missing = append(missing, fmt.Sprintf("only %d days overdue, %d required", cctx.DaysOverdue, *trigger.MinDaysOverdue))
	}

	if unconnected := missingSources(trigger.RequiredSources, cctx); len(unconnected) > 0 {
		missing = append(missing, "missing required data sources: "+strings.Join(unconnected, ", "))
	}

	// An empty target set means "all customers".
	if len(trigger.TargetSegments) > 0 && !inAnySegment(trigger.TargetSegments, cctx) {
		missing = append(missing, "customer not in target segments")
	}

	return MatchOutcome{
		Playbook:          pb,
		WouldTrigger:      len(missing) == 0,
		MissingConditions: missing,
		Confidence:        confidence,
	}
}

func missingSources(required []string, cctx *customer.Context) []string {
	var out []string
	for _, src := range required {
		if !cctx.HasSource(src) {
			out = append(out, src)
		}
	}
	return out
}

func inAnySegment(targets []string, cctx *customer.Context) bool {
	for _, seg := range targets {
		if cctx.InSegment(seg) {
			return true
		}
	}
	return false
}
