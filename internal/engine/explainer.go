package engine

import (
	"fmt"
	"strings"

	"github.com/ignite/playbook-engine/internal/playbook"
	"github.com/ignite/playbook-engine/internal/signal"
)

// Explain turns an already-computed match/suppression outcome into a
// human-readable decision summary. Presentation only: it never re-derives a
// decision, it formats the facts it is handed. winnerName is the display
// name of the conflicting winner, when there is one.
func Explain(sig signal.Signal, outcome MatchOutcome, conflict *ConflictRecord, winnerName string) DecisionSummary {
	return DecisionSummary{
		Trigger:    describeTrigger(outcome.Playbook.Trigger),
		WhyNow:     describeWhyNow(sig, outcome, conflict, winnerName),
		Confidence: outcome.Confidence,
	}
}

func describeTrigger(t playbook.Trigger) string {
	desc := fmt.Sprintf("%s with confidence ≥ %.2f", t.SignalType, t.MinConfidence)
	if t.MinAmount != nil {
		desc += fmt.Sprintf(", amount ≥ $%.0f", *t.MinAmount)
	}
	if t.MinMrr != nil {
		desc += fmt.Sprintf(", MRR ≥ $%.0f", *t.MinMrr)
	}
	if t.MinDaysInactive != nil {
		desc += fmt.Sprintf(", inactive ≥ %d days", *t.MinDaysInactive)
	}
	if t.MinDaysOverdue != nil {
		desc += fmt.Sprintf(", overdue ≥ %d days", *t.MinDaysOverdue)
	}
	return desc
}

func describeWhyNow(sig signal.Signal, outcome MatchOutcome, conflict *ConflictRecord, winnerName string) string {
	if conflict != nil {
		switch conflict.Reason {
		case ReasonCooldownActive:
			if conflict.CooldownEndsAt != nil {
				return fmt.Sprintf("suppressed: cooldown active until %s",
					conflict.CooldownEndsAt.Format("2006-01-02 15:04 MST"))
			}
			return "suppressed: cooldown active"
		case ReasonLowerPriority:
			if winnerName != "" {
				return fmt.Sprintf("suppressed by higher-priority playbook %q", winnerName)
			}
			return "suppressed by a higher-priority playbook"
		case ReasonExecutionModeBlocked:
			return "suppressed: a run for this customer is already awaiting approval"
		}
	}

	if !outcome.WouldTrigger {
		return "conditions not met: " + strings.Join(outcome.MissingConditions, "; ")
	}

	when := sig.OccurredAt.Format("Jan 2 15:04 MST")
	switch sig.Type {
	case signal.TypePaymentFailure:
		if sig.Amount != nil {
			return fmt.Sprintf("payment of $%.2f failed at %s", *sig.Amount, when)
		}
		return "payment failed at " + when
	case signal.TypeOverdueInvoice:
		if sig.Amount != nil {
			return fmt.Sprintf("invoice of $%.2f overdue as of %s", *sig.Amount, when)
		}
		return "invoice overdue as of " + when
	case signal.TypeInactivity7d:
		return fmt.Sprintf("no product activity for a week as of %s", when)
	case signal.TypeDealLost:
		return "deal marked lost at " + when
	case signal.TypeUsageDrop:
		return "usage dropped sharply as of " + when
	default:
		return fmt.Sprintf("%s observed at %s", sig.Type, when)
	}
}
