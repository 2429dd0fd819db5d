package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignite/playbook-engine/internal/playbook"
	"github.com/ignite/playbook-engine/internal/signal"
)

// Mode selects between a side-effect-free report and real run creation.
type Mode string

const (
	DryRun Mode = "dry_run"
	Live   Mode = "live"
)

// MatchOutcome is the trigger matcher's verdict for one playbook.
type MatchOutcome struct {
	Playbook          playbook.Playbook
	WouldTrigger      bool
	MissingConditions []string
	Confidence        float64
}

// ConflictReason enumerates why a matched playbook was suppressed.
type ConflictReason string

const (
	ReasonLowerPriority        ConflictReason = "LowerPriority"
	ReasonCooldownActive       ConflictReason = "CooldownActive"
	ReasonExecutionModeBlocked ConflictReason = "ExecutionModeBlocked"
)

// ConflictRecord explains one suppression. WinningPlaybookID is nil when
// the playbook lost to its own cooldown or pending approval rather than to
// a competitor.
type ConflictRecord struct {
	SuppressedPlaybookID uuid.UUID      `json:"suppressedPlaybookId"`
	WinningPlaybookID    *uuid.UUID     `json:"winningPlaybookId,omitempty"`
	Reason               ConflictReason `json:"reason"`
	CooldownEndsAt       *time.Time     `json:"cooldownEndsAt,omitempty"`
}

// DecisionSummary is the human-readable explanation of a decision.
type DecisionSummary struct {
	Trigger    string  `json:"trigger"`
	WhyNow     string  `json:"whyNow"`
	Confidence float64 `json:"confidence"`
}

// EvaluationResult is the per-playbook outcome of one evaluation. Ephemeral
// unless a real run materializes behind it.
type EvaluationResult struct {
	PlaybookID        uuid.UUID        `json:"playbookId"`
	PlaybookName      string           `json:"playbookName"`
	WouldTrigger      bool             `json:"wouldTrigger"`
	MissingConditions []string         `json:"missingConditions"`
	SuppressionReason *string          `json:"suppressionReason,omitempty"`
	DecisionSummary   *DecisionSummary `json:"decisionSummary,omitempty"`
}

// EvaluationReport is what Evaluate returns. Dry runs carry the full
// evaluation and conflict breakdown; live evaluations additionally carry
// the created runs.
type EvaluationReport struct {
	Signal      signal.Signal      `json:"signal"`
	Mode        Mode               `json:"mode"`
	Evaluations []EvaluationResult `json:"evaluations"`
	Conflicts   []ConflictRecord   `json:"conflicts"`
	Runs        []Run              `json:"runs,omitempty"`
}

// Winners returns the playbook ids that would (or did) fire.
func (r *EvaluationReport) Winners() []uuid.UUID {
	var out []uuid.UUID
	for _, ev := range r.Evaluations {
		if ev.WouldTrigger && ev.SuppressionReason == nil {
			out = append(out, ev.PlaybookID)
		}
	}
	return out
}
