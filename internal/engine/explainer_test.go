package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestExplainTriggerDescription(t *testing.T) {
	pb := testPlaybook("Dunning Recovery", 80)
	pb.Trigger.MinAmount = floatPtr(100)
	sig := testSignal(0.8, 150)

	summary := Explain(sig, Match(sig, pb, testContext(sig.CustomerID)), nil, "")

	if !strings.Contains(summary.Trigger, "payment_failure") {
		t.Errorf("trigger %q should name the signal type", summary.Trigger)
	}
	if !strings.Contains(summary.Trigger, "0.70") || !strings.Contains(summary.Trigger, "$100") {
		t.Errorf("trigger %q should state the thresholds", summary.Trigger)
	}
	if summary.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8", summary.Confidence)
	}
}

func TestExplainWhyNow(t *testing.T) {
	pb := testPlaybook("Dunning Recovery", 80)
	sig := testSignal(0.8, 150)
	matchedOutcome := Match(sig, pb, testContext(sig.CustomerID))
	winner := uuid.New()
	ends := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		outcome  MatchOutcome
		conflict *ConflictRecord
		winner   string
		want     string
	}{
		{"matched payment failure", matchedOutcome, nil, "", "payment of $150.00 failed"},
		{"cooldown suppression", matchedOutcome,
			&ConflictRecord{Reason: ReasonCooldownActive, CooldownEndsAt: &ends}, "",
			"cooldown active until"},
		{"priority suppression", matchedOutcome,
			&ConflictRecord{Reason: ReasonLowerPriority, WinningPlaybookID: &winner}, "VIP Rescue",
			`higher-priority playbook "VIP Rescue"`},
		{"approval block", matchedOutcome,
			&ConflictRecord{Reason: ReasonExecutionModeBlocked}, "",
			"already awaiting approval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := Explain(sig, tt.outcome, tt.conflict, tt.winner)
			if !strings.Contains(summary.WhyNow, tt.want) {
				t.Errorf("whyNow = %q, want it to contain %q", summary.WhyNow, tt.want)
			}
		})
	}
}

func TestExplainUnmatchedListsConditions(t *testing.T) {
	pb := testPlaybook("Strict", 50)
	pb.Trigger.MinConfidence = 0.95
	pb.Trigger.MinMrr = floatPtr(5000)
	sig := testSignal(0.8, 150)

	summary := Explain(sig, Match(sig, pb, testContext(sig.CustomerID)), nil, "")

	if !strings.HasPrefix(summary.WhyNow, "conditions not met:") {
		t.Fatalf("whyNow = %q, want unmet-conditions phrasing", summary.WhyNow)
	}
	if !strings.Contains(summary.WhyNow, "confidence") || !strings.Contains(summary.WhyNow, "MRR") {
		t.Errorf("whyNow = %q, want both unmet conditions listed", summary.WhyNow)
	}
}
