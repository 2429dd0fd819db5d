package engine

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/playbook-engine/internal/customer"
	"github.com/ignite/playbook-engine/internal/playbook"
	"github.com/ignite/playbook-engine/internal/signal"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func testSignal(confidence, amount float64) signal.Signal {
	return signal.
		New(signal.TypePaymentFailure, uuid.New(), time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)).
		WithConfidence(confidence).
		WithAmount(amount)
}

func testPlaybook(name string, priority int) playbook.Playbook {
	return playbook.Playbook{
		ID:   uuid.New(),
		Name: name,
		Trigger: playbook.Trigger{
			SignalType:    signal.TypePaymentFailure,
			MinConfidence: 0.7,
		},
		ExecutionMode:     playbook.ModeAutomatic,
		CooldownHours:     24,
		MaxConcurrentRuns: 5,
		Priority:          priority,
		Enabled:           true,
	}
}

func testContext(customerID uuid.UUID) *customer.Context {
	return &customer.Context{
		CustomerID:       customerID,
		Email:            "jane@example.com",
		MRR:              500,
		ConnectedSources: []string{"stripe", "posthog"},
		SegmentIDs:       []string{"seg-enterprise"},
		DaysInactive:     3,
		DaysOverdue:      0,
	}
}

// =============================================================================
// MATCHER TESTS
// =============================================================================

// Scenario: confidence 0.8 and amount 150 against minConfidence 0.7 and
// minAmount 100 matches with no missing conditions.
func TestMatchAllConditionsPass(t *testing.T) {
	sig := testSignal(0.8, 150)
	pb := testPlaybook("Dunning Recovery", 50)
	pb.Trigger.MinAmount = floatPtr(100)

	outcome := Match(sig, pb, testContext(sig.CustomerID))

	if !outcome.WouldTrigger {
		t.Fatalf("expected trigger, missing: %v", outcome.MissingConditions)
	}
	if len(outcome.MissingConditions) != 0 {
		t.Errorf("expected no missing conditions, got %v", outcome.MissingConditions)
	}
	if outcome.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8", outcome.Confidence)
	}
}

func TestMatchAccumulatesAllFailures(t *testing.T) {
	// Every unmet condition must be reported; no short-circuiting.
	sig := testSignal(0.5, 20)
	pb := testPlaybook("Strict", 50)
	pb.Trigger.MinConfidence = 0.9
	pb.Trigger.MinAmount = floatPtr(100)
	pb.Trigger.MinMrr = floatPtr(1000)
	pb.Trigger.MinDaysInactive = intPtr(7)
	pb.Trigger.RequiredSources = []string{"stripe", "hubspot"}
	pb.Trigger.TargetSegments = []string{"seg-smb"}

	outcome := Match(sig, pb, testContext(sig.CustomerID))

	if outcome.WouldTrigger {
		t.Fatal("expected no trigger")
	}
	if len(outcome.MissingConditions) != 6 {
		t.Fatalf("expected 6 missing conditions, got %d: %v",
			len(outcome.MissingConditions), outcome.MissingConditions)
	}
	joined := strings.Join(outcome.MissingConditions, "\n")
	for _, want := range []string{"confidence", "amount", "MRR", "days inactive", "hubspot", "target segments"} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing conditions should mention %q:\n%s", want, joined)
		}
	}
}

func TestMatchSingleConditions(t *testing.T) {
	base := testContext(uuid.New())

	tests := []struct {
		name    string
		sig     signal.Signal
		mutate  func(*playbook.Playbook)
		wantHit bool
	}{
		{"days overdue unmet", testSignal(0.9, 100),
			func(p *playbook.Playbook) { p.Trigger.MinDaysOverdue = intPtr(30) }, false},
		{"days overdue met via context", testSignal(0.9, 100),
			func(p *playbook.Playbook) { p.Trigger.MinDaysOverdue = intPtr(0) }, true},
		{"empty segments means all customers", testSignal(0.9, 100),
			func(p *playbook.Playbook) { p.Trigger.TargetSegments = nil }, true},
		{"segment intersection passes", testSignal(0.9, 100),
			func(p *playbook.Playbook) { p.Trigger.TargetSegments = []string{"seg-x", "seg-enterprise"} }, true},
		{"amount absent but required", signal.New(signal.TypePaymentFailure, base.CustomerID, time.Now()).WithConfidence(0.9),
			func(p *playbook.Playbook) { p.Trigger.MinAmount = floatPtr(10) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb := testPlaybook("Case", 50)
			tt.mutate(&pb)
			outcome := Match(tt.sig, pb, base)
			if outcome.WouldTrigger != tt.wantHit {
				t.Errorf("wouldTrigger = %v, want %v (missing: %v)",
					outcome.WouldTrigger, tt.wantHit, outcome.MissingConditions)
			}
		})
	}
}

func TestMatchAbsentConfidence(t *testing.T) {
	sig := signal.New(signal.TypePaymentFailure, uuid.New(), time.Now()).WithAmount(100)
	cctx := testContext(sig.CustomerID)

	strict := testPlaybook("Strict", 50)
	if outcome := Match(sig, strict, cctx); outcome.WouldTrigger {
		t.Error("absent confidence should fail a non-zero minConfidence gate")
	}

	lenient := testPlaybook("Lenient", 50)
	lenient.Trigger.MinConfidence = 0
	if outcome := Match(sig, lenient, cctx); !outcome.WouldTrigger {
		t.Errorf("absent confidence should pass the lowest tier, missing: %v", outcome.MissingConditions)
	}
}

// Match is pure: identical inputs give identical outputs, every time.
func TestMatchPurity(t *testing.T) {
	sig := testSignal(0.65, 80)
	pb := testPlaybook("Pure", 50)
	pb.Trigger.MinAmount = floatPtr(100)
	cctx := testContext(sig.CustomerID)

	first := Match(sig, pb, cctx)
	for i := 0; i < 10; i++ {
		again := Match(sig, pb, cctx)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("call %d differed: %+v vs %+v", i, first, again)
		}
	}
}

// Raising confidence past the threshold flips the verdict and removes the
// confidence entry from the missing conditions, never the reverse.
func TestMatchConfidenceMonotonicity(t *testing.T) {
	pb := testPlaybook("Mono", 50)
	pb.Trigger.MinConfidence = 0.7
	cctx := testContext(uuid.New())

	below := Match(testSignal(0.69, 100), pb, cctx)
	if below.WouldTrigger {
		t.Fatal("confidence below threshold must not trigger")
	}
	if len(below.MissingConditions) != 1 || !strings.Contains(below.MissingConditions[0], "confidence") {
		t.Fatalf("expected single confidence condition, got %v", below.MissingConditions)
	}

	for _, c := range []float64{0.7, 0.8, 1.0} {
		above := Match(testSignal(c, 100), pb, cctx)
		if !above.WouldTrigger {
			t.Errorf("confidence %.2f should trigger, missing: %v", c, above.MissingConditions)
		}
		for _, cond := range above.MissingConditions {
			if strings.Contains(cond, "confidence") {
				t.Errorf("confidence %.2f should clear the confidence condition", c)
			}
		}
	}
}
