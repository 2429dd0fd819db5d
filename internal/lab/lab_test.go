package lab

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/playbook-engine/internal/customer"
	"github.com/ignite/playbook-engine/internal/engine"
	"github.com/ignite/playbook-engine/internal/playbook"
	"github.com/ignite/playbook-engine/internal/signal"
)

type fixedPlaybooks []playbook.Playbook

func (f fixedPlaybooks) ListEnabledBySignalType(_ context.Context, st signal.Type) ([]playbook.Playbook, error) {
	var out []playbook.Playbook
	for _, pb := range f {
		if pb.Enabled && pb.Trigger.SignalType == st {
			out = append(out, pb)
		}
	}
	return out, nil
}

func labPlaybook(name string, priority int, cooldownHours int) playbook.Playbook {
	return playbook.Playbook{
		ID:   uuid.New(),
		Name: name,
		Trigger: playbook.Trigger{
			SignalType:    signal.TypePaymentFailure,
			MinConfidence: 0.7,
		},
		ExecutionMode:     playbook.ModeAutomatic,
		CooldownHours:     cooldownHours,
		MaxConcurrentRuns: 5,
		Priority:          priority,
		Enabled:           true,
		Actions:           []playbook.Action{{Type: playbook.ActionSlackAlert, Slack: &playbook.SlackAlertConfig{}}},
	}
}

func newLabService(playbooks ...playbook.Playbook) (*Service, uuid.UUID) {
	customers := customer.NewStaticProvider()
	customerID := uuid.New()
	customers.Put(customer.Context{
		CustomerID:       customerID,
		Email:            "owner@acme.dev",
		MRR:              900,
		ConnectedSources: []string{"stripe"},
	})
	svc := NewService(func(string) engine.PlaybookSource {
		return fixedPlaybooks(playbooks)
	}, customers)
	return svc, customerID
}

func TestInjectEventDetectsAndFires(t *testing.T) {
	svc, customerID := newLabService(labPlaybook("Dunning Recovery", 80, 24))
	amount := 150.0

	result, err := svc.InjectEvent(context.Background(), "org-1", signal.RawEvent{
		CustomerID: customerID,
		EventType:  "charge.failed",
		Amount:     &amount,
	})
	require.NoError(t, err)
	assert.True(t, result.SignalDetected)
	assert.Equal(t, signal.TypePaymentFailure, result.SignalType)
	assert.Equal(t, []string{"Dunning Recovery"}, result.MatchingPlaybooks)
}

func TestInjectEventUnknownType(t *testing.T) {
	svc, customerID := newLabService(labPlaybook("Any", 50, 0))

	result, err := svc.InjectEvent(context.Background(), "org-1", signal.RawEvent{
		CustomerID: customerID,
		EventType:  "totally.unknown",
	})
	require.NoError(t, err)
	assert.False(t, result.SignalDetected)
	assert.Empty(t, result.MatchingPlaybooks)
}

func TestDryRunReplaysInjectedSignal(t *testing.T) {
	svc, customerID := newLabService(labPlaybook("Dunning Recovery", 80, 24))
	ctx := context.Background()
	amount := 150.0

	_, err := svc.InjectEvent(ctx, "org-1", signal.RawEvent{
		CustomerID: customerID,
		EventType:  "charge.failed",
		Amount:     &amount,
	})
	require.NoError(t, err)

	// The injected event started a cooldown, so the replayed dry run must
	// report CooldownActive rather than a fresh fire.
	result, err := svc.EvaluateDryRun(ctx, "org-1", customerID, signal.TypePaymentFailure)
	require.NoError(t, err)
	assert.Equal(t, "owner@acme.dev", result.CustomerEmail)
	require.Len(t, result.Report.Conflicts, 1)
	assert.Equal(t, engine.ReasonCooldownActive, result.Report.Conflicts[0].Reason)
	assert.Empty(t, result.Report.Runs, "dry run must not create runs")
}

func TestDryRunSynthesizesSignalWhenNoneInjected(t *testing.T) {
	svc, customerID := newLabService(labPlaybook("Dunning Recovery", 80, 24))

	result, err := svc.EvaluateDryRun(context.Background(), "org-1", customerID, signal.TypePaymentFailure)
	require.NoError(t, err)
	require.Len(t, result.Report.Evaluations, 1)
	assert.True(t, result.Report.Evaluations[0].WouldTrigger)
}

func TestDryRunUnknownCustomer(t *testing.T) {
	svc, _ := newLabService(labPlaybook("Any", 50, 0))

	_, err := svc.EvaluateDryRun(context.Background(), "org-1", uuid.New(), signal.TypePaymentFailure)
	assert.True(t, engine.IsNotFound(err), "got %v", err)
}

func TestSimulateTimeClearsCooldown(t *testing.T) {
	svc, customerID := newLabService(labPlaybook("Dunning Recovery", 80, 24))
	ctx := context.Background()
	amount := 150.0

	_, err := svc.InjectEvent(ctx, "org-1", signal.RawEvent{
		CustomerID: customerID,
		EventType:  "charge.failed",
		Amount:     &amount,
	})
	require.NoError(t, err)

	report, err := svc.SimulateTime(ctx, "org-1", 25)
	require.NoError(t, err)
	assert.Equal(t, 1, report.CooldownsExpired)
	assert.Equal(t, 1, report.RunsAffected)

	// Free to fire again.
	result, err := svc.InjectEvent(ctx, "org-1", signal.RawEvent{
		CustomerID: customerID,
		EventType:  "charge.failed",
		Amount:     &amount,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Dunning Recovery"}, result.MatchingPlaybooks)
}

func TestSandboxesAreTenantIsolated(t *testing.T) {
	svc, customerID := newLabService(labPlaybook("Dunning Recovery", 80, 24))
	ctx := context.Background()
	amount := 150.0

	_, err := svc.InjectEvent(ctx, "org-a", signal.RawEvent{
		CustomerID: customerID,
		EventType:  "charge.failed",
		Amount:     &amount,
	})
	require.NoError(t, err)

	// org-b shares playbooks and customers but none of org-a's cooldowns.
	result, err := svc.InjectEvent(ctx, "org-b", signal.RawEvent{
		CustomerID: customerID,
		EventType:  "charge.failed",
		Amount:     &amount,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Dunning Recovery"}, result.MatchingPlaybooks)
}

func TestResetDropsSandboxState(t *testing.T) {
	svc, customerID := newLabService(labPlaybook("Dunning Recovery", 80, 24))
	ctx := context.Background()
	amount := 150.0

	_, err := svc.InjectEvent(ctx, "org-1", signal.RawEvent{
		CustomerID: customerID,
		EventType:  "charge.failed",
		Amount:     &amount,
	})
	require.NoError(t, err)

	svc.Reset(ctx, "org-1")

	result, err := svc.InjectEvent(ctx, "org-1", signal.RawEvent{
		CustomerID: customerID,
		EventType:  "charge.failed",
		Amount:     &amount,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Dunning Recovery"}, result.MatchingPlaybooks, "reset must clear cooldowns")
}
