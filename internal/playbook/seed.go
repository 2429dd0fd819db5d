package playbook

import (
	"context"
	"log"

	"github.com/ignite/playbook-engine/internal/signal"
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

// SeedDefaults inserts a starter playbook set if the org has none.
func (s *Store) SeedDefaults(ctx context.Context) {
	var count int
	s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM playbooks WHERE org_id = $1`, s.orgID,
	).Scan(&count)
	if count > 0 {
		return
	}

	log.Printf("[playbook] seeding default playbooks for org %s", s.orgID)

	defaults := []Playbook{
		{
			Name: "Dunning Recovery", Category: "billing",
			Trigger: Trigger{
				SignalType:    signal.TypePaymentFailure,
				MinConfidence: 0.7,
				MinAmount:     floatPtr(50),
			},
			ExecutionMode: ModeAutomatic, CooldownHours: 24,
			MaxConcurrentRuns: 5, Priority: 80, Enabled: true,
			Actions: []Action{
				{Type: ActionStripeRetry},
				{Type: ActionSlackAlert, Slack: &SlackAlertConfig{
					Channel:  "#billing-alerts",
					Template: "Payment of ${{ amount }} failed for {{ customer_id }}",
				}},
			},
		},
		{
			Name: "Win-back Outreach", Category: "retention",
			Trigger: Trigger{
				SignalType:      signal.TypeInactivity7d,
				MinConfidence:   0.5,
				MinDaysInactive: intPtr(7),
			},
			ExecutionMode: ModeRequiresApproval, CooldownHours: 168,
			MaxConcurrentRuns: 10, Priority: 40, Enabled: true,
			Actions: []Action{
				{Type: ActionCrmTask, Crm: &CrmTaskConfig{
					Subject: "Check in with inactive customer",
					Body:    "No product activity for a week.",
					DueDays: 2,
				}},
			},
		},
		{
			Name: "Lost Deal Review", Category: "sales",
			Trigger: Trigger{
				SignalType:    signal.TypeDealLost,
				MinConfidence: 0,
			},
			ExecutionMode: ModeAutomatic, CooldownHours: 0,
			MaxConcurrentRuns: 3, Priority: 30, Enabled: true,
			Actions: []Action{
				{Type: ActionSlackAlert, Slack: &SlackAlertConfig{
					Channel:  "#sales",
					Template: "Deal lost for {{ customer_id }}",
				}},
			},
		},
	}
	for i := range defaults {
		if err := s.Create(ctx, &defaults[i]); err != nil {
			log.Printf("[playbook] seed %q failed: %v", defaults[i].Name, err)
		}
	}
}
