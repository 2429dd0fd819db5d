// Package dispatch is the boundary where resolved actions leave the engine.
// The scheduler hands a run plus its playbook here; actual side effects
// (Slack, CRM, Stripe) happen behind this boundary and report back through
// run status transitions.
package dispatch

import (
	"context"
	"fmt"
	"log"

	"github.com/ignite/playbook-engine/internal/engine"
	"github.com/ignite/playbook-engine/internal/playbook"
	"github.com/ignite/playbook-engine/internal/signal"
)

// LogDispatcher records every handoff without performing side effects.
// Sandboxes use it so testing-lab runs never touch real systems.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(_ context.Context, run engine.Run, pb playbook.Playbook, sig signal.Signal) error {
	for _, action := range pb.Actions {
		log.Printf("[dispatch] run=%s playbook=%q action=%s (dry)", run.ID, pb.Name, action.Type)
	}
	return nil
}

// Dispatcher routes each action to its executor. Unknown (raw) action
// types are logged and skipped; forward-compatible configs are not errors.
type Dispatcher struct {
	slack *SlackNotifier
}

func New(slack *SlackNotifier) *Dispatcher {
	return &Dispatcher{slack: slack}
}

func (d *Dispatcher) Dispatch(ctx context.Context, run engine.Run, pb playbook.Playbook, sig signal.Signal) error {
	bindings := templateBindings(run, pb, sig)

	var firstErr error
	for _, action := range pb.Actions {
		var err error
		switch action.Type {
		case playbook.ActionStripeRetry:
			// Handed to the billing worker via the run record; nothing to
			// do inline.
			log.Printf("[dispatch] run=%s stripe retry queued", run.ID)
		case playbook.ActionCrmTask:
			log.Printf("[dispatch] run=%s crm task %q queued", run.ID, action.Crm.Subject)
		case playbook.ActionSlackAlert:
			if d.slack == nil {
				log.Printf("[dispatch] run=%s slack disabled, skipping alert", run.ID)
				continue
			}
			err = d.slack.Send(ctx, *action.Slack, bindings)
		default:
			log.Printf("[dispatch] run=%s unknown action type %q, skipping", run.ID, action.Type)
		}
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("action %s: %w", action.Type, err)
		}
	}
	return firstErr
}

func templateBindings(run engine.Run, pb playbook.Playbook, sig signal.Signal) map[string]any {
	bindings := map[string]any{
		"run_id":      run.ID.String(),
		"playbook":    pb.Name,
		"customer_id": sig.CustomerID.String(),
		"signal_type": string(sig.Type),
		"occurred_at": sig.OccurredAt,
	}
	if sig.Amount != nil {
		bindings["amount"] = fmt.Sprintf("%.2f", *sig.Amount)
	}
	if sig.Confidence != nil {
		bindings["confidence"] = fmt.Sprintf("%.2f", *sig.Confidence)
	}
	return bindings
}
