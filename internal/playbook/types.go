package playbook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/playbook-engine/internal/signal"
)

// ExecutionMode controls whether a run starts immediately or waits for a
// human decision.
type ExecutionMode string

const (
	ModeAutomatic        ExecutionMode = "automatic"
	ModeRequiresApproval ExecutionMode = "requires_approval"
)

// ActionType identifies a kind of action a playbook can take.
type ActionType string

const (
	ActionStripeRetry ActionType = "stripe_retry"
	ActionSlackAlert  ActionType = "slack_alert"
	ActionCrmTask     ActionType = "crm_task"
)

// Exclusive reports whether two playbooks performing this action type for
// the same customer in the same evaluation would collide operationally.
// Retrying the same charge twice or filing duplicate CRM tasks collides;
// notifications may fan out.
func (t ActionType) Exclusive() bool {
	switch t {
	case ActionStripeRetry, ActionCrmTask:
		return true
	}
	return false
}

// SlackAlertConfig configures a slack_alert action. Template is a liquid
// template rendered with signal and customer bindings at dispatch time.
type SlackAlertConfig struct {
	WebhookURL string `json:"webhookUrl"`
	Channel    string `json:"channel"`
	Template   string `json:"template"`
}

// CrmTaskConfig configures a crm_task action.
type CrmTaskConfig struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	DueDays int    `json:"dueDays"`
}

// Action is a tagged union keyed by Type. Exactly one typed config is set
// for known types; unknown types land in Raw so wizard-authored
// forward-compatible configs survive a round trip.
type Action struct {
	Type  ActionType
	Slack *SlackAlertConfig
	Crm   *CrmTaskConfig
	Raw   map[string]string
}

type actionEnvelope struct {
	Type   ActionType      `json:"actionType"`
	Config json.RawMessage `json:"config,omitempty"`
}

// MarshalJSON encodes the action as {actionType, config}.
func (a Action) MarshalJSON() ([]byte, error) {
	env := actionEnvelope{Type: a.Type}
	var cfg interface{}
	switch a.Type {
	case ActionStripeRetry:
		// no config
	case ActionSlackAlert:
		cfg = a.Slack
	case ActionCrmTask:
		cfg = a.Crm
	default:
		if a.Raw != nil {
			cfg = a.Raw
		}
	}
	if cfg != nil {
		data, err := json.Marshal(cfg)
		if err != nil {
			return nil, err
		}
		env.Config = data
	}
	return json.Marshal(env)
}

// UnmarshalJSON decodes {actionType, config} into the right variant.
func (a *Action) UnmarshalJSON(data []byte) error {
	var env actionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	a.Type = env.Type
	a.Slack = nil
	a.Crm = nil
	a.Raw = nil

	switch env.Type {
	case ActionStripeRetry:
		return nil
	case ActionSlackAlert:
		a.Slack = &SlackAlertConfig{}
		if len(env.Config) > 0 {
			return json.Unmarshal(env.Config, a.Slack)
		}
	case ActionCrmTask:
		a.Crm = &CrmTaskConfig{}
		if len(env.Config) > 0 {
			return json.Unmarshal(env.Config, a.Crm)
		}
	default:
		if len(env.Config) > 0 {
			return json.Unmarshal(env.Config, &a.Raw)
		}
	}
	return nil
}

// Trigger is the condition set that determines when a playbook may fire.
// Nil pointer fields mean "not constrained".
type Trigger struct {
	SignalType      signal.Type `json:"signalType"`
	MinConfidence   float64     `json:"minConfidence"`
	MinMrr          *float64    `json:"minMrr,omitempty"`
	MinAmount       *float64    `json:"minAmount,omitempty"`
	MinDaysInactive *int        `json:"minDaysInactive,omitempty"`
	MinDaysOverdue  *int        `json:"minDaysOverdue,omitempty"`
	RequiredSources []string    `json:"requiredSources,omitempty"`
	TargetSegments  []string    `json:"targetSegmentIds,omitempty"`
}

// Playbook is a versioned, tenant-owned rule: trigger + execution policy +
// ordered actions. Playbooks are authored by the wizard and are read-only
// inputs to the engine.
type Playbook struct {
	ID                uuid.UUID     `json:"id"`
	OrgID             string        `json:"orgId"`
	Name              string        `json:"name"`
	Category          string        `json:"category"`
	Trigger           Trigger       `json:"trigger"`
	ExecutionMode     ExecutionMode `json:"executionMode"`
	CooldownHours     int           `json:"cooldownHours"`
	MaxConcurrentRuns int           `json:"maxConcurrentRuns"`
	Priority          int           `json:"priority"`
	Actions           []Action      `json:"actions"`
	Enabled           bool          `json:"enabled"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// Cooldown returns the configured cooldown duration. Zero means every
// signal may retrigger.
func (p Playbook) Cooldown() time.Duration {
	return time.Duration(p.CooldownHours) * time.Hour
}

// ExclusiveActionTypes returns the exclusive action types among the
// playbook's actions.
func (p Playbook) ExclusiveActionTypes() []ActionType {
	var out []ActionType
	for _, a := range p.Actions {
		if a.Type.Exclusive() {
			out = append(out, a.Type)
		}
	}
	return out
}

// Validate enforces the configuration invariants the wizard is supposed to
// uphold. The engine re-checks because one malformed playbook must never
// block evaluation of the others.
func (p Playbook) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("playbook %s: empty name", p.ID)
	}
	if !p.Trigger.SignalType.Known() {
		return fmt.Errorf("playbook %s: unknown trigger signal type %q", p.ID, p.Trigger.SignalType)
	}
	if p.Trigger.MinConfidence < 0 || p.Trigger.MinConfidence > 1 {
		return fmt.Errorf("playbook %s: minConfidence %.2f outside [0,1]", p.ID, p.Trigger.MinConfidence)
	}
	if p.ExecutionMode != ModeAutomatic && p.ExecutionMode != ModeRequiresApproval {
		return fmt.Errorf("playbook %s: invalid execution mode %q", p.ID, p.ExecutionMode)
	}
	if p.CooldownHours < 0 {
		return fmt.Errorf("playbook %s: negative cooldownHours", p.ID)
	}
	if p.MaxConcurrentRuns < 1 {
		return fmt.Errorf("playbook %s: maxConcurrentRuns must be >= 1", p.ID)
	}
	if p.Priority < 1 || p.Priority > 100 {
		return fmt.Errorf("playbook %s: priority %d outside [1,100]", p.ID, p.Priority)
	}
	return nil
}
