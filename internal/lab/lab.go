// Package lab implements the Testing Lab: per-tenant sandboxes where
// signals can be injected, time fast-forwarded, and playbook behavior
// inspected without touching production runs or cooldowns. Production
// playbook definitions are read through the normal store and are never
// mutated here.
package lab

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/ignite/playbook-engine/internal/customer"
	"github.com/ignite/playbook-engine/internal/dispatch"
	"github.com/ignite/playbook-engine/internal/engine"
	"github.com/ignite/playbook-engine/internal/signal"
)

// PlaybookSourceFactory builds a tenant-scoped playbook source.
type PlaybookSourceFactory func(orgID string) engine.PlaybookSource

// Sandbox is one tenant's isolated lab state: its own simulated clock,
// cooldown entries, runs and injected signals. Everything in here dies on
// reset; nothing else does.
type Sandbox struct {
	orgID        string
	clock        *engine.SimulatedClock
	cooldowns    *engine.MemoryCooldownStore
	runs         *engine.MemoryRunStore
	orchestrator *engine.Orchestrator
	simulator    *engine.TimeSimulator

	mu      sync.Mutex
	signals []signal.Signal
}

// Service manages sandboxes keyed by tenant.
type Service struct {
	mu        sync.Mutex
	sandboxes map[string]*Sandbox
	playbooks PlaybookSourceFactory
	customers customer.Provider
}

func NewService(playbooks PlaybookSourceFactory, customers customer.Provider) *Service {
	return &Service{
		sandboxes: make(map[string]*Sandbox),
		playbooks: playbooks,
		customers: customers,
	}
}

func (s *Service) sandbox(orgID string) *Sandbox {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sb, ok := s.sandboxes[orgID]; ok {
		return sb
	}

	clock := engine.NewSimulatedClock()
	cooldowns := engine.NewMemoryCooldownStore()
	runs := engine.NewMemoryRunStore()
	resolver := engine.NewResolver(cooldowns, runs, clock)
	scheduler := engine.NewScheduler(runs, cooldowns, clock, dispatch.LogDispatcher{})
	orch := engine.NewOrchestrator(s.playbooks(orgID), s.customers, resolver, scheduler, clock)

	sb := &Sandbox{
		orgID:        orgID,
		clock:        clock,
		cooldowns:    cooldowns,
		runs:         runs,
		orchestrator: orch,
		simulator:    engine.NewTimeSimulator(clock, cooldowns, runs, orch.Gate()),
	}
	s.sandboxes[orgID] = sb
	return sb
}

// DryRunResult pairs the engine report with the customer facts the report
// view needs.
type DryRunResult struct {
	CustomerEmail string
	Report        *engine.EvaluationReport
}

// EvaluateDryRun evaluates a signal of the given type for the customer
// without side effects. It replays the most recent injected sandbox signal
// of that type, or synthesizes one at full confidence when none exists.
func (s *Service) EvaluateDryRun(ctx context.Context, orgID string, customerID uuid.UUID, st signal.Type) (*DryRunResult, error) {
	sb := s.sandbox(orgID)

	cctx, err := s.customers.Context(ctx, customerID, sb.clock.Now())
	if err != nil {
		if err == customer.ErrNotFound {
			return nil, &engine.NotFoundError{Kind: "customer", ID: customerID.String()}
		}
		return nil, err
	}

	sig, ok := sb.lastSignal(customerID, st)
	if !ok {
		sig = signal.New(st, customerID, sb.clock.Now()).WithConfidence(1.0)
	}

	report, err := sb.orchestrator.Evaluate(ctx, sig, engine.DryRun)
	if err != nil {
		return nil, err
	}
	return &DryRunResult{CustomerEmail: cctx.Email, Report: report}, nil
}

// InjectResult is what the event injector reports back.
type InjectResult struct {
	EventID           uuid.UUID
	SignalDetected    bool
	SignalType        signal.Type
	MatchingPlaybooks []string
}

// InjectEvent runs a raw provider event through signal detection and, when
// a signal is recognized, evaluates it live inside the sandbox so that
// cooldowns and runs accumulate for later dry-runs and time simulation.
func (s *Service) InjectEvent(ctx context.Context, orgID string, ev signal.RawEvent) (*InjectResult, error) {
	sb := s.sandbox(orgID)

	sig, detected := signal.Detect(ev, sb.clock.Now())
	if !detected {
		return &InjectResult{EventID: uuid.New()}, nil
	}

	sb.remember(sig)

	report, err := sb.orchestrator.Evaluate(ctx, sig, engine.Live)
	if err != nil {
		return nil, err
	}

	var fired []string
	for _, ev := range report.Evaluations {
		if ev.WouldTrigger && ev.SuppressionReason == nil {
			fired = append(fired, ev.PlaybookName)
		}
	}
	return &InjectResult{
		EventID:           sig.ID,
		SignalDetected:    true,
		SignalType:        sig.Type,
		MatchingPlaybooks: fired,
	}, nil
}

// SimulateTime advances the sandbox clock.
func (s *Service) SimulateTime(ctx context.Context, orgID string, hours float64) (*engine.SimulationReport, error) {
	return s.sandbox(orgID).simulator.Advance(ctx, hours)
}

// Reset wipes one tenant's sandbox: its signals, runs and cooldowns.
// Playbook definitions are untouched.
func (s *Service) Reset(_ context.Context, orgID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sandboxes[orgID]; ok {
		delete(s.sandboxes, orgID)
		log.Printf("[lab] sandbox for org %s reset", orgID)
	}
}

func (sb *Sandbox) remember(sig signal.Signal) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.signals = append(sb.signals, sig)
}

func (sb *Sandbox) lastSignal(customerID uuid.UUID, st signal.Type) (signal.Signal, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	for i := len(sb.signals) - 1; i >= 0; i-- {
		if sb.signals[i].CustomerID == customerID && sb.signals[i].Type == st {
			return sb.signals[i], true
		}
	}
	return signal.Signal{}, false
}
