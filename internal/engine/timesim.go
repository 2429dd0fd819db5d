package engine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SimulationReport describes what a clock jump changed.
type SimulationReport struct {
	RunsAffected     int       `json:"runsAffected"`
	CooldownsExpired int       `json:"cooldownsExpired"`
	SimulatedTime    time.Time `json:"simulatedTime"`
}

// TimeSimulator advances a sandbox's logical clock and settles the state
// the jump invalidates: cooldowns that expired inside the window and runs
// that would have finished during it.
type TimeSimulator struct {
	mu        sync.Mutex
	clock     *SimulatedClock
	cooldowns CooldownStore
	runs      RunStore
	// gate is the orchestrator's evaluation gate; held exclusively so no
	// evaluation observes a half-updated cooldown set.
	gate *sync.RWMutex
}

func NewTimeSimulator(clock *SimulatedClock, cooldowns CooldownStore, runs RunStore, gate *sync.RWMutex) *TimeSimulator {
	return &TimeSimulator{clock: clock, cooldowns: cooldowns, runs: runs, gate: gate}
}

// Advance moves logical time forward by the given number of hours. Negative
// deltas are rejected with ErrClockSkew; logical time only moves forward.
func (t *TimeSimulator) Advance(ctx context.Context, hours float64) (*SimulationReport, error) {
	if hours < 0 {
		return nil, fmt.Errorf("advance by %.1fh: %w", hours, ErrClockSkew)
	}
	delta := time.Duration(hours * float64(time.Hour))

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gate != nil {
		t.gate.Lock()
		defer t.gate.Unlock()
	}

	before := t.clock.Now()
	if err := t.clock.Advance(delta); err != nil {
		return nil, err
	}
	after := before.Add(delta)

	expired, err := t.cooldowns.ExpireBetween(ctx, before, after)
	if err != nil {
		return nil, err
	}

	// Runs in status Running would have finished inside the skipped
	// window; approvals are never auto-granted.
	affected, err := t.runs.CompleteRunning(ctx, after)
	if err != nil {
		return nil, err
	}

	return &SimulationReport{
		RunsAffected:     affected,
		CooldownsExpired: expired,
		SimulatedTime:    after,
	}, nil
}
