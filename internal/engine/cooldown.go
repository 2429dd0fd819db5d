package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CooldownStore holds per-(playbook, customer) cooldown expiries. All time
// comparisons go through the asOf/from/to parameters supplied by callers
// holding the engine clock, so the store itself never reads wall time.
//
// IsCoolingDown + StartCooldown for the same key must not interleave with
// another evaluation; the orchestrator guarantees this by serializing live
// evaluation per customer.
type CooldownStore interface {
	// IsCoolingDown reports whether an entry with expiresAt > asOf exists,
	// and if so when it ends.
	IsCoolingDown(ctx context.Context, playbookID, customerID uuid.UUID, asOf time.Time) (bool, time.Time, error)
	// StartCooldown records expiry at asOf + duration. A zero duration is a
	// no-op: every signal may retrigger.
	StartCooldown(ctx context.Context, playbookID, customerID uuid.UUID, asOf time.Time, duration time.Duration) error
	// ExpireBetween counts entries with from < expiresAt <= to. Backs the
	// cooldownsExpired figure in time-simulation reports.
	ExpireBetween(ctx context.Context, from, to time.Time) (int, error)
	// Reset drops every entry in the store's scope.
	Reset(ctx context.Context) error
}

type cooldownKey struct {
	playbookID uuid.UUID
	customerID uuid.UUID
}

// MemoryCooldownStore is the in-process implementation used by testing-lab
// sandboxes.
type MemoryCooldownStore struct {
	mu      sync.RWMutex
	entries map[cooldownKey]time.Time
}

func NewMemoryCooldownStore() *MemoryCooldownStore {
	return &MemoryCooldownStore{entries: make(map[cooldownKey]time.Time)}
}

func (s *MemoryCooldownStore) IsCoolingDown(_ context.Context, playbookID, customerID uuid.UUID, asOf time.Time) (bool, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	expiresAt, ok := s.entries[cooldownKey{playbookID, customerID}]
	if !ok || !expiresAt.After(asOf) {
		return false, time.Time{}, nil
	}
	return true, expiresAt, nil
}

func (s *MemoryCooldownStore) StartCooldown(_ context.Context, playbookID, customerID uuid.UUID, asOf time.Time, duration time.Duration) error {
	if duration <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[cooldownKey{playbookID, customerID}] = asOf.Add(duration)
	return nil
}

func (s *MemoryCooldownStore) ExpireBetween(_ context.Context, from, to time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, expiresAt := range s.entries {
		if expiresAt.After(from) && !expiresAt.After(to) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryCooldownStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[cooldownKey]time.Time)
	return nil
}
