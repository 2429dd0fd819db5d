package engine

import (
	"sync"

	"github.com/google/uuid"
)

// customerLocks serializes live evaluation per customer inside this
// process. Different customers proceed in parallel; two signals for the
// same customer are processed in arrival order.
type customerLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newCustomerLocks() *customerLocks {
	return &customerLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (c *customerLocks) lock(customerID uuid.UUID) func() {
	c.mu.Lock()
	l, ok := c.locks[customerID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[customerID] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}
