package customer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a customer id has no record.
var ErrNotFound = errors.New("customer not found")

// Context is everything the trigger matcher may consult about a customer,
// as of a signal's occurrence time.
type Context struct {
	CustomerID       uuid.UUID `json:"customerId"`
	Email            string    `json:"email"`
	MRR              float64   `json:"mrr"`
	ConnectedSources []string  `json:"connectedSources"`
	SegmentIDs       []string  `json:"segmentIds"`
	DaysInactive     int       `json:"daysInactive"`
	DaysOverdue      int       `json:"daysOverdue"`
}

// HasSource reports whether the customer has the given data source connected.
func (c *Context) HasSource(source string) bool {
	for _, s := range c.ConnectedSources {
		if s == source {
			return true
		}
	}
	return false
}

// InSegment reports whether the customer belongs to the given segment.
func (c *Context) InSegment(segmentID string) bool {
	for _, s := range c.SegmentIDs {
		if s == segmentID {
			return true
		}
	}
	return false
}

// Provider resolves customer context for evaluation. Implementations must
// compute the inactivity/overdue facts as of the given timestamp so that
// simulated time is transparent to the matcher.
type Provider interface {
	Context(ctx context.Context, customerID uuid.UUID, asOf time.Time) (*Context, error)
}

// StaticProvider serves contexts from memory. Used by the testing lab and
// in tests.
type StaticProvider struct {
	mu        sync.RWMutex
	customers map[uuid.UUID]Context
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{customers: make(map[uuid.UUID]Context)}
}

// Put registers or replaces a customer context.
func (p *StaticProvider) Put(c Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customers[c.CustomerID] = c
}

func (p *StaticProvider) Context(_ context.Context, customerID uuid.UUID, _ time.Time) (*Context, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.customers[customerID]
	if !ok {
		return nil, ErrNotFound
	}
	out := c
	return &out, nil
}
