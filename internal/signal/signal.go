package signal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of fact a signal carries about a customer.
type Type string

const (
	TypePaymentFailure Type = "payment_failure"
	TypeInactivity7d   Type = "inactivity_7d"
	TypeDealLost       Type = "deal_lost"
	TypeUsageDrop      Type = "usage_drop"
	TypeOverdueInvoice Type = "overdue_invoice"
)

// Known reports whether t is a recognized signal type.
func (t Type) Known() bool {
	switch t {
	case TypePaymentFailure, TypeInactivity7d, TypeDealLost, TypeUsageDrop, TypeOverdueInvoice:
		return true
	}
	return false
}

// Provenance records where a signal came from.
type Provenance struct {
	Source  string `json:"source,omitempty"`
	EventID string `json:"eventId,omitempty"`
}

// Signal is an observed fact about a customer. Immutable once created;
// produced by the ingestion pipeline or the testing-lab injector.
type Signal struct {
	ID         uuid.UUID  `json:"id"`
	Type       Type       `json:"signalType"`
	CustomerID uuid.UUID  `json:"customerId"`
	OccurredAt time.Time  `json:"occurredAt"`
	Amount     *float64   `json:"amount,omitempty"`
	Confidence *float64   `json:"confidence,omitempty"`
	Provenance Provenance `json:"provenance,omitempty"`
}

// New builds a signal with a fresh id.
func New(t Type, customerID uuid.UUID, occurredAt time.Time) Signal {
	return Signal{
		ID:         uuid.New(),
		Type:       t,
		CustomerID: customerID,
		OccurredAt: occurredAt,
	}
}

// WithConfidence returns a copy of the signal carrying a confidence value.
func (s Signal) WithConfidence(c float64) Signal {
	s.Confidence = &c
	return s
}

// WithAmount returns a copy of the signal carrying a monetary amount.
func (s Signal) WithAmount(a float64) Signal {
	s.Amount = &a
	return s
}

// Validate checks the signal is well-formed enough to evaluate.
func (s Signal) Validate() error {
	if !s.Type.Known() {
		return fmt.Errorf("unknown signal type %q", s.Type)
	}
	if s.CustomerID == uuid.Nil {
		return fmt.Errorf("signal missing customer id")
	}
	if s.OccurredAt.IsZero() {
		return fmt.Errorf("signal missing occurrence time")
	}
	if s.Confidence != nil && (*s.Confidence < 0 || *s.Confidence > 1) {
		return fmt.Errorf("signal confidence %.2f outside [0,1]", *s.Confidence)
	}
	if s.Amount != nil && *s.Amount < 0 {
		return fmt.Errorf("signal amount %.2f is negative", *s.Amount)
	}
	return nil
}
