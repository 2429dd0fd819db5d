package signal

import (
	"time"

	"github.com/google/uuid"
)

// RawEvent is a loosely-typed provider event as submitted by the testing-lab
// injector or the signal queue. Unknown fields are rejected at ingestion so
// downstream matching stays total and typed.
type RawEvent struct {
	CustomerID uuid.UUID         `json:"customerId"`
	EventType  string            `json:"eventType"`
	Amount     *float64          `json:"amount,omitempty"`
	Currency   string            `json:"currency,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// detectionRule maps a provider event type onto a signal type with a
// baseline confidence. Confidence here is externally supplied tuning, not a
// model output.
type detectionRule struct {
	signalType Type
	confidence float64
}

var detectionRules = map[string]detectionRule{
	"charge.failed":          {TypePaymentFailure, 0.95},
	"invoice.payment_failed": {TypePaymentFailure, 0.90},
	"invoice.overdue":        {TypeOverdueInvoice, 0.90},
	"deal.lost":              {TypeDealLost, 1.0},
	"usage.drop":             {TypeUsageDrop, 0.75},
	"activity.none_7d":       {TypeInactivity7d, 0.85},
}

// Detect converts a raw provider event into a signal, if the event type maps
// onto one. The second return is false when no signal is recognized.
func Detect(ev RawEvent, occurredAt time.Time) (Signal, bool) {
	rule, ok := detectionRules[ev.EventType]
	if !ok {
		return Signal{}, false
	}

	sig := New(rule.signalType, ev.CustomerID, occurredAt).WithConfidence(rule.confidence)
	if ev.Amount != nil {
		sig = sig.WithAmount(*ev.Amount)
	}
	sig.Provenance = Provenance{
		Source:  ev.Metadata["source"],
		EventID: ev.Metadata["eventId"],
	}
	return sig, true
}

// KnownEventTypes lists the provider event types the detector understands.
func KnownEventTypes() []string {
	types := make([]string, 0, len(detectionRules))
	for t := range detectionRules {
		types = append(types, t)
	}
	return types
}
